package controllers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rassdread/homecheff-app-sub014/api/responses"
	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-HomeCheff-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency in parallel and reports ready only when
// all of them answer within readinessTimeout.
func HealthReady(cfg *config.Config, deps map[string]Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-HomeCheff-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := pingAll(ctx, deps)
		status := make(map[string]string, len(checks))
		var down []string
		for name, err := range checks {
			if err == nil {
				status[name] = "up"
				continue
			}
			status[name] = "down"
			down = append(down, name)
			logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()}), "readiness check failed")
		}
		if len(down) > 0 {
			sort.Strings(down)
			err := pkgerrors.Newf(pkgerrors.CodeDependency, "unavailable: %s", strings.Join(down, ", ")).WithDetails(status)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}

func pingAll(ctx context.Context, deps map[string]Pinger) map[string]error {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]error, len(deps))
	)
	for name, dep := range deps {
		if dep == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dep.Ping(ctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}
