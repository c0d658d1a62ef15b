package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

type requestObserver interface {
	Observe(route, method string, status int, elapsed time.Duration)
}

// Logging writes one entry per finished request and feeds the latency
// histogram. Health checks are not logged.
func Logging(logg *logger.Logger, observer requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w, false)
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			if observer != nil {
				observer.Observe(route, r.Method, rec.Status(), elapsed)
			}
			if logg == nil || route == "/health/live" || route == "/health/ready" {
				return
			}

			ctx := logg.WithFields(r.Context(), map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      rec.Status(),
				"bytes":       rec.written,
				"duration_ms": elapsed.Milliseconds(),
			})
			if rec.Status() >= http.StatusInternalServerError {
				logg.Warn(ctx, "request completed with server error")
				return
			}
			logg.Info(ctx, "request completed")
		})
	}
}
