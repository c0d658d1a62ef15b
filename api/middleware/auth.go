package middleware

import (
	"net/http"
	"strings"

	"github.com/rassdread/homecheff-app-sub014/api/responses"
	pkgAuth "github.com/rassdread/homecheff-app-sub014/pkg/auth"
	"github.com/rassdread/homecheff-app-sub014/pkg/auth/session"
	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

// Auth accepts a bearer JWT whose session is still live in redis and seeds
// the request context with the caller's id and role.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			userID, role := claims.UserID.String(), claims.Role.String()
			ctx := withActor(r.Context(), actor{userID: userID, role: role})
			if logg != nil {
				ctx = logg.WithFields(logg.WithUserID(ctx, userID), map[string]any{"actor_role": role})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (*pkgAuth.AccessTokenClaims, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if sessions == nil {
		return claims, nil
	}
	live, err := sessions.HasSession(r.Context(), claims.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	}
	if !live {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// bearerToken accepts "Bearer <jwt>" as well as a bare token.
func bearerToken(header string) (string, bool) {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token, token != ""
}
