package middleware

import (
	"net/http"

	"github.com/rassdread/homecheff-app-sub014/api/responses"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

// RequireRole admits only callers whose token carries one of allowed. It must
// run after Auth.
func RequireRole(logg *logger.Logger, allowed ...enums.UserRole) func(http.Handler) http.Handler {
	permitted := make(map[enums.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		permitted[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.UserRole(RoleFromContext(r.Context()))
			if _, ok := permitted[role]; !ok {
				err := pkgerrors.Newf(pkgerrors.CodeForbidden, "role %q may not call %s", role, routePattern(r))
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
