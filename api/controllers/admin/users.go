package admin

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/api/middleware"
	"github.com/rassdread/homecheff-app-sub014/api/responses"
	"github.com/rassdread/homecheff-app-sub014/api/validators"
	"github.com/rassdread/homecheff-app-sub014/internal/accounts"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

type UserDeleter interface {
	DeleteUser(ctx context.Context, actorID, userID uuid.UUID) (*accounts.DeletionReport, error)
}

// DeleteUser removes a user account with all dependent records.
func DeleteUser(svc UserDeleter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable"))
			return
		}
		actorID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "niet ingelogd"))
			return
		}
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := svc.DeleteUser(ctx, actorID, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"deleted_user_id": userID.String(),
			"rows_deleted":    report.TotalRows,
		}), "admin deleted user")
		responses.WriteSuccess(w, report)
	}
}
