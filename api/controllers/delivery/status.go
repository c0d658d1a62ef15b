package delivery

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/api/middleware"
	"github.com/rassdread/homecheff-app-sub014/api/responses"
	"github.com/rassdread/homecheff-app-sub014/api/validators"
	internaldelivery "github.com/rassdread/homecheff-app-sub014/internal/delivery"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, input internaldelivery.UpdateStatusInput) (*models.DeliveryOrder, error)
}

type updateStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=ACCEPTED PICKED_UP DELIVERED CANCELLED"`
	Notes  *string `json:"notes" validate:"omitempty,max=1000"`
}

type updateStatusResponse struct {
	Success bool                  `json:"success"`
	Order   *models.DeliveryOrder `json:"order"`
}

// UpdateStatus lets the assigned delivery partner advance a delivery order.
func UpdateStatus(svc StatusUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "niet ingelogd"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body updateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(ctx, internaldelivery.UpdateStatusInput{
			UserID:          userID,
			DeliveryOrderID: orderID,
			Status:          body.Status,
			Notes:           body.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, updateStatusResponse{Success: true, Order: order})
	}
}
