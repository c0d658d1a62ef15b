package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/notifications"
	"github.com/rassdread/homecheff-app-sub014/internal/orders"
	"github.com/rassdread/homecheff-app-sub014/internal/payouts"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox/payloads"
)

const unknownCarrier = "unknown"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type escrowReleaser interface {
	ReleaseForOrder(ctx context.Context, orderID uuid.UUID, trigger enums.PayoutTrigger) (*payouts.ReleaseResult, error)
}

type orderNotifier interface {
	SendOrderUpdate(ctx context.Context, update notifications.OrderUpdate) error
	SendLabelReady(ctx context.Context, sellerID uuid.UUID, orderNumber string, pdfURL *string) error
}

type sellerLookup interface {
	SellerUserIDsForOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
}

type reviewRequester interface {
	RequestReviews(ctx context.Context, orderID uuid.UUID) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ReconcilerParams wires the shipping reconciler. Notifier and Reviews are
// optional.
type ReconcilerParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Orders   orders.Repository
	Labels   LabelRepository
	Payouts  escrowReleaser
	Notifier orderNotifier
	Users    sellerLookup
	Reviews  reviewRequester
	Outbox   outboxEmitter
}

// Reconciler applies carrier webhook events to orders and shipping labels.
type Reconciler struct {
	logg     *logger.Logger
	db       txRunner
	orders   orders.Repository
	labels   LabelRepository
	payouts  escrowReleaser
	notifier orderNotifier
	users    sellerLookup
	reviews  reviewRequester
	outbox   outboxEmitter
	now      func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Labels == nil {
		return nil, errors.New("label repository required")
	}
	if params.Payouts == nil {
		return nil, errors.New("payout engine required")
	}
	if params.Users == nil {
		return nil, errors.New("seller lookup required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox required")
	}
	return &Reconciler{
		logg:     params.Logger,
		db:       params.DB,
		orders:   params.Orders,
		labels:   params.Labels,
		payouts:  params.Payouts,
		notifier: params.Notifier,
		users:    params.Users,
		reviews:  params.Reviews,
		outbox:   params.Outbox,
		now:      time.Now,
	}, nil
}

// transition records which first-time changes one event caused.
type transition struct {
	firstShipped   bool
	firstDelivered bool
	shippedAt      time.Time
	deliveredAt    time.Time
}

// HandleEvent applies one carrier event. Events that match no order are
// logged and dropped.
func (r *Reconciler) HandleEvent(ctx context.Context, event WebhookEvent) error {
	if event.Carrier == "" {
		event.Carrier = unknownCarrier
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"carrier":          event.Carrier,
		"event_type":       event.Type,
		"carrier_label_id": event.CarrierLabelID(),
	})

	if event.Type == EventLabelCreated {
		return r.handleLabelCreated(ctx, event)
	}

	label, err := r.labels.FindByCarrierLabelID(ctx, event.CarrierLabelID())
	if err != nil {
		return fmt.Errorf("lookup shipping label: %w", err)
	}
	order, err := r.resolveOrder(ctx, event, label)
	if err != nil {
		return err
	}
	if order == nil {
		r.logg.Warn(ctx, "carrier event matches no order")
		return nil
	}
	ctx = r.logg.WithOrderID(ctx, order.ID.String())

	status := event.ResolvedStatus()
	if status.IsZero() && event.TrackingNumber == "" {
		r.logg.Info(ctx, "carrier event carries no status change")
		return nil
	}

	var result transition
	err = r.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = r.apply(ctx, tx, order, label, event, status)
		return txErr
	})
	if err != nil {
		return fmt.Errorf("apply carrier event: %w", err)
	}

	r.afterCommit(ctx, order, result)
	return nil
}

func (r *Reconciler) apply(ctx context.Context, tx *gorm.DB, order *models.Order, label *models.ShippingLabel, event WebhookEvent, status enums.ShippingStatus) (transition, error) {
	repo := r.orders.WithTx(tx)
	now := r.now().UTC()
	var result transition

	if !status.IsZero() {
		if err := repo.UpdateShippingStatus(ctx, order.ID, status); err != nil {
			return result, err
		}
	}
	if event.TrackingNumber != "" {
		if _, err := repo.BackfillTrackingNumber(ctx, order.ID, event.TrackingNumber); err != nil {
			return result, err
		}
	}

	if status.IsDelivered() {
		result.deliveredAt = event.DeliveredAtOr(now)
		// a delivered parcel has shipped, even if the carrier skipped that event
		result.shippedAt = result.deliveredAt
	} else {
		result.shippedAt = now
	}

	if impliesShipped(status) || status.IsDelivered() {
		first, err := repo.MarkShipped(ctx, order.ID, result.shippedAt)
		if err != nil {
			return result, err
		}
		result.firstShipped = first
	}
	if status.IsDelivered() {
		first, err := repo.MarkDelivered(ctx, order.ID, result.deliveredAt)
		if err != nil {
			return result, err
		}
		result.firstDelivered = first
	}

	if label != nil {
		switch {
		case status.IsDelivered():
			if err := r.labels.WithTx(tx).MirrorStatus(ctx, label.ID, enums.ShippingLabelStatusDelivered); err != nil {
				return result, err
			}
		case impliesShipped(status):
			if err := r.labels.WithTx(tx).MirrorStatus(ctx, label.ID, enums.ShippingLabelStatusShipped); err != nil {
				return result, err
			}
		}
	}

	if result.firstShipped {
		tracking := order.ShippingTrackingNumber
		if (tracking == nil || *tracking == "") && event.TrackingNumber != "" {
			tracking = &event.TrackingNumber
		}
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderShipped,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderShippedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				BuyerID:        order.UserID,
				TrackingNumber: tracking,
				Carrier:        event.Carrier,
				ShippedAt:      result.shippedAt,
			},
		}); err != nil {
			return result, err
		}
	}
	if result.firstDelivered {
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderDeliveredEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				BuyerID:     order.UserID,
				Source:      "carrier",
				DeliveredAt: result.deliveredAt,
			},
		}); err != nil {
			return result, err
		}
	}
	return result, nil
}

// afterCommit runs the side effects of first transitions. Failures are logged;
// held escrows left behind are swept by the payout reconcile job.
func (r *Reconciler) afterCommit(ctx context.Context, order *models.Order, result transition) {
	if result.firstShipped {
		r.release(ctx, order.ID, enums.PayoutTriggerShipped)
		r.notifyBuyer(ctx, order, "Je bestelling is verzonden",
			fmt.Sprintf("Bestelling %s is onderweg naar je.", order.OrderNumber))
	}
	if result.firstDelivered {
		r.release(ctx, order.ID, enums.PayoutTriggerDelivered)
		r.notifyBuyer(ctx, order, "Je bestelling is bezorgd",
			fmt.Sprintf("Bestelling %s is bezorgd. Eet smakelijk!", order.OrderNumber))
		if r.reviews != nil {
			if err := r.reviews.RequestReviews(ctx, order.ID); err != nil {
				r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "review requests failed")
			}
		}
	}
}

func (r *Reconciler) release(ctx context.Context, orderID uuid.UUID, trigger enums.PayoutTrigger) {
	ctx = r.logg.WithField(ctx, "trigger", trigger)
	result, err := r.payouts.ReleaseForOrder(ctx, orderID, trigger)
	if err != nil {
		r.logg.Error(ctx, "escrow release failed", err)
		return
	}
	if result != nil && result.Released() > 0 {
		r.logg.Info(r.logg.WithField(ctx, "released", result.Released()), "escrow released")
	}
}

func (r *Reconciler) notifyBuyer(ctx context.Context, order *models.Order, title, message string) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.SendOrderUpdate(ctx, notifications.OrderUpdate{
		UserID:      order.UserID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Title:       title,
		Message:     message,
	})
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "buyer notification failed")
	}
}

func (r *Reconciler) handleLabelCreated(ctx context.Context, event WebhookEvent) error {
	carrierLabelID := event.CarrierLabelID()
	if carrierLabelID == "" {
		r.logg.Warn(ctx, "label event without label id")
		return nil
	}
	price, err := event.PriceCents()
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "ignoring label price")
		price = nil
	}

	existing, err := r.labels.FindByCarrierLabelID(ctx, carrierLabelID)
	if err != nil {
		return fmt.Errorf("lookup shipping label: %w", err)
	}
	order, err := r.resolveOrder(ctx, event, existing)
	if err != nil {
		return err
	}

	label := &models.ShippingLabel{
		CarrierLabelID: carrierLabelID,
		TrackingNumber: optionalString(event.TrackingNumber),
		PDFURL:         optionalString(event.PDFURL),
		Carrier:        event.Carrier,
		Status:         enums.ShippingLabelStatusGenerated,
		PriceCents:     price,
	}
	if order != nil {
		label.OrderID = &order.ID
	}

	err = r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := r.labels.WithTx(tx).Upsert(ctx, label); err != nil {
			return err
		}
		if order == nil {
			return nil
		}
		repo := r.orders.WithTx(tx)
		if _, err := repo.AttachShippingLabel(ctx, order.ID, carrierLabelID); err != nil {
			return err
		}
		if event.TrackingNumber != "" {
			if _, err := repo.BackfillTrackingNumber(ctx, order.ID, event.TrackingNumber); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store shipping label: %w", err)
	}

	if order == nil {
		r.logg.Info(ctx, "label stored without matching order")
		return nil
	}
	r.notifySellers(r.logg.WithOrderID(ctx, order.ID.String()), order, label.PDFURL)
	return nil
}

func (r *Reconciler) notifySellers(ctx context.Context, order *models.Order, pdfURL *string) {
	if r.notifier == nil {
		return
	}
	sellers, err := r.users.SellerUserIDsForOrder(ctx, order.ID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "seller lookup for label failed")
		return
	}
	for _, sellerID := range sellers {
		if err := r.notifier.SendLabelReady(ctx, sellerID, order.OrderNumber, pdfURL); err != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"seller_id": sellerID.String(),
				"error":     err.Error(),
			}), "label ready notification failed")
		}
	}
}

// resolveOrder finds the order an event refers to: through the stored label
// first, then the order's carrier label id, internal id and order number.
func (r *Reconciler) resolveOrder(ctx context.Context, event WebhookEvent, label *models.ShippingLabel) (*models.Order, error) {
	lookups := make([]func() (*models.Order, error), 0, 4)
	if label != nil && label.OrderID != nil {
		orderID := *label.OrderID
		lookups = append(lookups, func() (*models.Order, error) { return r.orders.FindByID(ctx, orderID) })
	}
	if id := event.CarrierLabelID(); id != "" {
		lookups = append(lookups, func() (*models.Order, error) { return r.orders.FindByShippingLabelID(ctx, id) })
	}
	if id, ok := event.InternalOrderID(); ok {
		lookups = append(lookups, func() (*models.Order, error) { return r.orders.FindByID(ctx, id) })
	} else if event.OrderID != "" {
		// some carriers echo our order number in order_id
		number := event.OrderID
		lookups = append(lookups, func() (*models.Order, error) { return r.orders.FindByOrderNumber(ctx, number) })
	}
	if event.OrderNumber != "" {
		lookups = append(lookups, func() (*models.Order, error) { return r.orders.FindByOrderNumber(ctx, event.OrderNumber) })
	}

	for _, lookup := range lookups {
		order, err := lookup()
		if errors.Is(err, orders.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve order: %w", err)
		}
		return order, nil
	}
	return nil, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
