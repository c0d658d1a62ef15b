package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/notifications"
	"github.com/rassdread/homecheff-app-sub014/internal/orders"
	"github.com/rassdread/homecheff-app-sub014/internal/payouts"
	"github.com/rassdread/homecheff-app-sub014/internal/users"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox/payloads"
)

var allowedTransitions = map[enums.DeliveryOrderStatus][]enums.DeliveryOrderStatus{
	enums.DeliveryOrderStatusAccepted: {
		enums.DeliveryOrderStatusPickedUp,
		enums.DeliveryOrderStatusDelivered,
		enums.DeliveryOrderStatusCancelled,
	},
	enums.DeliveryOrderStatusPickedUp: {
		enums.DeliveryOrderStatusDelivered,
		enums.DeliveryOrderStatusCancelled,
	},
}

// CanTransition reports whether a delivery order may move from one status to
// another. Resending the current status is allowed.
func CanTransition(from, to enums.DeliveryOrderStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type payoutEngine interface {
	ReleaseForOrder(ctx context.Context, orderID uuid.UUID, trigger enums.PayoutTrigger) (*payouts.ReleaseResult, error)
	PayDeliveryPartner(ctx context.Context, order models.DeliveryOrder) (*payouts.PartnerPayoutResult, error)
	PartnerSharePercent() int
}

type orderNotifier interface {
	SendOrderUpdate(ctx context.Context, update notifications.OrderUpdate) error
}

type reviewRequester interface {
	RequestReviews(ctx context.Context, orderID uuid.UUID) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the delivery state machine. Notifier, Reviews and
// Countdown are optional.
type ServiceParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Deliveries Repository
	Orders     orders.Repository
	Users      *users.Repository
	Payouts    payoutEngine
	Notifier   orderNotifier
	Reviews    reviewRequester
	Countdown  Countdown
	Outbox     outboxEmitter
}

type Service struct {
	logg       *logger.Logger
	db         txRunner
	deliveries Repository
	orders     orders.Repository
	users      *users.Repository
	payouts    payoutEngine
	notifier   orderNotifier
	reviews    reviewRequester
	countdown  Countdown
	outbox     outboxEmitter
	now        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Deliveries == nil {
		return nil, errors.New("delivery repository required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Users == nil {
		return nil, errors.New("users repository required")
	}
	if params.Payouts == nil {
		return nil, errors.New("payout engine required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox required")
	}
	return &Service{
		logg:       params.Logger,
		db:         params.DB,
		deliveries: params.Deliveries,
		orders:     params.Orders,
		users:      params.Users,
		payouts:    params.Payouts,
		notifier:   params.Notifier,
		reviews:    params.Reviews,
		countdown:  params.Countdown,
		outbox:     params.Outbox,
		now:        time.Now,
	}, nil
}

// UpdateStatusInput is a delivery partner's status update.
type UpdateStatusInput struct {
	UserID          uuid.UUID
	DeliveryOrderID uuid.UUID
	Status          string
	Notes           *string
}

// outcome records what a committed transition changed.
type outcome struct {
	firstShipped   bool
	orderCompleted bool
}

// UpdateStatus moves a delivery order through its lifecycle and runs the
// fulfillment side effects once the change is committed.
func (s *Service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.DeliveryOrder, error) {
	target, err := enums.ParseDeliveryOrderStatus(input.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ongeldige status").
			WithDetails(map[string]string{"status": "moet een van ACCEPTED PICKED_UP DELIVERED CANCELLED zijn"})
	}

	profile, err := s.users.FindDeliveryProfileByUserID(ctx, input.UserID)
	if errors.Is(err, users.ErrDeliveryProfileNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bezorgprofiel niet gevonden")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery profile")
	}

	current, err := s.deliveries.FindByID(ctx, input.DeliveryOrderID)
	if errors.Is(err, ErrNotFound) || (err == nil && current.DeliveryProfileID != profile.ID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bezorgopdracht niet gevonden")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery order")
	}

	ctx = s.logg.WithOrderID(ctx, current.OrderID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"delivery_order_id": current.ID.String(),
		"from":              current.Status,
		"to":                target,
	})

	if current.Status == target {
		return current, nil
	}
	if !CanTransition(current.Status, target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("status kan niet van %s naar %s", current.Status, target))
	}

	now := s.now().UTC()
	updates := map[string]any{"status": target}
	if notes := trimmedNotes(input.Notes); notes != nil {
		updates["notes"] = *notes
	}
	switch target {
	case enums.DeliveryOrderStatusPickedUp:
		updates["picked_up_at"] = now
	case enums.DeliveryOrderStatusDelivered:
		updates["delivered_at"] = now
		updates["actual_delivery_time_minutes"] = s.elapsedMinutes(ctx, current.ID, now)
	}

	var result outcome
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.apply(ctx, tx, current, profile, target, updates, now)
		return txErr
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery status")
	}

	updated, err := s.deliveries.FindByID(ctx, current.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload delivery order")
	}
	s.logg.Info(ctx, "delivery status updated")
	s.afterCommit(ctx, updated, target, result, now)
	return updated, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, current *models.DeliveryOrder, profile *models.DeliveryProfile, target enums.DeliveryOrderStatus, updates map[string]any, now time.Time) (outcome, error) {
	var result outcome
	deliveries := s.deliveries.WithTx(tx)
	ok, err := deliveries.Transition(ctx, current.ID, current.Status, updates)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, pkgerrors.New(pkgerrors.CodeStateConflict, "status is intussen gewijzigd")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDeliveryStatusChanged,
		AggregateType: enums.AggregateDeliveryOrder,
		AggregateID:   current.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: profile.UserID, Role: string(enums.UserRoleDelivery)},
		Data: payloads.DeliveryStatusChangedEvent{
			DeliveryOrderID:   current.ID,
			OrderID:           current.OrderID,
			DeliveryProfileID: current.DeliveryProfileID,
			From:              current.Status,
			To:                target,
		},
	}); err != nil {
		return result, err
	}

	orderRepo := s.orders.WithTx(tx)
	switch target {
	case enums.DeliveryOrderStatusPickedUp:
		result.firstShipped, err = orderRepo.MarkShipped(ctx, current.OrderID, now)
		if err != nil {
			return result, err
		}
	case enums.DeliveryOrderStatusDelivered:
		// serialises sibling completions so the last one sees every DELIVERED row
		if err := orderRepo.LockForUpdate(ctx, current.OrderID); err != nil {
			return result, err
		}
		share := payouts.PartnerShare(current.DeliveryFeeCents, s.payouts.PartnerSharePercent())
		if err := s.users.WithTx(tx).RecordDelivery(ctx, profile.ID, share); err != nil {
			return result, err
		}
		siblings, err := deliveries.ListByOrderID(ctx, current.OrderID)
		if err != nil {
			return result, err
		}
		if !allDelivered(siblings) {
			return result, nil
		}
		result.firstShipped, err = orderRepo.MarkShipped(ctx, current.OrderID, now)
		if err != nil {
			return result, err
		}
		result.orderCompleted, err = orderRepo.MarkDelivered(ctx, current.OrderID, now)
		if err != nil {
			return result, err
		}
		if result.orderCompleted {
			order, err := orderRepo.FindByID(ctx, current.OrderID)
			if err != nil {
				return result, err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderDelivered,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderDeliveredEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					BuyerID:     order.UserID,
					Source:      "delivery",
					DeliveredAt: now,
				},
			}); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func (s *Service) afterCommit(ctx context.Context, updated *models.DeliveryOrder, target enums.DeliveryOrderStatus, result outcome, now time.Time) {
	switch target {
	case enums.DeliveryOrderStatusPickedUp:
		if s.countdown != nil {
			if err := s.countdown.Start(ctx, updated.ID, now); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "countdown start failed")
			}
		}
		s.notifyParties(ctx, updated.OrderID, "Bestelling opgehaald", "is opgehaald door de bezorger", true)
	case enums.DeliveryOrderStatusDelivered:
		s.clearCountdown(ctx, updated.ID)
		s.notifyParties(ctx, updated.OrderID, "Bestelling bezorgd", "is bezorgd", false)
		if _, err := s.payouts.PayDeliveryPartner(ctx, *updated); err != nil {
			s.logg.Error(ctx, "delivery partner payout failed", err)
		}
	case enums.DeliveryOrderStatusCancelled:
		s.clearCountdown(ctx, updated.ID)
	}

	if result.firstShipped {
		s.release(ctx, updated.OrderID, enums.PayoutTriggerShipped)
	}
	if result.orderCompleted {
		s.release(ctx, updated.OrderID, enums.PayoutTriggerDelivered)
		if s.reviews != nil {
			if err := s.reviews.RequestReviews(ctx, updated.OrderID); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "review requests failed")
			}
		}
	}
}

func (s *Service) release(ctx context.Context, orderID uuid.UUID, trigger enums.PayoutTrigger) {
	if _, err := s.payouts.ReleaseForOrder(ctx, orderID, trigger); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "trigger", trigger), "escrow release failed", err)
	}
}

// notifyParties tells the buyer, and the sellers when includeSellers is set.
func (s *Service) notifyParties(ctx context.Context, orderID uuid.UUID, title, verb string, includeSellers bool) {
	if s.notifier == nil {
		return
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order lookup for notification failed")
		return
	}
	recipients := []uuid.UUID{order.UserID}
	if includeSellers {
		sellers, err := s.users.SellerUserIDsForOrder(ctx, orderID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "seller lookup for notification failed")
		}
		recipients = append(recipients, sellers...)
	}
	for _, userID := range recipients {
		err := s.notifier.SendOrderUpdate(ctx, notifications.OrderUpdate{
			UserID:      userID,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Title:       title,
			Message:     fmt.Sprintf("Bestelling %s %s.", order.OrderNumber, verb),
		})
		if err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"recipient_id": userID.String(),
				"error":        err.Error(),
			}), "delivery notification failed")
		}
	}
}

// elapsedMinutes reads the running countdown without ending it; the countdown
// is cleared only once the DELIVERED transition has committed.
func (s *Service) elapsedMinutes(ctx context.Context, deliveryOrderID uuid.UUID, now time.Time) *int {
	if s.countdown == nil {
		return nil
	}
	minutes, err := s.countdown.Elapsed(ctx, deliveryOrderID, now)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "countdown read failed")
		return nil
	}
	return minutes
}

func (s *Service) clearCountdown(ctx context.Context, deliveryOrderID uuid.UUID) {
	if s.countdown == nil {
		return
	}
	if err := s.countdown.Clear(ctx, deliveryOrderID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "countdown clear failed")
	}
}

func allDelivered(rows []models.DeliveryOrder) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if row.Status != enums.DeliveryOrderStatusDelivered {
			return false
		}
	}
	return true
}

func trimmedNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	value := strings.TrimSpace(*notes)
	if value == "" {
		return nil
	}
	return &value
}
