package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/escrow"
	dbpkg "github.com/rassdread/homecheff-app-sub014/pkg/db"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/metrics"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox/payloads"
)

// SkipReason explains why an escrow was not released.
type SkipReason string

const (
	SkipNoEscrow        SkipReason = "no_escrow"
	SkipNotHeld         SkipReason = "not_held"
	SkipTriggerMismatch SkipReason = "trigger_mismatch"
	SkipNoDestination   SkipReason = "no_destination"
	SkipAlreadyClaimed  SkipReason = "already_claimed"
)

// EscrowOutcome is what happened to one escrow of an order.
type EscrowOutcome struct {
	EscrowID  uuid.UUID
	SellerID  uuid.UUID
	Released  bool
	Scheduled bool
	Skipped   SkipReason
	PayoutID  *uuid.UUID
}

// ReleaseResult summarizes ReleaseForOrder. Skipped is set when the order has
// no escrow at all.
type ReleaseResult struct {
	OrderID  uuid.UUID
	Skipped  SkipReason
	Outcomes []EscrowOutcome
}

// Released counts the escrows paid out by this call.
func (r ReleaseResult) Released() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Released {
			n++
		}
	}
	return n
}

// PartnerPayoutResult reports the delivery-partner payout for a delivery order.
type PartnerPayoutResult struct {
	Payout    *models.Payout
	Duplicate bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindDeliveryProfileByID(ctx context.Context, id uuid.UUID) (*models.DeliveryProfile, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type payoutNotifier interface {
	SendPayout(ctx context.Context, userID uuid.UUID, amountCents int64, orderID *uuid.UUID) error
}

// EngineParams wires the payout engine.
type EngineParams struct {
	Logger              *logger.Logger
	DB                  txRunner
	Escrows             escrow.Repository
	Payouts             Repository
	Users               userLookup
	Destination         PayoutDestination
	PartnerDestination  PartnerPayoutDestination
	Outbox              outboxEmitter
	Notifier            payoutNotifier
	Metrics             *metrics.PayoutMetrics
	Currency            string
	PartnerSharePercent int
}

// Engine releases escrowed seller money and records delivery-partner payouts.
// It is the only writer of escrow status.
type Engine struct {
	logg           *logger.Logger
	db             txRunner
	escrows        escrow.Repository
	payouts        Repository
	users          userLookup
	destination    PayoutDestination
	partnerDest    PartnerPayoutDestination
	outbox         outboxEmitter
	notifier       payoutNotifier
	metrics        *metrics.PayoutMetrics
	currency       string
	partnerPercent int
	now            func() time.Time
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Escrows == nil {
		return nil, errors.New("escrow repository required")
	}
	if params.Payouts == nil {
		return nil, errors.New("payout repository required")
	}
	if params.Users == nil {
		return nil, errors.New("user lookup required")
	}
	if params.Destination == nil {
		return nil, errors.New("payout destination required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox required")
	}
	partnerDest := params.PartnerDestination
	if partnerDest == nil {
		partnerDest = LedgerOnlyDestination{}
	}
	percent := params.PartnerSharePercent
	if percent <= 0 {
		percent = DefaultPartnerSharePercent
	}
	currency := params.Currency
	if currency == "" {
		currency = "eur"
	}
	return &Engine{
		logg:           params.Logger,
		db:             params.DB,
		escrows:        params.Escrows,
		payouts:        params.Payouts,
		users:          params.Users,
		destination:    params.Destination,
		partnerDest:    partnerDest,
		outbox:         params.Outbox,
		notifier:       params.Notifier,
		metrics:        params.Metrics,
		currency:       currency,
		partnerPercent: percent,
		now:            time.Now,
	}, nil
}

// PartnerSharePercent exposes the configured delivery-partner share.
func (e *Engine) PartnerSharePercent() int {
	return e.partnerPercent
}

// ReleaseForOrder pays out every held escrow of the order whose payout trigger
// matches. Escrows that do not qualify are skipped silently.
func (e *Engine) ReleaseForOrder(ctx context.Context, orderID uuid.UUID, trigger enums.PayoutTrigger) (*ReleaseResult, error) {
	if orderID == uuid.Nil {
		return nil, errors.New("order id is required")
	}
	if !trigger.IsValid() {
		return nil, fmt.Errorf("invalid payout trigger %q", trigger)
	}
	ctx = e.logg.WithOrderID(ctx, orderID.String())
	result := &ReleaseResult{OrderID: orderID}

	escrows, err := e.escrows.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load escrows: %w", err)
	}
	if len(escrows) == 0 {
		result.Skipped = SkipNoEscrow
		e.metrics.IncSkipped(string(SkipNoEscrow))
		return result, nil
	}

	for _, row := range escrows {
		outcome, err := e.releaseEscrow(ctx, row, trigger)
		if err != nil {
			return result, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func (e *Engine) releaseEscrow(ctx context.Context, row models.PaymentEscrow, trigger enums.PayoutTrigger) (EscrowOutcome, error) {
	outcome := EscrowOutcome{EscrowID: row.ID, SellerID: row.SellerID}
	ctx = e.logg.WithField(ctx, "escrow_id", row.ID.String())

	skip := func(reason SkipReason) (EscrowOutcome, error) {
		outcome.Skipped = reason
		e.metrics.IncSkipped(string(reason))
		return outcome, nil
	}

	if row.CurrentStatus != enums.EscrowStatusHeld {
		return skip(SkipNotHeld)
	}
	if row.PayoutTrigger != trigger {
		return skip(SkipTriggerMismatch)
	}
	seller, err := e.users.FindByID(ctx, row.SellerID)
	if err != nil {
		return outcome, fmt.Errorf("load seller: %w", err)
	}
	if !seller.HasPayoutDestination() {
		e.logg.Warn(ctx, "seller has no payout destination; escrow stays held")
		return skip(SkipNoDestination)
	}

	claimed, err := e.escrows.ClaimForPayout(ctx, row.ID)
	if err != nil {
		return outcome, fmt.Errorf("claim escrow: %w", err)
	}
	if !claimed {
		return skip(SkipAlreadyClaimed)
	}

	payout, err := e.transferAndComplete(ctx, row, seller)
	if err != nil {
		if errors.Is(err, errTransfer) {
			outcome.Scheduled = true
			return outcome, nil
		}
		return outcome, err
	}
	outcome.Released = true
	if payout != nil {
		outcome.PayoutID = &payout.ID
	}
	return outcome, nil
}

var errTransfer = errors.New("transfer failed")

// RetryScheduled retries the transfer for an escrow stuck in payout_scheduled.
// The idempotency key is the same as the first attempt.
func (e *Engine) RetryScheduled(ctx context.Context, row models.PaymentEscrow) error {
	if row.CurrentStatus != enums.EscrowStatusPayoutScheduled {
		return nil
	}
	ctx = e.logg.WithOrderID(ctx, row.OrderID.String())
	ctx = e.logg.WithField(ctx, "escrow_id", row.ID.String())

	existing, err := e.payouts.FindByEscrowID(ctx, row.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		// payout recorded but status update lost; finish the status move only
		_, err := e.escrows.MarkPaidOut(ctx, row.ID, existing.CreatedAt)
		return err
	}

	seller, err := e.users.FindByID(ctx, row.SellerID)
	if err != nil {
		return fmt.Errorf("load seller: %w", err)
	}
	if !seller.HasPayoutDestination() {
		return fmt.Errorf("seller %s has no payout destination", seller.ID)
	}
	_, err = e.transferAndComplete(ctx, row, seller)
	return err
}

func (e *Engine) transferAndComplete(ctx context.Context, row models.PaymentEscrow, seller *models.User) (*models.Payout, error) {
	providerRef, err := e.destination.Transfer(ctx, TransferRequest{
		EscrowID:    row.ID,
		OrderID:     row.OrderID,
		AmountCents: row.AmountCents,
		Currency:    e.currency,
		Destination: *seller.StripeConnectAccountID,
	})
	if err != nil {
		e.logg.Error(ctx, "seller transfer failed; escrow left payout_scheduled", err)
		e.metrics.IncScheduled()
		if markErr := e.escrows.MarkFailed(ctx, row.ID, err.Error()); markErr != nil {
			e.logg.Error(ctx, "failed to record transfer error on escrow", markErr)
		}
		return nil, fmt.Errorf("%w: %v", errTransfer, err)
	}

	paidAt := e.now().UTC()
	payout := &models.Payout{
		ID:          uuid.New(),
		ToUserID:    seller.ID,
		AmountCents: row.AmountCents,
		OrderID:     &row.OrderID,
		EscrowID:    &row.ID,
		Kind:        enums.PayoutKindSeller,
		ProviderRef: optionalString(providerRef),
		CreatedAt:   paidAt,
	}
	err = e.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := e.escrows.WithTx(tx).MarkPaidOut(ctx, row.ID, paidAt)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("escrow %s left payout_scheduled concurrently", row.ID)
		}
		if err := e.payouts.WithTx(tx).Create(ctx, payout); err != nil {
			return err
		}
		return e.emitPayoutRecorded(ctx, tx, payout)
	})
	if err != nil {
		// the transfer went through; the reconcile job finishes the bookkeeping
		e.logg.Error(ctx, "failed to record seller payout after transfer", err)
		if markErr := e.escrows.MarkFailed(ctx, row.ID, "bookkeeping: "+err.Error()); markErr != nil {
			e.logg.Error(ctx, "failed to record bookkeeping error on escrow", markErr)
		}
		return nil, fmt.Errorf("record payout: %w", err)
	}

	e.metrics.IncReleased(string(enums.PayoutKindSeller))
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"payout_id":    payout.ID.String(),
		"amount_cents": payout.AmountCents,
		"provider_ref": providerRef,
	})
	e.logg.Info(logCtx, "seller payout released")
	e.notify(ctx, payout)
	return payout, nil
}

// PayDeliveryPartner records the partner share of a delivered order's fee.
// Recording is idempotent per delivery order.
func (e *Engine) PayDeliveryPartner(ctx context.Context, order models.DeliveryOrder) (*PartnerPayoutResult, error) {
	if order.Status != enums.DeliveryOrderStatusDelivered {
		return nil, fmt.Errorf("delivery order %s is not delivered", order.ID)
	}
	ctx = e.logg.WithOrderID(ctx, order.OrderID.String())
	ctx = e.logg.WithField(ctx, "delivery_order_id", order.ID.String())

	existing, err := e.payouts.FindByDeliveryOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &PartnerPayoutResult{Payout: existing, Duplicate: true}, nil
	}

	profile, err := e.users.FindDeliveryProfileByID(ctx, order.DeliveryProfileID)
	if err != nil {
		return nil, fmt.Errorf("load delivery profile: %w", err)
	}
	share := PartnerShare(order.DeliveryFeeCents, e.partnerPercent)
	if share <= 0 {
		e.metrics.IncSkipped("zero_fee")
		return &PartnerPayoutResult{}, nil
	}

	providerRef, err := e.partnerDest.PayPartner(ctx, PartnerTransfer{
		DeliveryOrderID: order.ID,
		OrderID:         order.OrderID,
		ToUserID:        profile.UserID,
		AmountCents:     share,
	})
	if err != nil {
		return nil, fmt.Errorf("partner payout: %w", err)
	}

	orderID := order.OrderID
	deliveryOrderID := order.ID
	payout := &models.Payout{
		ID:              uuid.New(),
		ToUserID:        profile.UserID,
		AmountCents:     share,
		OrderID:         &orderID,
		DeliveryOrderID: &deliveryOrderID,
		Kind:            enums.PayoutKindDeliveryPartner,
		ProviderRef:     optionalString(providerRef),
		CreatedAt:       e.now().UTC(),
	}
	err = e.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := e.payouts.WithTx(tx).Create(ctx, payout); err != nil {
			return err
		}
		return e.emitPayoutRecorded(ctx, tx, payout)
	})
	if dbpkg.IsUniqueViolation(err, "") {
		existing, findErr := e.payouts.FindByDeliveryOrderID(ctx, order.ID)
		if findErr != nil {
			return nil, findErr
		}
		return &PartnerPayoutResult{Payout: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record partner payout: %w", err)
	}

	e.metrics.IncReleased(string(enums.PayoutKindDeliveryPartner))
	e.logg.Info(e.logg.WithField(ctx, "amount_cents", share), "delivery partner payout recorded")
	e.notify(ctx, payout)
	return &PartnerPayoutResult{Payout: payout}, nil
}

func (e *Engine) emitPayoutRecorded(ctx context.Context, tx *gorm.DB, payout *models.Payout) error {
	return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPayoutRecorded,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Version:       1,
		Data: payloads.PayoutRecordedEvent{
			PayoutID:        payout.ID,
			Kind:            payout.Kind,
			ToUserID:        payout.ToUserID,
			OrderID:         payout.OrderID,
			EscrowID:        payout.EscrowID,
			DeliveryOrderID: payout.DeliveryOrderID,
			AmountCents:     payout.AmountCents,
			ProviderRef:     payout.ProviderRef,
		},
	})
}

func (e *Engine) notify(ctx context.Context, payout *models.Payout) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.SendPayout(ctx, payout.ToUserID, payout.AmountCents, payout.OrderID); err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "payout notification failed")
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
