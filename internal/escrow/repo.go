package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// ErrNotFound is returned when no escrow matches the lookup.
var ErrNotFound = errors.New("escrow not found")

// Repository is the escrow ledger. Status changes are compare-and-swap updates
// so two callers can never both move the same escrow out of a given state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, escrow *models.PaymentEscrow) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentEscrow, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEscrow, error)
	ClaimForPayout(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPaidOut(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ListStuckScheduled(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentEscrow, error)
	ListReleasable(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentEscrow, error)
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns an escrow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

func (r *repository) Create(ctx context.Context, escrow *models.PaymentEscrow) error {
	if escrow.ID == uuid.Nil {
		escrow.ID = uuid.New()
	}
	if escrow.CurrentStatus == "" {
		escrow.CurrentStatus = enums.EscrowStatusHeld
	}
	return r.db.WithContext(ctx).Create(escrow).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentEscrow, error) {
	var escrow models.PaymentEscrow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&escrow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEscrow, error) {
	var escrows []models.PaymentEscrow
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&escrows).Error; err != nil {
		return nil, err
	}
	return escrows, nil
}

// ClaimForPayout moves a held escrow to payout_scheduled. It reports false when
// the escrow was not held anymore.
func (r *repository) ClaimForPayout(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition(ctx, id, enums.EscrowStatusHeld, map[string]any{
		"current_status": enums.EscrowStatusPayoutScheduled,
		"updated_at":     r.now().UTC(),
	})
}

// MarkPaidOut completes a scheduled payout and clears any previous failure.
func (r *repository) MarkPaidOut(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, enums.EscrowStatusPayoutScheduled, map[string]any{
		"current_status": enums.EscrowStatusPaidOut,
		"paid_out_at":    at.UTC(),
		"last_error":     nil,
		"updated_at":     r.now().UTC(),
	})
}

// MarkFailed records a transfer failure on a scheduled escrow. The status is
// left untouched so the reconcile job can retry.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.transition(ctx, id, enums.EscrowStatusPayoutScheduled, map[string]any{
		"last_error": reason,
		"updated_at": r.now().UTC(),
	})
	return err
}

func (r *repository) ListStuckScheduled(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentEscrow, error) {
	if limit <= 0 {
		limit = 25
	}
	var escrows []models.PaymentEscrow
	if err := r.db.WithContext(ctx).
		Where("current_status = ?", enums.EscrowStatusPayoutScheduled).
		Where("updated_at < ?", olderThan.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&escrows).Error; err != nil {
		return nil, err
	}
	return escrows, nil
}

// ListReleasable returns held escrows whose order already reached the payout
// trigger before olderThan and whose seller can receive transfers.
func (r *repository) ListReleasable(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentEscrow, error) {
	if limit <= 0 {
		limit = 25
	}
	cutoff := olderThan.UTC()
	var escrows []models.PaymentEscrow
	if err := r.db.WithContext(ctx).
		Table("payment_escrows AS pe").
		Select("pe.*").
		Joins("JOIN orders o ON o.id = pe.order_id").
		Joins("JOIN users u ON u.id = pe.seller_id").
		Where("pe.current_status = ?", enums.EscrowStatusHeld).
		Where("u.stripe_connect_account_id IS NOT NULL AND u.stripe_connect_account_id <> ''").
		Where(
			"(pe.payout_trigger = ? AND o.shipped_at IS NOT NULL AND o.shipped_at < ?) OR (pe.payout_trigger = ? AND o.delivered_at IS NOT NULL AND o.delivered_at < ?)",
			enums.PayoutTriggerShipped, cutoff, enums.PayoutTriggerDelivered, cutoff,
		).
		Order("pe.created_at ASC").
		Limit(limit).
		Find(&escrows).Error; err != nil {
		return nil, err
	}
	return escrows, nil
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, from enums.EscrowStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentEscrow{}).
		Where("id = ? AND current_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
