package payouts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
)

// Repository persists payout rows. Payouts are append-only: there is no
// update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payout, error)
	FindByEscrowID(ctx context.Context, escrowID uuid.UUID) (*models.Payout, error)
	FindByDeliveryOrderID(ctx context.Context, deliveryOrderID uuid.UUID) (*models.Payout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Payout, error) {
	var rows []models.Payout
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByEscrowID(ctx context.Context, escrowID uuid.UUID) (*models.Payout, error) {
	return r.findOne(ctx, "escrow_id = ?", escrowID)
}

func (r *repository) FindByDeliveryOrderID(ctx context.Context, deliveryOrderID uuid.UUID) (*models.Payout, error) {
	return r.findOne(ctx, "delivery_order_id = ?", deliveryOrderID)
}

// findOne returns nil, nil when no row matches.
func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where(query, arg).First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}
