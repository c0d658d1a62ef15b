package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// ErrNotFound is returned when no delivery order matches the lookup.
var ErrNotFound = errors.New("delivery order not found")

// Repository persists delivery orders. Status changes are conditional on the
// status the caller read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.DeliveryOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOrder, error)
	Transition(ctx context.Context, id uuid.UUID, from enums.DeliveryOrderStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

func (r *repository) Create(ctx context.Context, order *models.DeliveryOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.DeliveryOrderStatusAccepted
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryOrder, error) {
	var order models.DeliveryOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOrder, error) {
	var rows []models.DeliveryOrder
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition applies updates only while the row still has status from.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.DeliveryOrderStatus, updates map[string]any) (bool, error) {
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = r.now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
