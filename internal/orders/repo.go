package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// ErrNotFound is returned when no order matches the lookup.
var ErrNotFound = errors.New("order not found")

// Repository owns order reads and the guarded fulfillment transitions. Order
// items are a checkout snapshot and have no update path here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByShippingLabelID(ctx context.Context, carrierLabelID string) (*models.Order, error)
	LoadWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error)
	HasPaidOrderWithProduct(ctx context.Context, buyerID, productID uuid.UUID) (*models.Order, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) error
	MarkShipped(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	UpdateShippingStatus(ctx context.Context, id uuid.UUID, status enums.ShippingStatus) error
	BackfillTrackingNumber(ctx context.Context, id uuid.UUID, tracking string) (bool, error)
	AttachShippingLabel(ctx context.Context, id uuid.UUID, carrierLabelID string) (bool, error)
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(r.db.WithContext(ctx).Where("order_number = ?", orderNumber))
}

func (r *repository) FindByShippingLabelID(ctx context.Context, carrierLabelID string) (*models.Order, error) {
	return r.findOne(r.db.WithContext(ctx).Where("shipping_label_id = ?", carrierLabelID))
}

// LoadWithItems returns the order with its items and their products.
func (r *repository) LoadWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("id = ?", id))
}

// HasPaidOrderWithProduct returns the most recent paid order of the buyer that
// contains the product, or ErrNotFound.
func (r *repository) HasPaidOrderWithProduct(ctx context.Context, buyerID, productID uuid.UUID) (*models.Order, error) {
	return r.findOne(r.db.WithContext(ctx).
		Where("user_id = ?", buyerID).
		Where("status IN ?", enums.PaidOrderStatuses).
		Where("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.product_id = ?)", productID).
		Order("created_at DESC"))
}

// LockForUpdate row-locks the order until the surrounding transaction ends.
func (r *repository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// MarkShipped sets shipped_at the first time only. A delivered order keeps its
// DELIVERED status; a cancelled order is left untouched.
func (r *repository) MarkShipped(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND shipped_at IS NULL AND status <> ?", id, enums.OrderStatusCancelled).
		Updates(map[string]any{
			"shipped_at": at.UTC(),
			"status":     gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END", enums.OrderStatusDelivered, enums.OrderStatusShipped),
			"updated_at": r.now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkDelivered sets delivered_at and DELIVERED the first time only.
func (r *repository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND delivered_at IS NULL", id).
		Updates(map[string]any{
			"delivered_at": at.UTC(),
			"status":       enums.OrderStatusDelivered,
			"updated_at":   r.now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateShippingStatus stores the latest carrier status. Once delivered, only a
// delivered status is accepted.
func (r *repository) UpdateShippingStatus(ctx context.Context, id uuid.UUID, status enums.ShippingStatus) error {
	if status.IsZero() {
		return nil
	}
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id)
	if !status.IsDelivered() {
		query = query.Where("delivered_at IS NULL")
	}
	return query.Updates(map[string]any{
		"shipping_status": status,
		"updated_at":      r.now().UTC(),
	}).Error
}

// BackfillTrackingNumber sets the tracking number only when none is stored.
func (r *repository) BackfillTrackingNumber(ctx context.Context, id uuid.UUID, tracking string) (bool, error) {
	if tracking == "" {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND (shipping_tracking_number IS NULL OR shipping_tracking_number = '')", id).
		Updates(map[string]any{
			"shipping_tracking_number": tracking,
			"updated_at":               r.now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AttachShippingLabel links a carrier label to an order that has none yet.
func (r *repository) AttachShippingLabel(ctx context.Context, id uuid.UUID, carrierLabelID string) (bool, error) {
	if carrierLabelID == "" {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND (shipping_label_id IS NULL OR shipping_label_id = '')", id).
		Updates(map[string]any{
			"shipping_label_id": carrierLabelID,
			"updated_at":        r.now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) findOne(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := query.First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
