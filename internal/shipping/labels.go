package shipping

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

// LabelRepository persists carrier shipping labels.
type LabelRepository interface {
	WithTx(tx *gorm.DB) LabelRepository
	FindByCarrierLabelID(ctx context.Context, carrierLabelID string) (*models.ShippingLabel, error)
	Upsert(ctx context.Context, label *models.ShippingLabel) error
	MirrorStatus(ctx context.Context, id uuid.UUID, status enums.ShippingLabelStatus) error
}

type labelRepository struct {
	db *gorm.DB
}

func NewLabelRepository(db *gorm.DB) LabelRepository {
	return &labelRepository{db: db}
}

func (r *labelRepository) WithTx(tx *gorm.DB) LabelRepository {
	if tx == nil {
		return r
	}
	return &labelRepository{db: tx}
}

// FindByCarrierLabelID returns nil, nil when the label is unknown.
func (r *labelRepository) FindByCarrierLabelID(ctx context.Context, carrierLabelID string) (*models.ShippingLabel, error) {
	if carrierLabelID == "" {
		return nil, nil
	}
	var label models.ShippingLabel
	err := r.db.WithContext(ctx).Where("carrier_label_id = ?", carrierLabelID).First(&label).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// Upsert inserts a generated label or refreshes the carrier fields of an
// existing one. The status of an existing label is never reset.
func (r *labelRepository) Upsert(ctx context.Context, label *models.ShippingLabel) error {
	if label.ID == uuid.Nil {
		label.ID = uuid.New()
	}
	if label.Status == "" {
		label.Status = enums.ShippingLabelStatusGenerated
	}
	now := time.Now().UTC()
	if label.CreatedAt.IsZero() {
		label.CreatedAt = now
	}
	label.UpdatedAt = now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "carrier_label_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"tracking_number": gorm.Expr("COALESCE(excluded.tracking_number, shipping_labels.tracking_number)"),
			"pdf_url":         gorm.Expr("COALESCE(excluded.pdf_url, shipping_labels.pdf_url)"),
			"price_cents":     gorm.Expr("COALESCE(excluded.price_cents, shipping_labels.price_cents)"),
			"order_id":        gorm.Expr("COALESCE(excluded.order_id, shipping_labels.order_id)"),
			"carrier":         gorm.Expr("excluded.carrier"),
			"updated_at":      now,
		}),
	}).Create(label).Error
}

// MirrorStatus copies the order's fulfillment state onto the label. A
// delivered label is never moved back to shipped.
func (r *labelRepository) MirrorStatus(ctx context.Context, id uuid.UUID, status enums.ShippingLabelStatus) error {
	query := r.db.WithContext(ctx).Model(&models.ShippingLabel{}).Where("id = ?", id)
	if status != enums.ShippingLabelStatusDelivered {
		query = query.Where("status <> ?", enums.ShippingLabelStatusDelivered)
	}
	return query.Updates(map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}).Error
}
