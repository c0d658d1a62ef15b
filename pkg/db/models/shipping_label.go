package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// ShippingLabel is a carrier-generated label for an order.
type ShippingLabel struct {
	ID             uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        *uuid.UUID                `gorm:"column:order_id;type:uuid"`
	CarrierLabelID string                    `gorm:"column:carrier_label_id;not null;uniqueIndex"`
	TrackingNumber *string                   `gorm:"column:tracking_number"`
	PDFURL         *string                   `gorm:"column:pdf_url"`
	Carrier        string                    `gorm:"column:carrier;not null"`
	Status         enums.ShippingLabelStatus `gorm:"column:status;type:text;not null"`
	PriceCents     *int64                    `gorm:"column:price_cents"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
