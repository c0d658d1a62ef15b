package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// DeliveryOrder assigns part of an order to a delivery partner.
type DeliveryOrder struct {
	ID                        uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID                   uuid.UUID                 `gorm:"column:order_id;type:uuid;not null" json:"orderId"`
	DeliveryProfileID         uuid.UUID                 `gorm:"column:delivery_profile_id;type:uuid;not null" json:"deliveryProfileId"`
	Status                    enums.DeliveryOrderStatus `gorm:"column:status;type:text;not null" json:"status"`
	PickedUpAt                *time.Time                `gorm:"column:picked_up_at" json:"pickedUpAt,omitempty"`
	DeliveredAt               *time.Time                `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	ActualDeliveryTimeMinutes *int                      `gorm:"column:actual_delivery_time_minutes" json:"actualDeliveryTime,omitempty"`
	DeliveryFeeCents          int64                     `gorm:"column:delivery_fee_cents;not null" json:"deliveryFeeCents"`
	Notes                     *string                   `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt                 time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt                 time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
