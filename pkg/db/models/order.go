package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// Order is a buyer's paid purchase moving through fulfillment.
type Order struct {
	ID                     uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber            string               `gorm:"column:order_number;not null;uniqueIndex"`
	UserID                 uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	Status                 enums.OrderStatus    `gorm:"column:status;type:text;not null"`
	ShippingStatus         enums.ShippingStatus `gorm:"column:shipping_status;type:text"`
	ShippedAt              *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt            *time.Time           `gorm:"column:delivered_at"`
	ShippingTrackingNumber *string              `gorm:"column:shipping_tracking_number"`
	ShippingLabelID        *string              `gorm:"column:shipping_label_id"`
	DeliveryMode           enums.DeliveryMode   `gorm:"column:delivery_mode;type:text;not null"`
	TotalAmountCents       int64                `gorm:"column:total_amount_cents;not null"`
	StripeSessionID        *string              `gorm:"column:stripe_session_id"`
	CreatedAt              time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem is an immutable price snapshot taken at checkout.
type OrderItem struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}
