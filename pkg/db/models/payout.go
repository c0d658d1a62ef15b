package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// Payout is an append-only record of money owed or sent to a user. The unique
// indexes on escrow_id and delivery_order_id make recording idempotent.
type Payout struct {
	ID              uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ToUserID        uuid.UUID        `gorm:"column:to_user_id;type:uuid;not null"`
	AmountCents     int64            `gorm:"column:amount_cents;not null"`
	OrderID         *uuid.UUID       `gorm:"column:order_id;type:uuid"`
	EscrowID        *uuid.UUID       `gorm:"column:escrow_id;type:uuid;uniqueIndex"`
	DeliveryOrderID *uuid.UUID       `gorm:"column:delivery_order_id;type:uuid;uniqueIndex"`
	Kind            enums.PayoutKind `gorm:"column:kind;type:text;not null"`
	ProviderRef     *string          `gorm:"column:provider_ref"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
}
