package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// PaymentEscrow holds a seller's share of an order until the payout trigger fires.
// AmountCents is already net of the platform fee.
type PaymentEscrow struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	SellerID         uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	AmountCents      int64               `gorm:"column:amount_cents;not null"`
	PlatformFeeCents int64               `gorm:"column:platform_fee_cents;not null;default:0"`
	PayoutTrigger    enums.PayoutTrigger `gorm:"column:payout_trigger;type:text;not null"`
	CurrentStatus    enums.EscrowStatus  `gorm:"column:current_status;type:text;not null"`
	PaidOutAt        *time.Time          `gorm:"column:paid_out_at"`
	LastError        *string             `gorm:"column:last_error"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
