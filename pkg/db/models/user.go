package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

// User is the marketplace identity. Sellers receive payouts on their Stripe
// Connect account.
type User struct {
	ID                     uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email                  string         `gorm:"type:text;not null;uniqueIndex"`
	Name                   string         `gorm:"type:text;not null"`
	Role                   enums.UserRole `gorm:"type:text;not null"`
	StripeConnectAccountID *string        `gorm:"column:stripe_connect_account_id"`
	CreatedAt              time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// HasPayoutDestination reports whether the user can receive transfers.
func (u User) HasPayoutDestination() bool {
	return u.StripeConnectAccountID != nil && *u.StripeConnectAccountID != ""
}

// SellerProfile is the storefront of a seller.
type SellerProfile struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// WorkplacePhoto belongs to a seller profile.
type WorkplacePhoto struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerProfileID uuid.UUID `gorm:"column:seller_profile_id;type:uuid;not null"`
	URL             string    `gorm:"column:url;not null"`
	SortOrder       int       `gorm:"column:sort_order;not null;default:0"`
}

// DeliveryProfile holds the running totals of a delivery partner.
type DeliveryProfile struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	TotalDeliveries    int       `gorm:"column:total_deliveries;not null;default:0"`
	TotalEarningsCents int64     `gorm:"column:total_earnings_cents;not null;default:0"`
	IsActive           bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}
