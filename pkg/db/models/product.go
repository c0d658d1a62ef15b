package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a listing owned directly by a user or through a seller profile.
type Product struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID        *uuid.UUID `gorm:"column:seller_id;type:uuid"`
	SellerProfileID *uuid.UUID `gorm:"column:seller_profile_id;type:uuid"`
	Title           string     `gorm:"column:title;not null"`
	PriceCents      int64      `gorm:"column:price_cents;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}

type ProductImage struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	URL       string    `gorm:"column:url;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
}

type Favorite struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
