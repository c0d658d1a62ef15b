package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductReview is either a placeholder awaiting a tokenized submission or a
// submitted review. Submitted reviews have ReviewSubmittedAt set.
type ProductReview struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID          uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	BuyerID            uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null"`
	OrderID            *uuid.UUID `gorm:"column:order_id;type:uuid"`
	Rating             int        `gorm:"column:rating;not null;default:0"`
	Title              *string    `gorm:"column:title"`
	Comment            string     `gorm:"column:comment;not null;default:''"`
	IsVerified         bool       `gorm:"column:is_verified;not null;default:false"`
	ReviewToken        *string    `gorm:"column:review_token;uniqueIndex"`
	ReviewTokenExpires *time.Time `gorm:"column:review_token_expires"`
	ReviewSubmittedAt  *time.Time `gorm:"column:review_submitted_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`

	Images []ReviewImage `gorm:"foreignKey:ReviewID"`
}

// Submitted reports whether the buyer has completed the review.
func (r ProductReview) Submitted() bool {
	return r.ReviewSubmittedAt != nil
}

type ReviewImage struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ReviewID  uuid.UUID `gorm:"column:review_id;type:uuid;not null"`
	URL       string    `gorm:"column:url;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
}
