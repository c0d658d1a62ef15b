package reviews

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/pagination"
)

var (
	// ErrNotFound is returned when no review matches the lookup.
	ErrNotFound = errors.New("review not found")
	// ErrProductNotFound is returned when the reviewed product does not exist.
	ErrProductNotFound = errors.New("product not found")
)

// Content is what a buyer writes when submitting a review.
type Content struct {
	Rating  int
	Title   *string
	Comment string
}

// ProductInfo is the product context shown next to a review.
type ProductInfo struct {
	ID           uuid.UUID
	Title        string
	SellerUserID *uuid.UUID
}

// SortOrder selects how submitted reviews are listed.
type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortHighest SortOrder = "highest"
	SortLowest  SortOrder = "lowest"
)

// ParseSortOrder falls back to newest for empty or unknown values.
func ParseSortOrder(value string) SortOrder {
	switch SortOrder(value) {
	case SortOldest, SortHighest, SortLowest:
		return SortOrder(value)
	}
	return SortNewest
}

func (s SortOrder) clause() string {
	switch s {
	case SortOldest:
		return "review_submitted_at ASC, id ASC"
	case SortHighest:
		return "rating DESC, review_submitted_at DESC"
	case SortLowest:
		return "rating ASC, review_submitted_at DESC"
	}
	return "review_submitted_at DESC, id DESC"
}

// ListFilter narrows ListSubmitted. Rating zero means all ratings.
type ListFilter struct {
	Sort   SortOrder
	Rating int
	Page   pagination.Params
}

// Repository persists product reviews and their images.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByToken(ctx context.Context, token string) (*models.ProductReview, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductReview, error)
	FindByProductAndBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*models.ProductReview, error)
	Create(ctx context.Context, review *models.ProductReview) error
	ClaimByToken(ctx context.Context, id uuid.UUID, token string, content Content, now time.Time) (bool, error)
	CompletePlaceholder(ctx context.Context, id uuid.UUID, content Content, now time.Time) (bool, error)
	AddImages(ctx context.Context, reviewID uuid.UUID, urls []string) error
	ListSubmitted(ctx context.Context, productID uuid.UUID, filter ListFilter) ([]models.ProductReview, int64, error)
	AverageRating(ctx context.Context, productID uuid.UUID) (float64, error)
	DeleteExpiredPlaceholders(ctx context.Context, cutoff time.Time) (int64, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*ProductInfo, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.ProductReview, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.findOne(r.db.WithContext(ctx).Where("review_token = ?", token))
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductReview, error) {
	return r.findOne(r.db.WithContext(ctx).Preload("Images", orderImages).Where("id = ?", id))
}

// FindByProductAndBuyer returns nil, nil when the buyer has no review row for
// the product.
func (r *repository) FindByProductAndBuyer(ctx context.Context, productID, buyerID uuid.UUID) (*models.ProductReview, error) {
	review, err := r.findOne(r.db.WithContext(ctx).Where("product_id = ? AND buyer_id = ?", productID, buyerID))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return review, err
}

func (r *repository) Create(ctx context.Context, review *models.ProductReview) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(review).Error
}

// ClaimByToken completes a placeholder while its token is unused and unexpired.
// The token is kept so a replayed link can be told apart from an unknown one.
func (r *repository) ClaimByToken(ctx context.Context, id uuid.UUID, token string, content Content, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Where("id = ? AND review_token = ? AND review_submitted_at IS NULL AND review_token_expires > ?", id, token, now.UTC()).
		Updates(submitUpdates(content, now))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompletePlaceholder submits an existing unsubmitted row directly.
func (r *repository) CompletePlaceholder(ctx context.Context, id uuid.UUID, content Content, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Where("id = ? AND review_submitted_at IS NULL", id).
		Updates(submitUpdates(content, now))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AddImages(ctx context.Context, reviewID uuid.UUID, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	rows := make([]models.ReviewImage, 0, len(urls))
	for i, url := range urls {
		rows = append(rows, models.ReviewImage{ID: uuid.New(), ReviewID: reviewID, URL: url, SortOrder: i})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) ListSubmitted(ctx context.Context, productID uuid.UUID, filter ListFilter) ([]models.ProductReview, int64, error) {
	page := filter.Page.Normalize()
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).
			Model(&models.ProductReview{}).
			Where("product_id = ? AND review_submitted_at IS NOT NULL", productID)
		if filter.Rating >= 1 && filter.Rating <= 5 {
			query = query.Where("rating = ?", filter.Rating)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ProductReview
	if err := scoped().
		Preload("Images", orderImages).
		Order(filter.Sort.clause()).
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// AverageRating is computed over all submitted reviews of the product.
func (r *repository) AverageRating(ctx context.Context, productID uuid.UUID) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.WithContext(ctx).
		Model(&models.ProductReview{}).
		Select("AVG(rating)").
		Where("product_id = ? AND review_submitted_at IS NOT NULL", productID).
		Row().
		Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// DeleteExpiredPlaceholders removes unsubmitted placeholders whose token
// expired before cutoff.
func (r *repository) DeleteExpiredPlaceholders(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("review_submitted_at IS NULL AND review_token_expires IS NOT NULL AND review_token_expires < ?", cutoff.UTC()).
		Delete(&models.ProductReview{})
	return res.RowsAffected, res.Error
}

// FindProduct resolves the product and the user who sells it.
func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*ProductInfo, error) {
	var rows []struct {
		ID            uuid.UUID
		Title         string
		SellerID      *uuid.UUID
		ProfileUserID *uuid.UUID
	}
	err := r.db.WithContext(ctx).
		Table("products AS p").
		Select("p.id AS id, p.title AS title, p.seller_id AS seller_id, sp.user_id AS profile_user_id").
		Joins("LEFT JOIN seller_profiles sp ON sp.id = p.seller_profile_id").
		Where("p.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrProductNotFound
	}
	row := rows[0]
	seller := row.SellerID
	if seller == nil {
		seller = row.ProfileUserID
	}
	return &ProductInfo{ID: row.ID, Title: row.Title, SellerUserID: seller}, nil
}

func (r *repository) findOne(query *gorm.DB) (*models.ProductReview, error) {
	var review models.ProductReview
	err := query.First(&review).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func submitUpdates(content Content, now time.Time) map[string]any {
	return map[string]any{
		"rating":              content.Rating,
		"title":               content.Title,
		"comment":             content.Comment,
		"is_verified":         true,
		"review_submitted_at": now.UTC(),
	}
}

func orderImages(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC")
}
