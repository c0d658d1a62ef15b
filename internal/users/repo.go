package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrDeliveryProfileNotFound = errors.New("delivery profile not found")
)

// Repository exposes the user and profile lookups the fulfillment pipeline needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindDeliveryProfileByUserID resolves the delivery profile owned by a user.
func (r *Repository) FindDeliveryProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.DeliveryProfile, error) {
	return r.findDeliveryProfile(ctx, "user_id = ?", userID)
}

// FindDeliveryProfileByID loads a delivery profile by its id.
func (r *Repository) FindDeliveryProfileByID(ctx context.Context, id uuid.UUID) (*models.DeliveryProfile, error) {
	return r.findDeliveryProfile(ctx, "id = ?", id)
}

func (r *Repository) findDeliveryProfile(ctx context.Context, query string, arg any) (*models.DeliveryProfile, error) {
	var profile models.DeliveryProfile
	err := r.db.WithContext(ctx).Where(query, arg).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeliveryProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// RecordDelivery bumps the partner's delivery count and adds the partner share
// of the fee to the running earnings.
func (r *Repository) RecordDelivery(ctx context.Context, profileID uuid.UUID, earningsCents int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryProfile{}).
		Where("id = ?", profileID).
		UpdateColumns(map[string]any{
			"total_deliveries":     gorm.Expr("total_deliveries + ?", 1),
			"total_earnings_cents": gorm.Expr("total_earnings_cents + ?", earningsCents),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryProfileNotFound
	}
	return nil
}

// SellerUserIDsForOrder returns the distinct users selling the items of an
// order. Products listed through a seller profile resolve to the profile owner.
func (r *Repository) SellerUserIDsForOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var rows []struct {
		SellerID      *uuid.UUID
		ProfileUserID *uuid.UUID
	}
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("p.seller_id AS seller_id, sp.user_id AS profile_user_id").
		Joins("JOIN products p ON p.id = oi.product_id").
		Joins("LEFT JOIN seller_profiles sp ON sp.id = p.seller_profile_id").
		Where("oi.order_id = ?", orderID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]struct{}{}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		id := row.SellerID
		if id == nil {
			id = row.ProfileUserID
		}
		if id == nil {
			continue
		}
		if _, dup := seen[*id]; dup {
			continue
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	return ids, nil
}
