package accounts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// scope holds the record ids owned by the user being deleted. It is resolved
// once, before any row is removed, so later steps can still find rows whose
// parents are already gone.
type scope struct {
	userID             uuid.UUID
	orderIDs           []uuid.UUID
	buyerReviewIDs     []uuid.UUID
	conversationIDs    []uuid.UUID
	directProductIDs   []uuid.UUID
	sellerProfileIDs   []uuid.UUID
	profileProductIDs  []uuid.UUID
	deliveryProfileIDs []uuid.UUID
}

func resolveScope(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*scope, error) {
	s := &scope{userID: userID}
	lookups := []struct {
		name   string
		table  string
		column string
		where  string
		dest   *[]uuid.UUID
	}{
		{"orders", "orders", "id", "user_id = ?", &s.orderIDs},
		{"buyer reviews", "product_reviews", "id", "buyer_id = ?", &s.buyerReviewIDs},
		{"conversations", "conversation_participants", "conversation_id", "user_id = ?", &s.conversationIDs},
		{"products", "products", "id", "seller_id = ?", &s.directProductIDs},
		{"seller profiles", "seller_profiles", "id", "user_id = ?", &s.sellerProfileIDs},
		{"delivery profiles", "delivery_profiles", "id", "user_id = ?", &s.deliveryProfileIDs},
	}
	for _, lookup := range lookups {
		err := tx.WithContext(ctx).Table(lookup.table).Where(lookup.where, userID).Pluck(lookup.column, lookup.dest).Error
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", lookup.name, err)
		}
	}
	if len(s.sellerProfileIDs) > 0 {
		err := tx.WithContext(ctx).
			Table("products").
			Where("seller_profile_id IN ? AND (seller_id IS NULL OR seller_id <> ?)", s.sellerProfileIDs, userID).
			Pluck("id", &s.profileProductIDs).Error
		if err != nil {
			return nil, fmt.Errorf("resolve profile products: %w", err)
		}
	}
	return s, nil
}

// deletionStep removes (or, with Set, detaches) the rows of Table matched by
// Where. Steps run in slice order inside one transaction.
type deletionStep struct {
	Name  string
	Table string
	Where func(s *scope) (string, []any)
	Set   map[string]any
}

func (st deletionStep) run(ctx context.Context, tx *gorm.DB, s *scope) (int64, error) {
	clause, args := st.Where(s)
	if st.Set == nil {
		res := tx.WithContext(ctx).Exec("DELETE FROM "+st.Table+" WHERE "+clause, args...)
		return res.RowsAffected, res.Error
	}
	res := tx.WithContext(ctx).Table(st.Table).Where(clause, args...).Updates(st.Set)
	return res.RowsAffected, res.Error
}

func byUser(column string) func(s *scope) (string, []any) {
	return func(s *scope) (string, []any) {
		return column + " = ?", []any{s.userID}
	}
}

func byIDs(column string, ids func(s *scope) []uuid.UUID) func(s *scope) (string, []any) {
	return func(s *scope) (string, []any) {
		return column + " IN ?", []any{ids(s)}
	}
}

var detachPayout = map[string]any{"order_id": nil, "escrow_id": nil, "delivery_order_id": nil}

// productSteps clears everything hanging off a set of products, then the
// products themselves.
func productSteps(label string, ids func(s *scope) []uuid.UUID) []deletionStep {
	return []deletionStep{
		{Name: label + " images", Table: "product_images", Where: byIDs("product_id", ids)},
		{Name: label + " review images", Table: "review_images", Where: func(s *scope) (string, []any) {
			return "review_id IN (SELECT id FROM product_reviews WHERE product_id IN ?)", []any{ids(s)}
		}},
		{Name: label + " reviews", Table: "product_reviews", Where: byIDs("product_id", ids)},
		{Name: label + " favorites", Table: "favorites", Where: byIDs("product_id", ids)},
		{Name: label + " order items", Table: "order_items", Where: byIDs("product_id", ids)},
		{Name: label, Table: "products", Where: byIDs("id", ids)},
	}
}

func defaultSteps() []deletionStep {
	orders := func(s *scope) []uuid.UUID { return s.orderIDs }
	conversations := func(s *scope) []uuid.UUID { return s.conversationIDs }
	sellerProfiles := func(s *scope) []uuid.UUID { return s.sellerProfileIDs }
	deliveryProfiles := func(s *scope) []uuid.UUID { return s.deliveryProfileIDs }

	steps := []deletionStep{
		{Name: "analytics events", Table: "analytics_events", Where: byUser("user_id")},
		{Name: "buyer review images", Table: "review_images", Where: byIDs("review_id", func(s *scope) []uuid.UUID { return s.buyerReviewIDs })},
		{Name: "buyer reviews", Table: "product_reviews", Where: byUser("buyer_id")},
		{Name: "order items", Table: "order_items", Where: byIDs("order_id", orders)},
		{Name: "order payouts", Table: "payouts", Set: detachPayout, Where: func(s *scope) (string, []any) {
			return "order_id IN ? OR escrow_id IN (SELECT id FROM payment_escrows WHERE order_id IN ?) OR delivery_order_id IN (SELECT id FROM delivery_orders WHERE order_id IN ?)",
				[]any{s.orderIDs, s.orderIDs, s.orderIDs}
		}},
		{Name: "order escrows", Table: "payment_escrows", Where: byIDs("order_id", orders)},
		{Name: "order shipping labels", Table: "shipping_labels", Where: byIDs("order_id", orders)},
		{Name: "order delivery orders", Table: "delivery_orders", Where: byIDs("order_id", orders)},
		{Name: "orders", Table: "orders", Where: byIDs("id", orders)},
		{Name: "messages", Table: "messages", Where: func(s *scope) (string, []any) {
			return "conversation_id IN ? OR sender_id = ?", []any{s.conversationIDs, s.userID}
		}},
		{Name: "conversation participants", Table: "conversation_participants", Where: func(s *scope) (string, []any) {
			return "conversation_id IN ? OR user_id = ?", []any{s.conversationIDs, s.userID}
		}},
		{Name: "conversations", Table: "conversations", Where: byIDs("id", conversations)},
		{Name: "follows", Table: "follows", Where: func(s *scope) (string, []any) {
			return "follower_id = ? OR following_id = ?", []any{s.userID, s.userID}
		}},
		{Name: "favorites", Table: "favorites", Where: byUser("user_id")},
	}
	steps = append(steps, productSteps("products", func(s *scope) []uuid.UUID { return s.directProductIDs })...)
	steps = append(steps, deletionStep{Name: "workplace photos", Table: "workplace_photos", Where: byIDs("seller_profile_id", sellerProfiles)})
	steps = append(steps, productSteps("profile products", func(s *scope) []uuid.UUID { return s.profileProductIDs })...)
	steps = append(steps,
		deletionStep{Name: "seller profiles", Table: "seller_profiles", Where: byIDs("id", sellerProfiles)},
		deletionStep{Name: "delivery payouts", Table: "payouts", Set: detachPayout, Where: func(s *scope) (string, []any) {
			return "delivery_order_id IN (SELECT id FROM delivery_orders WHERE delivery_profile_id IN ?)", []any{s.deliveryProfileIDs}
		}},
		deletionStep{Name: "delivery orders", Table: "delivery_orders", Where: byIDs("delivery_profile_id", deliveryProfiles)},
		deletionStep{Name: "delivery profile", Table: "delivery_profiles", Where: byIDs("id", deliveryProfiles)},
		deletionStep{Name: "seller escrow payouts", Table: "payouts", Set: detachPayout, Where: func(s *scope) (string, []any) {
			return "escrow_id IN (SELECT id FROM payment_escrows WHERE seller_id = ?)", []any{s.userID}
		}},
		deletionStep{Name: "seller escrows", Table: "payment_escrows", Where: byUser("seller_id")},
		deletionStep{Name: "received payouts", Table: "payouts", Where: byUser("to_user_id")},
		deletionStep{Name: "notifications", Table: "notifications", Where: byUser("user_id")},
		deletionStep{Name: "user", Table: "users", Where: byUser("id")},
	)
	return steps
}
