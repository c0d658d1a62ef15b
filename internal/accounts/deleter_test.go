package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/testdb"
	"github.com/rassdread/homecheff-app-sub014/internal/users"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
)

type graph struct {
	victim, other, admin uuid.UUID
	otherOrder           uuid.UUID
	otherProduct         uuid.UUID
	otherPayout          uuid.UUID
}

func newDeleter(t *testing.T, db *gorm.DB) *Deleter {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "accounts-test"})
	d, err := NewDeleter(DeleterParams{
		Logger: logg,
		DB:     testdb.TxRunner{DB: db},
		Users:  users.NewRepository(db),
		Outbox: outbox.NewService(outbox.NewRepository(db), logg),
	})
	require.NoError(t, err)
	return d
}

func create(t *testing.T, db *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, db.Create(row).Error)
	}
}

// seedGraph builds a user who buys, sells through both a direct listing and a
// seller profile, delivers, chats and follows, next to a bystander whose data
// must survive.
func seedGraph(t *testing.T, db *gorm.DB) graph {
	t.Helper()
	g := graph{victim: uuid.New(), other: uuid.New(), admin: uuid.New()}
	create(t, db,
		&models.User{ID: g.victim, Email: "victim@example.nl", Name: "Victim", Role: enums.UserRoleSeller},
		&models.User{ID: g.other, Email: "other@example.nl", Name: "Other", Role: enums.UserRoleBuyer},
		&models.User{ID: g.admin, Email: "admin@example.nl", Name: "Admin", Role: enums.UserRoleAdmin},
	)

	profile := models.SellerProfile{ID: uuid.New(), UserID: g.victim, DisplayName: "Keuken van V"}
	delivery := models.DeliveryProfile{ID: uuid.New(), UserID: g.victim, IsActive: true}
	create(t, db, &profile, &delivery,
		&models.WorkplacePhoto{ID: uuid.New(), SellerProfileID: profile.ID, URL: "https://cdn/w.jpg"})

	direct := models.Product{ID: uuid.New(), SellerID: &g.victim, Title: "Soep", PriceCents: 500}
	viaProfile := models.Product{ID: uuid.New(), SellerProfileID: &profile.ID, Title: "Taart", PriceCents: 900}
	g.otherProduct = uuid.New()
	create(t, db, &direct, &viaProfile,
		&models.Product{ID: g.otherProduct, SellerID: &g.other, Title: "Brood", PriceCents: 300},
		&models.ProductImage{ID: uuid.New(), ProductID: direct.ID, URL: "https://cdn/s.jpg"},
		&models.ProductImage{ID: uuid.New(), ProductID: viaProfile.ID, URL: "https://cdn/t.jpg"},
		&models.Favorite{ID: uuid.New(), UserID: g.other, ProductID: viaProfile.ID},
		&models.Favorite{ID: uuid.New(), UserID: g.victim, ProductID: g.otherProduct},
	)

	otherReview := models.ProductReview{ID: uuid.New(), ProductID: direct.ID, BuyerID: g.other, Rating: 4, Comment: "lekker"}
	victimReview := models.ProductReview{ID: uuid.New(), ProductID: g.otherProduct, BuyerID: g.victim, Rating: 5, Comment: "top"}
	create(t, db, &otherReview, &victimReview,
		&models.ReviewImage{ID: uuid.New(), ReviewID: otherReview.ID, URL: "https://cdn/r1.jpg"},
		&models.ReviewImage{ID: uuid.New(), ReviewID: victimReview.ID, URL: "https://cdn/r2.jpg"},
	)

	// victim buys bread from other
	victimOrder := models.Order{ID: uuid.New(), OrderNumber: "HC-V1", UserID: g.victim, Status: enums.OrderStatusShipped, DeliveryMode: enums.DeliveryModeDelivery, TotalAmountCents: 300}
	victimEscrow := models.PaymentEscrow{ID: uuid.New(), OrderID: victimOrder.ID, SellerID: g.other, AmountCents: 264, PayoutTrigger: enums.PayoutTriggerShipped, CurrentStatus: enums.EscrowStatusPaidOut}
	g.otherPayout = uuid.New()
	create(t, db, &victimOrder, &victimEscrow,
		&models.OrderItem{ID: uuid.New(), OrderID: victimOrder.ID, ProductID: g.otherProduct, PriceCents: 300, Quantity: 1},
		&models.ShippingLabel{ID: uuid.New(), OrderID: &victimOrder.ID, CarrierLabelID: "L-V1", Carrier: "sendcloud", Status: enums.ShippingLabelStatusShipped},
		&models.Payout{ID: g.otherPayout, ToUserID: g.other, AmountCents: 264, OrderID: &victimOrder.ID, EscrowID: &victimEscrow.ID, Kind: enums.PayoutKindSeller},
	)

	// other buys soup and bread; victim delivers
	g.otherOrder = uuid.New()
	otherOrder := models.Order{ID: g.otherOrder, OrderNumber: "HC-O1", UserID: g.other, Status: enums.OrderStatusDelivered, DeliveryMode: enums.DeliveryModeDelivery, TotalAmountCents: 800}
	sellerEscrow := models.PaymentEscrow{ID: uuid.New(), OrderID: g.otherOrder, SellerID: g.victim, AmountCents: 440, PayoutTrigger: enums.PayoutTriggerDelivered, CurrentStatus: enums.EscrowStatusHeld}
	deliveryOrder := models.DeliveryOrder{ID: uuid.New(), OrderID: g.otherOrder, DeliveryProfileID: delivery.ID, Status: enums.DeliveryOrderStatusDelivered, DeliveryFeeCents: 500}
	create(t, db, &otherOrder, &sellerEscrow, &deliveryOrder,
		&models.OrderItem{ID: uuid.New(), OrderID: g.otherOrder, ProductID: direct.ID, PriceCents: 500, Quantity: 1},
		&models.OrderItem{ID: uuid.New(), OrderID: g.otherOrder, ProductID: g.otherProduct, PriceCents: 300, Quantity: 1},
		&models.Payout{ID: uuid.New(), ToUserID: g.victim, AmountCents: 440, OrderID: &g.otherOrder, DeliveryOrderID: &deliveryOrder.ID, Kind: enums.PayoutKindDeliveryPartner},
	)

	conversation := models.Conversation{ID: uuid.New()}
	create(t, db, &conversation,
		&models.ConversationParticipant{ID: uuid.New(), ConversationID: conversation.ID, UserID: g.victim},
		&models.ConversationParticipant{ID: uuid.New(), ConversationID: conversation.ID, UserID: g.other},
		&models.Message{ID: uuid.New(), ConversationID: conversation.ID, SenderID: g.victim, Body: "hoi"},
		&models.Message{ID: uuid.New(), ConversationID: conversation.ID, SenderID: g.other, Body: "hallo"},
		&models.Follow{ID: uuid.New(), FollowerID: g.victim, FollowingID: g.other},
		&models.Follow{ID: uuid.New(), FollowerID: g.other, FollowingID: g.victim},
		&models.AnalyticsEvent{ID: uuid.New(), UserID: &g.victim, EventType: "page_view"},
		&models.Notification{ID: uuid.New(), UserID: g.victim, Type: enums.NotificationTypeOrderUpdate, Title: "t", Message: "m"},
		&models.Notification{ID: uuid.New(), UserID: g.other, Type: enums.NotificationTypeOrderUpdate, Title: "t", Message: "m"},
	)
	return g
}

func count(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	g := seedGraph(t, db)
	d := newDeleter(t, db)

	report, err := d.DeleteUser(ctx, g.admin, g.victim)
	require.NoError(t, err)
	assert.Equal(t, g.victim, report.UserID)
	assert.Len(t, report.Steps, len(d.steps))
	assert.Equal(t, "user", report.Steps[len(report.Steps)-1].Name)
	assert.Equal(t, int64(1), report.Steps[len(report.Steps)-1].Rows)
	assert.Positive(t, report.TotalRows)

	assert.Equal(t, int64(2), count(t, db, "users"))
	for _, table := range []string{
		"seller_profiles", "workplace_photos", "delivery_profiles", "delivery_orders",
		"product_images", "review_images", "product_reviews", "favorites", "payment_escrows",
		"shipping_labels", "conversations", "conversation_participants", "messages", "follows",
		"analytics_events",
	} {
		assert.Zero(t, count(t, db, table), table)
	}
	assert.Equal(t, int64(1), count(t, db, "products"))
	assert.Equal(t, int64(1), count(t, db, "orders"))
	assert.Equal(t, int64(1), count(t, db, "notifications"))

	var items []models.OrderItem
	require.NoError(t, db.Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, g.otherOrder, items[0].OrderID)
	assert.Equal(t, g.otherProduct, items[0].ProductID)

	var payouts []models.Payout
	require.NoError(t, db.Find(&payouts).Error)
	require.Len(t, payouts, 1)
	assert.Equal(t, g.otherPayout, payouts[0].ID)
	assert.Nil(t, payouts[0].OrderID)
	assert.Nil(t, payouts[0].EscrowID)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("event_type = ? AND aggregate_id = ?", enums.EventUserDeleted, g.victim).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestDeleteUserRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	g := seedGraph(t, db)
	d := newDeleter(t, db)

	last := d.steps[len(d.steps)-1]
	d.steps = append(d.steps[:len(d.steps)-1:len(d.steps)-1],
		deletionStep{Name: "broken", Table: "no_such_table", Where: byUser("id")},
		last,
	)

	before := map[string]int64{}
	tables := []string{"users", "orders", "order_items", "products", "messages", "payouts", "seller_profiles"}
	for _, table := range tables {
		before[table] = count(t, db, table)
	}

	report, err := d.DeleteUser(ctx, g.admin, g.victim)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.As(err).Code())

	for _, table := range tables {
		assert.Equal(t, before[table], count(t, db, table), table)
	}
	assert.Zero(t, count(t, db, "outbox_events"))
}

func TestDeleteUserRejects(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	g := seedGraph(t, db)
	d := newDeleter(t, db)

	_, err := d.DeleteUser(ctx, g.admin, g.admin)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = d.DeleteUser(ctx, g.admin, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	assert.Equal(t, int64(3), count(t, db, "users"))
}

func TestDeleteUserWithoutRelations(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	admin, lonely := uuid.New(), uuid.New()
	create(t, db,
		&models.User{ID: admin, Email: "a@example.nl", Name: "A", Role: enums.UserRoleAdmin},
		&models.User{ID: lonely, Email: "l@example.nl", Name: "L", Role: enums.UserRoleBuyer},
	)

	report, err := newDeleter(t, db).DeleteUser(ctx, admin, lonely)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.TotalRows)
	assert.Equal(t, int64(1), count(t, db, "users"))
}
