package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/testdb"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
)

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "HC-" + uuid.NewString()[:8],
		UserID:           uuid.New(),
		Status:           status,
		DeliveryMode:     enums.DeliveryModeDelivery,
		TotalAmountCents: 10000,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestMarkShippedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	order := seedOrder(t, db, enums.OrderStatusConfirmed)
	firstAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := repo.MarkShipped(ctx, order.ID, firstAt)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkShipped(ctx, order.ID, firstAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, second)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, stored.Status)
	require.NotNil(t, stored.ShippedAt)
	assert.True(t, stored.ShippedAt.Equal(firstAt))
}

func TestMarkShippedAfterDeliveredKeepsDeliveredStatus(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	order := seedOrder(t, db, enums.OrderStatusProcessing)

	delivered, err := repo.MarkDelivered(ctx, order.ID, time.Now())
	require.NoError(t, err)
	require.True(t, delivered)
	again, err := repo.MarkDelivered(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, again)

	shipped, err := repo.MarkShipped(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, shipped)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	assert.NotNil(t, stored.ShippedAt)
}

func TestMarkShippedIgnoresCancelledOrder(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	order := seedOrder(t, db, enums.OrderStatusCancelled)

	shipped, err := repo.MarkShipped(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, shipped, "a late carrier event must not count as a first shipment")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Nil(t, stored.ShippedAt)
}

func TestLockForUpdate(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	order := seedOrder(t, db, enums.OrderStatusConfirmed)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).LockForUpdate(ctx, order.ID)
	}))
	assert.ErrorIs(t, repo.LockForUpdate(ctx, uuid.New()), ErrNotFound)
}

func TestShippingStatusDoesNotRegressAfterDelivery(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	order := seedOrder(t, db, enums.OrderStatusShipped)

	require.NoError(t, repo.UpdateShippingStatus(ctx, order.ID, enums.PassthroughShippingStatus("AT_SORTING_CENTER")))
	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.ShippingStatus.Known())
	assert.Equal(t, "AT_SORTING_CENTER", stored.ShippingStatus.Raw())

	_, err = repo.MarkDelivered(ctx, order.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateShippingStatus(ctx, order.ID, enums.KnownShippingStatus(enums.ShippingDelivered)))
	require.NoError(t, repo.UpdateShippingStatus(ctx, order.ID, enums.KnownShippingStatus(enums.ShippingInTransit)))

	stored, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.ShippingStatus.IsDelivered())
}

func TestBackfillTrackingAndLabel(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	order := seedOrder(t, db, enums.OrderStatusConfirmed)

	ok, err := repo.BackfillTrackingNumber(ctx, order.ID, "3SABC123")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.BackfillTrackingNumber(ctx, order.ID, "OTHER")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.AttachShippingLabel(ctx, order.ID, "L1")
	require.NoError(t, err)
	assert.True(t, ok)

	byLabel, err := repo.FindByShippingLabelID(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byLabel.ID)
	require.NotNil(t, byLabel.ShippingTrackingNumber)
	assert.Equal(t, "3SABC123", *byLabel.ShippingTrackingNumber)

	byNumber, err := repo.FindByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)

	_, err = repo.FindByOrderNumber(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHasPaidOrderWithProduct(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)

	paid := seedOrder(t, db, enums.OrderStatusDelivered)
	pending := seedOrder(t, db, enums.OrderStatusPending)
	productID := uuid.New()
	otherProduct := uuid.New()
	require.NoError(t, db.Create(&models.OrderItem{ID: uuid.New(), OrderID: paid.ID, ProductID: productID, PriceCents: 500, Quantity: 1}).Error)
	require.NoError(t, db.Create(&models.OrderItem{ID: uuid.New(), OrderID: pending.ID, ProductID: otherProduct, PriceCents: 500, Quantity: 1}).Error)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", pending.ID).Update("user_id", paid.UserID).Error)

	found, err := repo.HasPaidOrderWithProduct(ctx, paid.UserID, productID)
	require.NoError(t, err)
	assert.Equal(t, paid.ID, found.ID)

	_, err = repo.HasPaidOrderWithProduct(ctx, paid.UserID, otherProduct)
	assert.ErrorIs(t, err, ErrNotFound, "pending orders do not count")

	_, err = repo.HasPaidOrderWithProduct(ctx, uuid.New(), productID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadWithItems(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	order := seedOrder(t, db, enums.OrderStatusConfirmed)
	product := models.Product{ID: uuid.New(), Title: "Kruidenmix", PriceCents: 450}
	require.NoError(t, db.Create(&product).Error)
	require.NoError(t, db.Create(&models.OrderItem{ID: uuid.New(), OrderID: order.ID, ProductID: product.ID, PriceCents: 450, Quantity: 2}).Error)

	loaded, err := repo.LoadWithItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	require.NotNil(t, loaded.Items[0].Product)
	assert.Equal(t, "Kruidenmix", loaded.Items[0].Product.Title)
}
