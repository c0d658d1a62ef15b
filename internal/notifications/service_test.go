package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/testdb"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "notifications-test"}), "https://homecheff.eu/")
	require.NoError(t, err)
	return svc
}

func TestSendMethodsPersistNotifications(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	svc := newTestService(t, repo)
	userID := uuid.New()
	orderID := uuid.New()

	require.NoError(t, svc.SendOrderUpdate(ctx, OrderUpdate{UserID: userID, OrderID: orderID, OrderNumber: "HC-1001", Title: "Verzonden", Message: "Je bestelling is onderweg."}))
	require.NoError(t, svc.SendReviewRequest(ctx, userID, "Zuurdesembrood", "https://homecheff.eu/review/abc"))
	require.NoError(t, svc.SendPayout(ctx, userID, 8800, &orderID))

	rows, err := repo.ListForUser(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byType := map[enums.NotificationType]models.Notification{}
	for _, row := range rows {
		byType[row.Type] = row
	}
	update := byType[enums.NotificationTypeOrderUpdate]
	require.NotNil(t, update.Link)
	assert.Equal(t, "https://homecheff.eu/orders/"+orderID.String(), *update.Link)
	assert.Equal(t, "https://homecheff.eu/review/abc", *byType[enums.NotificationTypeReviewRequest].Link)
	assert.Equal(t, "Er is € 88,00 naar je uitbetaald.", byType[enums.NotificationTypePayout].Message)
}

func TestSendLabelReadyFallsBackToDashboardLink(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testdb.Open(t))
	svc := newTestService(t, repo)
	sellerID := uuid.New()

	require.NoError(t, svc.SendLabelReady(ctx, sellerID, "HC-1001", nil))
	rows, err := repo.ListForUser(ctx, sellerID, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://homecheff.eu/seller/orders", *rows[0].Link)
}

type failingRepo struct{ Repository }

func (failingRepo) Create(context.Context, *models.Notification) error {
	return errors.New("db down")
}

func TestSendReturnsStoreError(t *testing.T) {
	svc := newTestService(t, failingRepo{})
	err := svc.SendReviewReceived(context.Background(), uuid.New(), uuid.New(), "Jam", 5)
	require.EqualError(t, err, "db down")
	require.Error(t, svc.SendPayout(context.Background(), uuid.Nil, 1, nil))
}

func TestDeleteOlderThanKeepsUnread(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t)
	repo := NewRepository(db)
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	readAt := old.Add(time.Hour)
	userID := uuid.New()

	rows := []models.Notification{
		{ID: uuid.New(), UserID: userID, Type: enums.NotificationTypeOrderUpdate, Title: "a", Message: "a", CreatedAt: old, ReadAt: &readAt},
		{ID: uuid.New(), UserID: userID, Type: enums.NotificationTypeOrderUpdate, Title: "b", Message: "b", CreatedAt: old},
		{ID: uuid.New(), UserID: userID, Type: enums.NotificationTypeOrderUpdate, Title: "c", Message: "c", ReadAt: &readAt},
	}
	require.NoError(t, db.Create(&rows).Error)

	var deleted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		n, err := repo.DeleteOlderThan(ctx, tx, time.Now().UTC().Add(-30*24*time.Hour))
		deleted = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
