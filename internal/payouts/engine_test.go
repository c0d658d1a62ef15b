package payouts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/escrow"
	"github.com/rassdread/homecheff-app-sub014/internal/testdb"
	"github.com/rassdread/homecheff-app-sub014/internal/users"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/metrics"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
)

type stubDestination struct {
	calls []TransferRequest
	err   error
}

func (s *stubDestination) Transfer(_ context.Context, req TransferRequest) (string, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	return "tr_" + req.EscrowID.String()[:8], nil
}

type stubNotifier struct {
	sent []int64
	err  error
}

func (s *stubNotifier) SendPayout(_ context.Context, _ uuid.UUID, amountCents int64, _ *uuid.UUID) error {
	s.sent = append(s.sent, amountCents)
	return s.err
}

type engineFixture struct {
	db       *gorm.DB
	engine   *Engine
	escrows  escrow.Repository
	dest     *stubDestination
	notifier *stubNotifier
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := testdb.Open(t)
	logg := logger.New(logger.Options{ServiceName: "payouts-test"})
	escrows := escrow.NewRepository(db)
	dest := &stubDestination{}
	notifier := &stubNotifier{}
	engine, err := NewEngine(EngineParams{
		Logger:      logg,
		DB:          testdb.TxRunner{DB: db},
		Escrows:     escrows,
		Payouts:     NewRepository(db),
		Users:       users.NewRepository(db),
		Destination: dest,
		Outbox:      outbox.NewService(outbox.NewRepository(db), logg),
		Notifier:    notifier,
		Metrics:     metrics.NewPayoutMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return &engineFixture{db: db, engine: engine, escrows: escrows, dest: dest, notifier: notifier}
}

func (f *engineFixture) seller(t *testing.T, account *string) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{ID: id, Email: id.String() + "@example.nl", Name: "Verkoper", Role: enums.UserRoleSeller, StripeConnectAccountID: account}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *engineFixture) escrow(t *testing.T, orderID, sellerID uuid.UUID, trigger enums.PayoutTrigger) *models.PaymentEscrow {
	t.Helper()
	row := &models.PaymentEscrow{OrderID: orderID, SellerID: sellerID, AmountCents: 8800, PlatformFeeCents: 1200, PayoutTrigger: trigger}
	require.NoError(t, f.escrows.Create(context.Background(), row))
	return row
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestReleaseForOrderPaysOutOnce(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := "acct_1"
	seller := f.seller(t, &account)
	orderID := uuid.New()
	row := f.escrow(t, orderID, seller.ID, enums.PayoutTriggerDelivered)

	first, err := f.engine.ReleaseForOrder(ctx, orderID, enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	require.Equal(t, 1, first.Released())

	second, err := f.engine.ReleaseForOrder(ctx, orderID, enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	require.Equal(t, 0, second.Released())
	require.Equal(t, SkipNotHeld, second.Outcomes[0].Skipped)

	require.Len(t, f.dest.calls, 1)
	call := f.dest.calls[0]
	assert.Equal(t, int64(8800), call.AmountCents)
	assert.Equal(t, "acct_1", call.Destination)
	assert.Equal(t, "eur", call.Currency)
	assert.Equal(t, "escrow-payout-"+row.ID.String(), call.IdempotencyKey())

	stored, err := f.escrows.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusPaidOut, stored.CurrentStatus)
	assert.NotNil(t, stored.PaidOutAt)

	payouts, err := NewRepository(f.db).ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, seller.ID, payouts[0].ToUserID)
	assert.Equal(t, int64(8800), payouts[0].AmountCents)
	require.NotNil(t, payouts[0].ProviderRef)
	assert.Equal(t, int64(1), countRows(t, f.db, &models.OutboxEvent{}))
	assert.Equal(t, []int64{8800}, f.notifier.sent)
}

func TestReleaseForOrderLosingClaimDoesNotTransfer(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := "acct_1"
	seller := f.seller(t, &account)
	orderID := uuid.New()
	row := f.escrow(t, orderID, seller.ID, enums.PayoutTriggerDelivered)

	escrows, err := f.escrows.ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	// a concurrent request wins the claim after this caller read the row
	claimed, err := f.escrows.ClaimForPayout(ctx, row.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	outcome, err := f.engine.releaseEscrow(ctx, escrows[0], enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	assert.Equal(t, SkipAlreadyClaimed, outcome.Skipped)
	assert.Empty(t, f.dest.calls)
}

func TestReleaseForOrderRespectsTrigger(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := "acct_1"
	seller := f.seller(t, &account)
	orderID := uuid.New()
	row := f.escrow(t, orderID, seller.ID, enums.PayoutTriggerShipped)

	res, err := f.engine.ReleaseForOrder(ctx, orderID, enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	assert.Equal(t, SkipTriggerMismatch, res.Outcomes[0].Skipped)
	stored, err := f.escrows.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusHeld, stored.CurrentStatus)

	res, err = f.engine.ReleaseForOrder(ctx, orderID, enums.PayoutTriggerShipped)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Released())
}

func TestReleaseForOrderSkipsWithoutDestination(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	seller := f.seller(t, nil)
	orderID := uuid.New()
	row := f.escrow(t, orderID, seller.ID, enums.PayoutTriggerDelivered)

	res, err := f.engine.ReleaseForOrder(ctx, orderID, enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	assert.Equal(t, SkipNoDestination, res.Outcomes[0].Skipped)
	stored, err := f.escrows.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusHeld, stored.CurrentStatus)

	empty, err := f.engine.ReleaseForOrder(ctx, uuid.New(), enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	assert.Equal(t, SkipNoEscrow, empty.Skipped)
}

func TestTransferFailureLeavesEscrowScheduledAndRetryReusesKey(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	account := "acct_1"
	seller := f.seller(t, &account)
	orderID := uuid.New()
	row := f.escrow(t, orderID, seller.ID, enums.PayoutTriggerDelivered)
	f.dest.err = errors.New("insufficient platform balance")

	res, err := f.engine.ReleaseForOrder(ctx, orderID, enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	assert.True(t, res.Outcomes[0].Scheduled)

	stored, err := f.escrows.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusPayoutScheduled, stored.CurrentStatus)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "insufficient platform balance")
	assert.Equal(t, int64(0), countRows(t, f.db, &models.Payout{}))

	// a second trigger cannot start another transfer
	_, err = f.engine.ReleaseForOrder(ctx, orderID, enums.PayoutTriggerDelivered)
	require.NoError(t, err)
	require.Len(t, f.dest.calls, 1)

	f.dest.err = nil
	require.NoError(t, f.engine.RetryScheduled(ctx, *stored))
	require.Len(t, f.dest.calls, 2)
	assert.Equal(t, f.dest.calls[0].IdempotencyKey(), f.dest.calls[1].IdempotencyKey())

	done, err := f.escrows.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusPaidOut, done.CurrentStatus)
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Payout{}))
}

func TestPayDeliveryPartnerRecordsShareOnce(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	courierID := uuid.New()
	require.NoError(t, f.db.Create(&models.User{ID: courierID, Email: "koerier@example.nl", Name: "Koerier", Role: enums.UserRoleDelivery}).Error)
	profile := models.DeliveryProfile{ID: uuid.New(), UserID: courierID, IsActive: true}
	require.NoError(t, f.db.Create(&profile).Error)

	order := models.DeliveryOrder{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		DeliveryProfileID: profile.ID,
		Status:            enums.DeliveryOrderStatusDelivered,
		DeliveryFeeCents:  500,
	}

	first, err := f.engine.PayDeliveryPartner(ctx, order)
	require.NoError(t, err)
	require.False(t, first.Duplicate)
	assert.Equal(t, int64(440), first.Payout.AmountCents)
	assert.Equal(t, courierID, first.Payout.ToUserID)
	assert.Equal(t, enums.PayoutKindDeliveryPartner, first.Payout.Kind)
	assert.Nil(t, first.Payout.ProviderRef)

	second, err := f.engine.PayDeliveryPartner(ctx, order)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Payout.ID, second.Payout.ID)
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Payout{}))

	order.Status = enums.DeliveryOrderStatusPickedUp
	_, err = f.engine.PayDeliveryPartner(ctx, order)
	require.Error(t, err)
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	_, err := NewEngine(EngineParams{})
	require.Error(t, err)
}
