package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rassdread/homecheff-app-sub014/internal/payouts"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

const (
	defaultPayoutGracePeriod = 15 * time.Minute
	defaultPayoutBatchSize   = 25
)

type escrowScanner interface {
	ListStuckScheduled(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentEscrow, error)
	ListReleasable(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentEscrow, error)
}

type payoutRetrier interface {
	RetryScheduled(ctx context.Context, row models.PaymentEscrow) error
	ReleaseForOrder(ctx context.Context, orderID uuid.UUID, trigger enums.PayoutTrigger) (*payouts.ReleaseResult, error)
}

// PayoutReconcileJobParams configure the escrow sweep.
type PayoutReconcileJobParams struct {
	Logger      *logger.Logger
	Escrows     escrowScanner
	Payouts     payoutRetrier
	GracePeriod time.Duration
	BatchSize   int
}

// NewPayoutReconcileJob builds the job that retries stalled transfers and
// releases held escrows whose trigger was reached but never acted on.
func NewPayoutReconcileJob(params PayoutReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Escrows == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout engine required")
	}
	grace := params.GracePeriod
	if grace <= 0 {
		grace = defaultPayoutGracePeriod
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPayoutBatchSize
	}
	return &payoutReconcileJob{
		logg:    params.Logger,
		escrows: params.Escrows,
		payouts: params.Payouts,
		grace:   grace,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type payoutReconcileJob struct {
	logg    *logger.Logger
	escrows escrowScanner
	payouts payoutRetrier
	grace   time.Duration
	batch   int
	now     func() time.Time
}

func (j *payoutReconcileJob) Name() string { return "payout-reconcile" }

func (j *payoutReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)

	retried, retryErr := j.retryScheduled(ctx, cutoff)
	released, releaseErr := j.releaseMissed(ctx, cutoff)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"retried":  retried,
		"released": released,
	})
	err := multierr.Combine(retryErr, releaseErr)
	if err != nil {
		return fmt.Errorf("payout reconcile: %w", err)
	}
	j.logg.Info(logCtx, "payout reconcile complete")
	return nil
}

func (j *payoutReconcileJob) retryScheduled(ctx context.Context, cutoff time.Time) (int, error) {
	stuck, err := j.escrows.ListStuckScheduled(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("list scheduled escrows: %w", err)
	}
	var errs error
	retried := 0
	for _, row := range stuck {
		if err := j.payouts.RetryScheduled(ctx, row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("escrow %s: %w", row.ID, err))
			continue
		}
		retried++
	}
	return retried, errs
}

func (j *payoutReconcileJob) releaseMissed(ctx context.Context, cutoff time.Time) (int, error) {
	held, err := j.escrows.ListReleasable(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("list releasable escrows: %w", err)
	}
	type key struct {
		order   uuid.UUID
		trigger enums.PayoutTrigger
	}
	seen := map[key]struct{}{}
	var errs error
	released := 0
	for _, row := range held {
		k := key{order: row.OrderID, trigger: row.PayoutTrigger}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result, err := j.payouts.ReleaseForOrder(ctx, row.OrderID, row.PayoutTrigger)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", row.OrderID, err))
			continue
		}
		released += result.Released()
	}
	return released, errs
}
