package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

const defaultReviewTokenRetention = 90 * 24 * time.Hour

type placeholderPurger interface {
	DeleteExpiredPlaceholders(ctx context.Context, cutoff time.Time) (int64, error)
}

type ReviewTokenExpiryJobParams struct {
	Logger    *logger.Logger
	Reviews   placeholderPurger
	Retention time.Duration
}

// NewReviewTokenExpiryJob removes review placeholders whose link expired more
// than the retention window ago.
func NewReviewTokenExpiryJob(params ReviewTokenExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reviews == nil {
		return nil, fmt.Errorf("review repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultReviewTokenRetention
	}
	return &reviewTokenExpiryJob{
		logg:      params.Logger,
		reviews:   params.Reviews,
		retention: retention,
		now:       time.Now,
	}, nil
}

type reviewTokenExpiryJob struct {
	logg      *logger.Logger
	reviews   placeholderPurger
	retention time.Duration
	now       func() time.Time
}

func (j *reviewTokenExpiryJob) Name() string { return "review-token-expiry" }

func (j *reviewTokenExpiryJob) Every() time.Duration { return dailyCadence }

func (j *reviewTokenExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.reviews.DeleteExpiredPlaceholders(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("review token expiry: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "review token expiry complete")
	return nil
}
