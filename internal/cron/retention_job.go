package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

const (
	notificationRetention = 30 * 24 * time.Hour
	outboxRetention       = 30 * 24 * time.Hour
	outboxMinAttempts     = 5
	dlqRetention          = 90 * 24 * time.Hour
	dailyCadence          = 24 * time.Hour
)

type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// retentionJob deletes rows older than a fixed window in one transaction.
type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	purge     purgeFunc
	fields    map[string]any
	now       func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, db txRunner, retention time.Duration, purge purgeFunc) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	return &retentionJob{
		name:      name,
		logg:      logg,
		db:        db,
		retention: retention,
		purge:     purge,
		fields:    map[string]any{},
		now:       time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Every() time.Duration { return dailyCadence }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	fields := map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention cleanup complete")
	return nil
}

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob removes read notifications older than retention.
func NewNotificationCleanupJob(logg *logger.Logger, db txRunner, repo notificationPurger, retention time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if retention <= 0 {
		retention = notificationRetention
	}
	return newRetentionJob("notification-cleanup", logg, db, retention, repo.DeleteOlderThan)
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob removes published outbox rows. Rows that took at least
// minAttempts publishes are kept.
func NewOutboxRetentionJob(logg *logger.Logger, db txRunner, repo outboxPurger, retention time.Duration, minAttempts int) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if retention <= 0 {
		retention = outboxRetention
	}
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	job, err := newRetentionJob("outbox-retention", logg, db, retention, func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return repo.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
	})
	if err != nil {
		return nil, err
	}
	job.fields["min_attempts"] = minAttempts
	return job, nil
}

type dlqPurger interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxDLQRetentionJob drops dead-lettered rows once nobody will replay them.
func NewOutboxDLQRetentionJob(logg *logger.Logger, db txRunner, repo dlqPurger, retention time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	if retention <= 0 {
		retention = dlqRetention
	}
	return newRetentionJob("outbox-dlq-retention", logg, db, retention, repo.DeleteFailedBefore)
}
