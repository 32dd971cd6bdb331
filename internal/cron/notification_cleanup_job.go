package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

const notificationRetentionDays = 30

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository notificationRetentionStore
	Retention  int
}

type notificationRetentionStore interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	repo      notificationRetentionStore
	retention int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

// Run purges notifications past their expiry and read notifications older
// than the retention window.
func (j *notificationCleanupJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	expired, err := j.repo.DeleteExpiredBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("delete expired notifications: %w", err)
	}

	cutoff := now.Add(-time.Duration(j.retention) * 24 * time.Hour)
	read, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete read notifications: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retention,
		"expired_rows":   expired,
		"read_rows":      read,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
