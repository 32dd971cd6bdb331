package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

const queueRetentionDays = 30

type QueueRetentionJobParams struct {
	Logger     *logger.Logger
	Repository queueRetentionStore
	Retention  int
}

type queueRetentionStore interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewQueueRetentionJob(params QueueRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = queueRetentionDays
	}
	return &queueRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type queueRetentionJob struct {
	logg      *logger.Logger
	repo      queueRetentionStore
	retention int
	now       func() time.Time
}

func (j *queueRetentionJob) Name() string { return "queue-retention" }

// Run removes sent, failed and bounced queue items older than the retention
// window. Pending rows are never touched.
func (j *queueRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("queue retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "queue retention complete")
	return nil
}
