package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

func TestQueueRetentionJobDeletesTerminalRows(t *testing.T) {
	now := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	repo := &fakeQueueRetention{rows: 9}
	job := newQueueRetentionJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expected := now.Add(-queueRetentionDays * 24 * time.Hour)
	if !repo.cutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, repo.cutoff)
	}
}

func TestQueueRetentionJobPropagatesErrors(t *testing.T) {
	repo := &fakeQueueRetention{err: errors.New("boom")}
	job := newQueueRetentionJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newQueueRetentionJob(t *testing.T, repo *fakeQueueRetention) *queueRetentionJob {
	t.Helper()
	jobIface, err := NewQueueRetentionJob(QueueRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewQueueRetentionJob: %v", err)
	}
	job, ok := jobIface.(*queueRetentionJob)
	if !ok {
		t.Fatalf("expected queueRetentionJob, got %T", jobIface)
	}
	return job
}

type fakeQueueRetention struct {
	cutoff time.Time
	rows   int64
	err    error
}

func (f *fakeQueueRetention) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.rows, nil
}
