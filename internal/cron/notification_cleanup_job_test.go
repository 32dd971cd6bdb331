package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

func TestNotificationCleanupJobDeletesExpiredAndRead(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	repo := &fakeNotificationRetention{expiredRows: 42, readRows: 7}
	job := newNotificationCleanupJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !repo.expiredCutoff.Equal(now) {
		t.Fatalf("expected expiry cutoff %s, got %s", now, repo.expiredCutoff)
	}
	expectedCutoff := now.Add(-notificationRetentionDays * 24 * time.Hour)
	if !repo.readCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected read cutoff %s, got %s", expectedCutoff, repo.readCutoff)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	repo := &fakeNotificationRetention{err: errors.New("boom")}
	job := newNotificationCleanupJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newNotificationCleanupJob(t *testing.T, repo *fakeNotificationRetention) *notificationCleanupJob {
	t.Helper()
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job, ok := jobIface.(*notificationCleanupJob)
	if !ok {
		t.Fatalf("expected notificationCleanupJob, got %T", jobIface)
	}
	return job
}

type fakeNotificationRetention struct {
	expiredCutoff time.Time
	readCutoff    time.Time
	expiredRows   int64
	readRows      int64
	err           error
}

func (f *fakeNotificationRetention) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.expiredCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.expiredRows, nil
}

func (f *fakeNotificationRetention) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.readCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.readRows, nil
}
