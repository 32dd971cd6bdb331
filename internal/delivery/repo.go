package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
)

// Repository exposes persistence helpers for the email queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Enqueue(ctx context.Context, item *models.EmailQueueItem) error
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]models.EmailQueueItem, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, scheduledFor time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a queue repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Enqueue(ctx context.Context, item *models.EmailQueueItem) error {
	if item == nil {
		return errors.New("queue item required")
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// ClaimDue marks up to limit due pending items as in-flight and returns them.
// The select locks rows with SKIP LOCKED so concurrent processors partition
// the queue instead of double-sending.
func (r *repositoryImpl) ClaimDue(ctx context.Context, limit int, now time.Time) ([]models.EmailQueueItem, error) {
	var claimed []models.EmailQueueItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.EmailQueueItem
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND claimed_at IS NULL", enums.QueueStatusPending).
			Where("scheduled_for IS NULL OR scheduled_for <= ?", now).
			Order("created_at ASC").
			Limit(limit).
			Find(&rows).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		if err := tx.Model(&models.EmailQueueItem{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"claimed_at": now, "updated_at": now}).Error; err != nil {
			return err
		}

		for i := range rows {
			claimedAt := now
			rows[i].ClaimedAt = &claimedAt
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.QueueStatusSent,
			"sent_at":    sentAt,
			"claimed_at": nil,
			"updated_at": sentAt,
		}).Error
}

// MarkRetry releases the claim and pushes scheduled_for into the future so
// the next poll cycle skips the item until its backoff elapses.
func (r *repositoryImpl) MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, scheduledFor time.Time, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.QueueStatusPending,
			"retry_count":   retryCount,
			"scheduled_for": scheduledFor,
			"error_message": errMsg,
			"claimed_at":    nil,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.EmailQueueItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.QueueStatusFailed,
			"retry_count":   retryCount,
			"error_message": errMsg,
			"claimed_at":    nil,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// DeleteTerminalBefore removes sent/failed/bounced items older than cutoff.
func (r *repositoryImpl) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ?", []enums.QueueStatus{enums.QueueStatusSent, enums.QueueStatusFailed, enums.QueueStatusBounced}).
		Where("updated_at < ?", cutoff).
		Delete(&models.EmailQueueItem{})
	return result.RowsAffected, result.Error
}
