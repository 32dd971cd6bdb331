package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/pkg/enums"
)

// EmailQueueItem is one outbound email awaiting delivery. Only the queue
// processor mutates rows after creation. ClaimedAt marks an item as in-flight
// so concurrent processors never pick up the same row.
type EmailQueueItem struct {
	ID             uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ToAddress      string            `gorm:"type:text;not null"`
	ToName         *string           `gorm:"type:text"`
	FromAddress    string            `gorm:"type:text;not null"`
	FromName       *string           `gorm:"type:text"`
	Subject        string            `gorm:"type:text;not null"`
	HTMLBody       *string           `gorm:"type:text"`
	TextBody       *string           `gorm:"type:text"`
	TemplateID     *string           `gorm:"type:text"`
	Status         enums.QueueStatus `gorm:"type:queue_status;not null;default:pending;index:idx_email_queue_due"`
	SentAt         *time.Time        `gorm:"type:timestamptz"`
	ErrorMessage   *string           `gorm:"type:text"`
	RetryCount     int               `gorm:"not null;default:0"`
	MaxRetries     int               `gorm:"not null;default:3"`
	ScheduledFor   *time.Time        `gorm:"type:timestamptz;index:idx_email_queue_due"`
	ClaimedAt      *time.Time        `gorm:"type:timestamptz"`
	NotificationID *uuid.UUID        `gorm:"type:uuid"`
	CreatedAt      time.Time         `gorm:"type:timestamptz;default:now()"`
	UpdatedAt      time.Time         `gorm:"type:timestamptz;default:now()"`
}
