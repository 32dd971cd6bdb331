package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/pkg/enums"
)

// Notification is the authoritative in-app record for a dispatched event.
// Delivery machinery never mutates it; only the owning user flips the read
// state or deletes it.
type Notification struct {
	ID          uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID                  `gorm:"type:uuid;not null;index:idx_notifications_user_created"`
	Type        enums.NotificationType     `gorm:"type:notification_type;not null"`
	Category    enums.NotificationChannel  `gorm:"type:notification_channel;not null;default:in_app"`
	Title       string                     `gorm:"type:text;not null"`
	Body        string                     `gorm:"type:text;not null"`
	ActionURL   *string                    `gorm:"type:text"`
	ActionText  *string                    `gorm:"type:text"`
	Icon        *string                    `gorm:"type:text"`
	ReadAt      *time.Time                 `gorm:"type:timestamptz"`
	Priority    enums.NotificationPriority `gorm:"type:notification_priority;not null;default:medium"`
	ExpiresAt   *time.Time                 `gorm:"type:timestamptz"`
	Metadata    string                     `gorm:"type:text"`
	RelatedID   *uuid.UUID                 `gorm:"type:uuid"`
	RelatedType *string                    `gorm:"type:text"`
	CreatedAt   time.Time                  `gorm:"type:timestamptz;default:now();index:idx_notifications_user_created"`
	UpdatedAt   *time.Time                 `gorm:"type:timestamptz"`
}

// IsRead reports whether the owning user has acknowledged the notification.
func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}
