package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/pkg/enums"
)

// NotificationPreference is one user's setting for a (type, channel) pair.
// Rows are created lazily on first write; absence means the type default.
type NotificationPreference struct {
	ID               uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:ux_preferences_user_type_channel"`
	NotificationType enums.NotificationType    `gorm:"type:notification_type;not null;uniqueIndex:ux_preferences_user_type_channel"`
	Channel          enums.NotificationChannel `gorm:"type:notification_channel;not null;uniqueIndex:ux_preferences_user_type_channel"`
	IsEnabled        bool                      `gorm:"not null;default:true"`
	Frequency        enums.DeliveryFrequency   `gorm:"type:delivery_frequency;not null;default:immediate"`
	QuietHoursStart  *string                   `gorm:"type:varchar(5)"`
	QuietHoursEnd    *string                   `gorm:"type:varchar(5)"`
	EmailAddress     *string                   `gorm:"type:text"`
	PushDeviceTokens *string                   `gorm:"type:text"`
	CreatedAt        time.Time                 `gorm:"type:timestamptz;default:now()"`
	UpdatedAt        time.Time                 `gorm:"type:timestamptz;default:now()"`
}
