package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/pkg/enums"
)

// Communication is an audit row for an outbound side-channel relay.
type Communication struct {
	ID        uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChannelID uuid.UUID                 `gorm:"type:uuid;not null"`
	Kind      string                    `gorm:"type:text;not null"`
	Body      string                    `gorm:"type:text;not null"`
	Status    enums.CommunicationStatus `gorm:"type:communication_status;not null"`
	Error     *string                   `gorm:"type:text"`
	CreatedAt time.Time                 `gorm:"type:timestamptz;default:now()"`
}
