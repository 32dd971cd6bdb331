package models

import (
	"github.com/google/uuid"
)

// Channel is the subset of the messaging-channel entity the mirror reads.
// This core never creates or mutates channel rows.
type Channel struct {
	ID                      uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name                    string     `gorm:"type:text;not null"`
	DiscordWebhookURL       *string    `gorm:"type:text"`
	DiscordChannelID        *string    `gorm:"type:text"`
	DiscordMirroringEnabled bool       `gorm:"not null;default:false"`
	LeadID                  *uuid.UUID `gorm:"type:uuid"`
}
