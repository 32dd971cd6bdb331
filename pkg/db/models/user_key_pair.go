package models

import (
	"time"

	"github.com/google/uuid"
)

// UserKeyPair holds a user's asymmetric pair, PEM encoded. The private half
// is read only inside the keystore; callers only ever see PublicKeyPEM.
type UserKeyPair struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PublicKeyPEM  string    `gorm:"type:text;not null"`
	PrivateKeyPEM string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"type:timestamptz;default:now()"`
}
