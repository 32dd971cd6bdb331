package models

import (
	"time"

	"github.com/google/uuid"
)

// EncryptionKey is a user's active symmetric key. One row per user; rotation
// replaces the material in place, which destroys the predecessor.
type EncryptionKey struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_encryption_keys_user"`
	KeyMaterial string     `gorm:"type:text;not null"`
	Algorithm   string     `gorm:"type:text;not null"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;default:now()"`
	ExpiresAt   *time.Time `gorm:"type:timestamptz"`
}

// ExpiredAt reports whether the key is past its expiry at the given instant.
func (k EncryptionKey) ExpiredAt(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
