package securemsg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/internal/crypto"
	"github.com/hivecrm/hivecrm-backend/internal/keystore"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

// KeyStore is the key-material surface the manager needs.
type KeyStore interface {
	GetOrCreateSymmetricKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, []byte, error)
	GetSymmetricKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, []byte, error)
	GetKeyPair(ctx context.Context, userID uuid.UUID) (*models.UserKeyPair, error)
	IsExpired(ctx context.Context, userID uuid.UUID) (bool, error)
	Rotate(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, bool, error)
}

// KeyExchange carries a symmetric key wrapped for a recipient plus the
// sender's signature over the wrapped bytes.
type KeyExchange struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	WrappedKey  []byte    `json:"wrapped_key"`
	Signature   []byte    `json:"signature"`
}

// Manager composes the key store and the crypto primitives into the
// message-level operations.
type Manager struct {
	keys   KeyStore
	logger *logger.Logger
}

// NewManager builds a secure message manager.
func NewManager(keys KeyStore, logg *logger.Logger) *Manager {
	return &Manager{keys: keys, logger: logg}
}

// InitializeUserSecurity ensures the user has both a symmetric key and an
// asymmetric pair. Safe to call repeatedly; existing material is never
// replaced here.
func (m *Manager) InitializeUserSecurity(ctx context.Context, userID uuid.UUID) error {
	if _, _, err := m.keys.GetOrCreateSymmetricKey(ctx, userID); err != nil {
		return fmt.Errorf("init symmetric key: %w", err)
	}
	if _, err := m.keys.GetKeyPair(ctx, userID); err != nil {
		return fmt.Errorf("init key pair: %w", err)
	}
	return nil
}

// EncryptFor seals a payload under the user's current key. An expired key
// fails with keystore.ErrKeyExpired; rotation is the caller's decision.
func (m *Manager) EncryptFor(ctx context.Context, userID uuid.UUID, plaintext []byte) (crypto.Bundle, error) {
	_, material, err := m.keys.GetSymmetricKey(ctx, userID)
	if err != nil {
		return crypto.Bundle{}, err
	}
	expired, err := m.keys.IsExpired(ctx, userID)
	if err != nil {
		return crypto.Bundle{}, err
	}
	if expired {
		return crypto.Bundle{}, keystore.ErrKeyExpired
	}
	return crypto.Encrypt(material, plaintext)
}

// DecryptFor opens a payload with the user's key. Expired keys still decrypt
// so historical messages stay readable after rotation deadlines pass.
func (m *Manager) DecryptFor(ctx context.Context, userID uuid.UUID, bundle crypto.Bundle) ([]byte, error) {
	_, material, err := m.keys.GetSymmetricKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	return crypto.Decrypt(material, bundle)
}

// ExchangeKeys wraps the sender's symmetric key under the recipient's public
// key and signs the wrapped bytes with the sender's private key.
func (m *Manager) ExchangeKeys(ctx context.Context, senderID, recipientID uuid.UUID) (*KeyExchange, error) {
	_, material, err := m.keys.GetSymmetricKey(ctx, senderID)
	if err != nil {
		return nil, err
	}
	recipientPair, err := m.keys.GetKeyPair(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("recipient key pair: %w", err)
	}
	senderPair, err := m.keys.GetKeyPair(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("sender key pair: %w", err)
	}

	wrapped, err := crypto.WrapKey(recipientPair.PublicKeyPEM, material)
	if err != nil {
		return nil, err
	}
	signature, err := crypto.Sign(senderPair.PrivateKeyPEM, wrapped)
	if err != nil {
		return nil, err
	}
	return &KeyExchange{
		SenderID:    senderID,
		RecipientID: recipientID,
		WrappedKey:  wrapped,
		Signature:   signature,
	}, nil
}

// AcceptExchange verifies the sender's signature over the wrapped key and
// only then unwraps it with the recipient's private key. A bad signature
// fails crypto.ErrSignatureInvalid before any key material is touched.
func (m *Manager) AcceptExchange(ctx context.Context, exchange *KeyExchange) ([]byte, error) {
	if exchange == nil {
		return nil, fmt.Errorf("exchange is required")
	}
	senderPair, err := m.keys.GetKeyPair(ctx, exchange.SenderID)
	if err != nil {
		return nil, fmt.Errorf("sender key pair: %w", err)
	}
	if err := crypto.Verify(senderPair.PublicKeyPEM, exchange.WrappedKey, exchange.Signature); err != nil {
		return nil, err
	}

	recipientPair, err := m.keys.GetKeyPair(ctx, exchange.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("recipient key pair: %w", err)
	}
	return crypto.UnwrapKey(recipientPair.PrivateKeyPEM, exchange.WrappedKey)
}

// RotateKey replaces the user's symmetric key when expired. The asymmetric
// pair is untouched, so exchanges in flight keep verifying.
func (m *Manager) RotateKey(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, rotated, err := m.keys.Rotate(ctx, userID)
	if err != nil {
		return false, err
	}
	if rotated && m.logger != nil {
		m.logger.Info(m.logger.WithFields(ctx, map[string]any{"user_id": userID}), "symmetric key rotated")
	}
	return rotated, nil
}
