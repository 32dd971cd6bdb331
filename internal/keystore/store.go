package keystore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/internal/crypto"
	"github.com/hivecrm/hivecrm-backend/pkg/db"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

// ErrKeyExpired signals that a user's symmetric key is past its expiry and
// must be rotated before use.
var ErrKeyExpired = errors.New("encryption key expired")

// ErrUnknownKey signals that no key material exists for the user.
var ErrUnknownKey = errors.New("no encryption key for user")

// Store manages per-user symmetric keys and asymmetric pairs. All material is
// created lazily. Operations on the same user are serialized through a
// per-user mutex so concurrent init or rotation never races.
type Store struct {
	repo   Repository
	logger *logger.Logger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewStore builds a key store with the given key TTL.
func NewStore(repo Repository, logg *logger.Logger, ttl time.Duration) *Store {
	return &Store{
		repo:   repo,
		logger: logg,
		ttl:    ttl,
		now:    time.Now,
		locks:  map[uuid.UUID]*sync.Mutex{},
	}
}

func (s *Store) userLock(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// GetOrCreateSymmetricKey returns the user's active key material, generating
// and persisting a fresh key when none exists. Expired keys are returned
// as-is; callers decide whether expiry is an error for their operation.
func (s *Store) GetOrCreateSymmetricKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, []byte, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	key, err := s.repo.GetKey(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load key: %w", err)
	}
	if key != nil {
		material, err := decodeMaterial(key.KeyMaterial)
		if err != nil {
			return nil, nil, err
		}
		return key, material, nil
	}
	return s.createKey(ctx, userID)
}

// GetSymmetricKey returns the user's key material or ErrUnknownKey.
func (s *Store) GetSymmetricKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, []byte, error) {
	key, err := s.repo.GetKey(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load key: %w", err)
	}
	if key == nil {
		return nil, nil, ErrUnknownKey
	}
	material, err := decodeMaterial(key.KeyMaterial)
	if err != nil {
		return nil, nil, err
	}
	return key, material, nil
}

// IsExpired reports whether the user's current key is past its expiry.
// A missing key yields ErrUnknownKey.
func (s *Store) IsExpired(ctx context.Context, userID uuid.UUID) (bool, error) {
	key, err := s.repo.GetKey(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load key: %w", err)
	}
	if key == nil {
		return false, ErrUnknownKey
	}
	return key.ExpiredAt(s.now()), nil
}

// Rotate replaces the user's symmetric key when it is missing or expired. A
// still-fresh key is returned unchanged, so repeated rotation is idempotent
// within the key's lifetime. The asymmetric pair is never touched.
func (s *Store) Rotate(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, bool, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	key, err := s.repo.GetKey(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("load key: %w", err)
	}
	if key != nil && !key.ExpiredAt(s.now()) {
		return key, false, nil
	}

	replaced, _, err := s.createKey(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if s.logger != nil {
		s.logger.Info(s.logger.WithFields(ctx, map[string]any{"user_id": userID}), "encryption key rotated")
	}
	return replaced, true, nil
}

// GetKeyPair returns the user's asymmetric pair, generating one lazily. The
// private half stays inside this package's callers; API surfaces should only
// forward PublicKeyPEM.
func (s *Store) GetKeyPair(ctx context.Context, userID uuid.UUID) (*models.UserKeyPair, error) {
	pair, err := s.repo.GetKeyPair(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	if pair != nil {
		return pair, nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// re-check under the lock
	pair, err = s.repo.GetKeyPair(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	if pair != nil {
		return pair, nil
	}

	publicPEM, privatePEM, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	pair = &models.UserKeyPair{
		UserID:        userID,
		PublicKeyPEM:  publicPEM,
		PrivateKeyPEM: privatePEM,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.CreateKeyPair(ctx, pair); err != nil {
		// another instance won the insert race; its pair is the real one
		if db.IsUniqueViolation(err, "user_key_pairs_pkey") {
			return s.repo.GetKeyPair(ctx, userID)
		}
		return nil, fmt.Errorf("persist key pair: %w", err)
	}
	return pair, nil
}

func (s *Store) createKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, []byte, error) {
	material, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	key := &models.EncryptionKey{
		ID:          uuid.New(),
		UserID:      userID,
		KeyMaterial: base64.StdEncoding.EncodeToString(material),
		Algorithm:   crypto.AlgorithmID,
		CreatedAt:   now,
		ExpiresAt:   &expires,
	}
	if err := s.repo.UpsertKey(ctx, key); err != nil {
		return nil, nil, fmt.Errorf("persist key: %w", err)
	}
	return key, material, nil
}

func decodeMaterial(encoded string) ([]byte, error) {
	material, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return material, nil
}
