package keystore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
)

type fakeRepo struct {
	keys  map[uuid.UUID]models.EncryptionKey
	pairs map[uuid.UUID]models.UserKeyPair

	upsertCalls int
	pairCreates int

	// hidePairReads makes GetKeyPair report no row for that many calls,
	// simulating a concurrent insert landing between read and create
	hidePairReads int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		keys:  map[uuid.UUID]models.EncryptionKey{},
		pairs: map[uuid.UUID]models.UserKeyPair{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) GetKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, error) {
	key, ok := f.keys[userID]
	if !ok {
		return nil, nil
	}
	copied := key
	return &copied, nil
}

func (f *fakeRepo) UpsertKey(ctx context.Context, key *models.EncryptionKey) error {
	f.upsertCalls++
	f.keys[key.UserID] = *key
	return nil
}

func (f *fakeRepo) GetKeyPair(ctx context.Context, userID uuid.UUID) (*models.UserKeyPair, error) {
	if f.hidePairReads > 0 {
		f.hidePairReads--
		return nil, nil
	}
	pair, ok := f.pairs[userID]
	if !ok {
		return nil, nil
	}
	copied := pair
	return &copied, nil
}

func (f *fakeRepo) CreateKeyPair(ctx context.Context, pair *models.UserKeyPair) error {
	if _, exists := f.pairs[pair.UserID]; exists {
		return errors.New(`duplicate key value violates unique constraint "user_key_pairs_pkey"`)
	}
	f.pairCreates++
	f.pairs[pair.UserID] = *pair
	return nil
}

func newTestStore(repo Repository) *Store {
	return NewStore(repo, nil, 24*time.Hour)
}

func TestGetOrCreateSymmetricKeyLazyInit(t *testing.T) {
	repo := newFakeRepo()
	store := newTestStore(repo)
	ctx := context.Background()
	userID := uuid.New()

	key, material, err := store.GetOrCreateSymmetricKey(ctx, userID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if len(material) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(material))
	}
	if key.ExpiresAt == nil {
		t.Fatal("expected expiry to be set")
	}

	again, againMaterial, err := store.GetOrCreateSymmetricKey(ctx, userID)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if again.ID != key.ID {
		t.Fatal("second call should return the same key")
	}
	if string(againMaterial) != string(material) {
		t.Fatal("key material changed between calls")
	}
	if repo.upsertCalls != 1 {
		t.Fatalf("expected a single upsert, got %d", repo.upsertCalls)
	}
}

func TestGetSymmetricKeyUnknownUser(t *testing.T) {
	store := newTestStore(newFakeRepo())
	if _, _, err := store.GetSymmetricKey(context.Background(), uuid.New()); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if _, err := store.IsExpired(context.Background(), uuid.New()); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestRotateReplacesOnlyExpiredKeys(t *testing.T) {
	repo := newFakeRepo()
	store := newTestStore(repo)
	ctx := context.Background()
	userID := uuid.New()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	key, _, err := store.GetOrCreateSymmetricKey(ctx, userID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// fresh key: rotation is a no-op
	same, rotated, err := store.Rotate(ctx, userID)
	if err != nil {
		t.Fatalf("rotate fresh: %v", err)
	}
	if rotated {
		t.Fatal("fresh key should not rotate")
	}
	if same.KeyMaterial != key.KeyMaterial {
		t.Fatal("fresh rotation must keep material")
	}

	current = current.Add(25 * time.Hour)
	expired, err := store.IsExpired(ctx, userID)
	if err != nil {
		t.Fatalf("is expired: %v", err)
	}
	if !expired {
		t.Fatal("key should be expired after ttl")
	}

	replaced, rotated, err := store.Rotate(ctx, userID)
	if err != nil {
		t.Fatalf("rotate expired: %v", err)
	}
	if !rotated {
		t.Fatal("expired key should rotate")
	}
	if replaced.KeyMaterial == key.KeyMaterial {
		t.Fatal("rotation must replace material")
	}
	if replaced.ExpiredAt(current) {
		t.Fatal("rotated key should be fresh")
	}
}

func TestGetKeyPairIsStable(t *testing.T) {
	repo := newFakeRepo()
	store := newTestStore(repo)
	ctx := context.Background()
	userID := uuid.New()

	pair, err := store.GetKeyPair(ctx, userID)
	if err != nil {
		t.Fatalf("get key pair: %v", err)
	}
	if pair.PublicKeyPEM == "" || pair.PrivateKeyPEM == "" {
		t.Fatal("expected both pem halves")
	}

	again, err := store.GetKeyPair(ctx, userID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.PublicKeyPEM != pair.PublicKeyPEM {
		t.Fatal("key pair must be stable across calls")
	}
	if repo.pairCreates != 1 {
		t.Fatalf("expected a single create, got %d", repo.pairCreates)
	}
}

func TestGetKeyPairInsertRaceReturnsWinner(t *testing.T) {
	repo := newFakeRepo()
	store := newTestStore(repo)
	ctx := context.Background()
	userID := uuid.New()

	// another worker persists its pair between our read and insert
	winner := models.UserKeyPair{
		UserID:        userID,
		PublicKeyPEM:  "winner-public",
		PrivateKeyPEM: "winner-private",
	}
	repo.pairs[userID] = winner
	repo.hidePairReads = 2

	pair, err := store.GetKeyPair(ctx, userID)
	if err != nil {
		t.Fatalf("get key pair: %v", err)
	}
	if pair.PublicKeyPEM != winner.PublicKeyPEM {
		t.Fatalf("expected the stored pair, got %q", pair.PublicKeyPEM)
	}
}
