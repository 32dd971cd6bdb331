package keystore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
)

// Repository exposes persistence helpers for key material.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, error)
	UpsertKey(ctx context.Context, key *models.EncryptionKey) error
	GetKeyPair(ctx context.Context, userID uuid.UUID) (*models.UserKeyPair, error)
	CreateKeyPair(ctx context.Context, pair *models.UserKeyPair) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a key repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetKey(ctx context.Context, userID uuid.UUID) (*models.EncryptionKey, error) {
	var key models.EncryptionKey
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&key).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repositoryImpl) UpsertKey(ctx context.Context, key *models.EncryptionKey) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"key_material", "algorithm", "created_at", "expires_at"}),
	}).Create(key).Error
}

func (r *repositoryImpl) GetKeyPair(ctx context.Context, userID uuid.UUID) (*models.UserKeyPair, error) {
	var pair models.UserKeyPair
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&pair).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (r *repositoryImpl) CreateKeyPair(ctx context.Context, pair *models.UserKeyPair) error {
	return r.db.WithContext(ctx).Create(pair).Error
}
