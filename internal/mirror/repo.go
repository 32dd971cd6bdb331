package mirror

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
)

// Repository exposes the channel lookup and communication audit writes the
// mirror needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	CreateCommunication(ctx context.Context, communication *models.Communication) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a mirror repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *repositoryImpl) CreateCommunication(ctx context.Context, communication *models.Communication) error {
	return r.db.WithContext(ctx).Create(communication).Error
}
