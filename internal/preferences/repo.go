package preferences

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
)

// Repository exposes persistence helpers for notification preferences.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, channel enums.NotificationChannel) (*models.NotificationPreference, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.NotificationPreference, error)
	Upsert(ctx context.Context, pref *models.NotificationPreference) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a preferences repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Get(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, channel enums.NotificationChannel) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND notification_type = ? AND channel = ?", userID, notificationType, channel).
		First(&pref).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (r *repositoryImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.NotificationPreference, error) {
	var prefs []models.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("notification_type, channel").
		Find(&prefs).Error
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func (r *repositoryImpl) Upsert(ctx context.Context, pref *models.NotificationPreference) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "notification_type"}, {Name: "channel"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_enabled", "frequency", "quiet_hours_start", "quiet_hours_end",
			"email_address", "push_device_tokens", "updated_at",
		}),
	}).Create(pref).Error
}
