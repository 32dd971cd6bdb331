package preferences

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/hivecrm/hivecrm-backend/pkg/errors"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

// Resolved is the effective setting for one (user, type, channel) triple.
type Resolved struct {
	IsEnabled       bool
	Frequency       enums.DeliveryFrequency
	QuietHoursStart string
	QuietHoursEnd   string
	EmailAddress    string
}

type defaultPolicy struct {
	enabled   bool
	frequency enums.DeliveryFrequency
}

// defaultPolicies covers every notification type. init panics if a type is
// missing so the table cannot drift from the enum.
var defaultPolicies = map[enums.NotificationType]defaultPolicy{
	enums.NotificationTypeInfo:    {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeSuccess: {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeWarning: {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeError:   {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeMessage: {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeMention: {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeTask:    {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeLead:    {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeDeal:    {enabled: true, frequency: enums.FrequencyImmediate},
	enums.NotificationTypeSystem:  {enabled: false, frequency: enums.FrequencyImmediate},
}

func init() {
	for _, notificationType := range enums.NotificationTypes {
		if _, ok := defaultPolicies[notificationType]; !ok {
			panic(fmt.Sprintf("no default policy for notification type %q", notificationType))
		}
	}
}

// Service resolves effective preferences and applies updates.
type Service struct {
	repo   Repository
	logger *logger.Logger
}

// NewService builds a preferences service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logger: logg}
}

// Resolve returns the stored preference for the triple, falling back to the
// type's default policy when no row exists.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, channel enums.NotificationChannel) (Resolved, error) {
	if !notificationType.IsValid() {
		return Resolved{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification type %q", notificationType))
	}
	if !channel.IsValid() {
		return Resolved{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid channel %q", channel))
	}

	pref, err := s.repo.Get(ctx, userID, notificationType, channel)
	if err != nil {
		return Resolved{}, fmt.Errorf("load preference: %w", err)
	}
	if pref == nil {
		policy := defaultPolicies[notificationType]
		return Resolved{IsEnabled: policy.enabled, Frequency: policy.frequency}, nil
	}

	resolved := Resolved{
		IsEnabled: pref.IsEnabled,
		Frequency: pref.Frequency,
	}
	if pref.QuietHoursStart != nil {
		resolved.QuietHoursStart = *pref.QuietHoursStart
	}
	if pref.QuietHoursEnd != nil {
		resolved.QuietHoursEnd = *pref.QuietHoursEnd
	}
	if pref.EmailAddress != nil {
		resolved.EmailAddress = *pref.EmailAddress
	}
	return resolved, nil
}

// SetInput carries an upsert for one (type, channel) pair.
type SetInput struct {
	UserID           uuid.UUID
	NotificationType enums.NotificationType
	Channel          enums.NotificationChannel
	IsEnabled        bool
	Frequency        enums.DeliveryFrequency
	QuietHoursStart  *string
	QuietHoursEnd    *string
	EmailAddress     *string
	PushDeviceTokens *string
}

// Set upserts a preference row. Existing rows are replaced, never implicitly
// deleted; disabling a channel is an explicit IsEnabled=false write.
func (s *Service) Set(ctx context.Context, input SetInput) error {
	if !input.NotificationType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification type %q", input.NotificationType))
	}
	if !input.Channel.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid channel %q", input.Channel))
	}
	if !input.Frequency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid frequency %q", input.Frequency))
	}
	for _, window := range []*string{input.QuietHoursStart, input.QuietHoursEnd} {
		if window == nil {
			continue
		}
		if _, err := parseClock(*window); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quiet hours window")
		}
	}

	now := time.Now().UTC()
	pref := &models.NotificationPreference{
		ID:               uuid.New(),
		UserID:           input.UserID,
		NotificationType: input.NotificationType,
		Channel:          input.Channel,
		IsEnabled:        input.IsEnabled,
		Frequency:        input.Frequency,
		QuietHoursStart:  input.QuietHoursStart,
		QuietHoursEnd:    input.QuietHoursEnd,
		EmailAddress:     input.EmailAddress,
		PushDeviceTokens: input.PushDeviceTokens,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// ListForUser returns the user's stored preference rows.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.NotificationPreference, error) {
	return s.repo.ListForUser(ctx, userID)
}

// IsQuietNow reports whether now falls inside the resolved [start, end) quiet
// window. When start is later than end the window spans midnight. An empty or
// malformed window never suppresses anything.
func IsQuietNow(resolved Resolved, now time.Time) bool {
	if resolved.QuietHoursStart == "" || resolved.QuietHoursEnd == "" {
		return false
	}
	start, err := parseClock(resolved.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := parseClock(resolved.QuietHoursEnd)
	if err != nil {
		return false
	}
	if start == end {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
