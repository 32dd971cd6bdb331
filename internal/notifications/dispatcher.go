package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/internal/preferences"
	"github.com/hivecrm/hivecrm-backend/pkg/config"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
	pkgerrors "github.com/hivecrm/hivecrm-backend/pkg/errors"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

// DispatchEvent is one request to notify a user. RecipientEmail is the
// user's account address; a preference with its own email address
// overrides it.
type DispatchEvent struct {
	UserID         uuid.UUID                  `validate:"required"`
	Type           enums.NotificationType     `validate:"required"`
	Priority       enums.NotificationPriority `validate:"omitempty"`
	RecipientEmail string                     `validate:"omitempty,email"`
	Title          string                     `validate:"required,max=255"`
	Body           string                     `validate:"required"`
	ActionURL      *string                    `validate:"omitempty,max=2048"`
	ActionText     *string                    `validate:"omitempty,max=64"`
	Icon           *string                    `validate:"omitempty,max=64"`
	ExpiresAt      *time.Time
	Metadata       string
	RelatedID      *uuid.UUID
	RelatedType    *string
}

type preferenceResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, channel enums.NotificationChannel) (preferences.Resolved, error)
}

type queueRepository interface {
	Enqueue(ctx context.Context, item *models.EmailQueueItem) error
}

// Dispatcher turns dispatch events into an in-app row plus per-channel
// queue fan-out.
type Dispatcher struct {
	repo     Repository
	prefs    preferenceResolver
	queue    queueRepository
	logg     *logger.Logger
	validate *validator.Validate
	smtp     config.SMTPConfig
	digest   config.DigestConfig
	now      func() time.Time
}

// DispatcherParams collects Dispatcher dependencies.
type DispatcherParams struct {
	Repo   Repository
	Prefs  preferenceResolver
	Queue  queueRepository
	Logger *logger.Logger
	SMTP   config.SMTPConfig
	Digest config.DigestConfig
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if params.Prefs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "preference resolver required")
	}
	if params.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "queue repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Dispatcher{
		repo:     params.Repo,
		prefs:    params.Prefs,
		queue:    params.Queue,
		logg:     params.Logger,
		validate: validator.New(),
		smtp:     params.SMTP,
		digest:   params.Digest,
		now:      time.Now,
	}, nil
}

// Dispatch persists the in-app notification and fans out to outbound
// channels by resolved preference. The in-app row is unconditional; channel
// failures are logged and never fail the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, event DispatchEvent) (*models.Notification, error) {
	if err := d.validate.Struct(event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispatch event")
	}
	if !event.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification type %q", event.Type))
	}
	priority := event.Priority
	if priority == "" {
		priority = enums.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid priority %q", priority))
	}

	now := d.now().UTC()
	notification := &models.Notification{
		ID:          uuid.New(),
		UserID:      event.UserID,
		Type:        event.Type,
		Category:    enums.ChannelInApp,
		Title:       event.Title,
		Body:        event.Body,
		ActionURL:   event.ActionURL,
		ActionText:  event.ActionText,
		Icon:        event.Icon,
		Priority:    priority,
		ExpiresAt:   event.ExpiresAt,
		Metadata:    event.Metadata,
		RelatedID:   event.RelatedID,
		RelatedType: event.RelatedType,
		CreatedAt:   now,
	}
	if err := d.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"notification_id": notification.ID.String(),
		"user_id":         event.UserID.String(),
		"type":            event.Type,
	})

	for _, channel := range enums.OutboundChannels {
		d.fanOut(logCtx, notification, event, channel, now)
	}
	return notification, nil
}

func (d *Dispatcher) fanOut(ctx context.Context, notification *models.Notification, event DispatchEvent, channel enums.NotificationChannel, now time.Time) {
	channelCtx := d.logg.WithChannel(ctx, string(channel))

	resolved, err := d.prefs.Resolve(ctx, event.UserID, event.Type, channel)
	if err != nil {
		d.logg.Error(channelCtx, "preference resolution failed", err)
		return
	}
	if !resolved.IsEnabled || resolved.Frequency == enums.FrequencyNever {
		return
	}
	if resolved.Frequency == enums.FrequencyImmediate && preferences.IsQuietNow(resolved, now) {
		d.logg.Info(channelCtx, "suppressed by quiet hours")
		return
	}

	var scheduledFor *time.Time
	if resolved.Frequency.IsDigest() {
		boundary := d.nextDigestBoundary(resolved.Frequency, now)
		scheduledFor = &boundary
	}

	switch channel {
	case enums.ChannelEmail:
		if err := d.enqueueEmail(ctx, notification, event, resolved, scheduledFor, now); err != nil {
			d.logg.Error(channelCtx, "email enqueue failed", err)
		}
	default:
		// push/sms providers are not wired yet; the resolution path is
		// shared so they start flowing once a transport lands.
		d.logg.Info(channelCtx, "channel has no transport, skipping")
	}
}

func (d *Dispatcher) enqueueEmail(ctx context.Context, notification *models.Notification, event DispatchEvent, resolved preferences.Resolved, scheduledFor *time.Time, now time.Time) error {
	toAddress := resolved.EmailAddress
	if toAddress == "" {
		toAddress = event.RecipientEmail
	}
	if toAddress == "" {
		d.logg.Info(ctx, "no recipient address, skipping email")
		return nil
	}

	body := event.Body
	item := &models.EmailQueueItem{
		ID:             uuid.New(),
		ToAddress:      toAddress,
		FromAddress:    d.smtp.FromAddress,
		FromName:       &d.smtp.FromName,
		Subject:        event.Title,
		TextBody:       &body,
		Status:         enums.QueueStatusPending,
		MaxRetries:     3,
		ScheduledFor:   scheduledFor,
		NotificationID: &notification.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return err
	}
	d.logg.Info(d.logg.WithQueueItemID(ctx, item.ID.String()), "email queued")
	return nil
}

// nextDigestBoundary returns the next daily or weekly digest send time:
// the coming DigestConfig.Hour for daily, the coming Monday at that hour
// for weekly.
func (d *Dispatcher) nextDigestBoundary(frequency enums.DeliveryFrequency, now time.Time) time.Time {
	hour := d.digest.Hour
	boundary := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())

	if frequency == enums.FrequencyDaily {
		if !boundary.After(now) {
			boundary = boundary.AddDate(0, 0, 1)
		}
		return boundary
	}

	daysUntilMonday := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	boundary = boundary.AddDate(0, 0, daysUntilMonday)
	if !boundary.After(now) {
		boundary = boundary.AddDate(0, 0, 7)
	}
	return boundary
}
