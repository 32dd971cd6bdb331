package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

const (
	eventIntakeConsumer = "event-intake"
	idempotencyTTL      = 24 * time.Hour

	eventMessageCreated = "message.created"
	eventLeadAssigned   = "lead.assigned"

	relatedTypeChannel = "channel"
)

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, event DispatchEvent) (*models.Notification, error)
}

type channelMirror interface {
	OnMessageCreated(ctx context.Context, channelID uuid.UUID, author, body string) error
}

// Consumer watches domain events and turns them into notification dispatches.
type Consumer struct {
	dispatcher   eventDispatcher
	subscription *pubsub.Subscriber
	idempotency  idempotencyStore
	mirror       channelMirror
	logg         *logger.Logger
}

// ConsumerParams collects Consumer dependencies. Mirror is optional.
type ConsumerParams struct {
	Dispatcher   eventDispatcher
	Subscription *pubsub.Subscriber
	Idempotency  idempotencyStore
	Mirror       channelMirror
	Logger       *logger.Logger
}

// NewConsumer builds an event intake consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		dispatcher:   params.Dispatcher,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		mirror:       params.Mirror,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != eventMessageCreated && eventType != eventLeadAssigned {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var payload domainEventPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}
	if payload.EventID == uuid.Nil || payload.UserID == uuid.Nil {
		c.logg.Warn(logCtx, "payload missing event or user id")
		return processResult{ack: true}
	}

	key := c.idempotency.IdempotencyKey(eventIntakeConsumer, payload.EventID.String())
	fresh, err := c.idempotency.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), idempotencyTTL)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if _, err := c.dispatcher.Dispatch(ctx, c.toDispatchEvent(eventType, payload)); err != nil {
		c.logg.Error(logCtx, "dispatch failed", err)
		_ = c.idempotency.Del(ctx, key)
		return processResult{nack: true}
	}

	if eventType == eventMessageCreated {
		c.mirrorMessage(ctx, payload)
	}
	return processResult{ack: true}
}

// mirrorMessage relays a channel message to its side channel. Best effort;
// the event is already acked on dispatch success.
func (c *Consumer) mirrorMessage(ctx context.Context, payload domainEventPayload) {
	if c.mirror == nil || payload.RelatedID == nil {
		return
	}
	if payload.RelatedType == nil || *payload.RelatedType != relatedTypeChannel {
		return
	}
	if err := c.mirror.OnMessageCreated(ctx, *payload.RelatedID, payload.ActorName, payload.Body); err != nil {
		c.logg.Error(ctx, "channel mirror failed", err)
	}
}

func (c *Consumer) toDispatchEvent(eventType string, payload domainEventPayload) DispatchEvent {
	event := DispatchEvent{
		UserID:         payload.UserID,
		Priority:       enums.PriorityMedium,
		RecipientEmail: payload.UserEmail,
		RelatedID:      payload.RelatedID,
		RelatedType:    payload.RelatedType,
	}
	switch eventType {
	case eventMessageCreated:
		event.Type = enums.NotificationTypeMessage
		event.Title = fmt.Sprintf("New message from %s", payload.ActorName)
		event.Body = payload.Body
	case eventLeadAssigned:
		event.Type = enums.NotificationTypeLead
		event.Title = "Lead assigned to you"
		event.Body = fmt.Sprintf("%s assigned you a lead.", payload.ActorName)
		event.Priority = enums.PriorityHigh
	}
	if event.Body == "" {
		event.Body = event.Title
	}
	return event
}

type domainEventPayload struct {
	EventID     uuid.UUID  `json:"event_id"`
	UserID      uuid.UUID  `json:"user_id"`
	UserEmail   string     `json:"user_email"`
	ActorName   string     `json:"actor_name"`
	Body        string     `json:"body"`
	RelatedID   *uuid.UUID `json:"related_id,omitempty"`
	RelatedType *string    `json:"related_type,omitempty"`
}
