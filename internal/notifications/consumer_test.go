package notifications

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

type fakeDispatcher struct {
	events []DispatchEvent
	err    error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, event DispatchEvent) (*models.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.events = append(f.events, event)
	return &models.Notification{ID: uuid.New()}, nil
}

type fakeIdempotency struct {
	mu      sync.Mutex
	seen    map[string]bool
	deleted []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: map[string]bool{}}
}

func (f *fakeIdempotency) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotency) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.seen, key)
		f.deleted = append(f.deleted, key)
	}
	return nil
}

func (f *fakeIdempotency) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

type fakeMirror struct {
	channelIDs []uuid.UUID
}

func (f *fakeMirror) OnMessageCreated(ctx context.Context, channelID uuid.UUID, author, body string) error {
	f.channelIDs = append(f.channelIDs, channelID)
	return nil
}

func newTestConsumer(dispatcher eventDispatcher, store idempotencyStore, m channelMirror) *Consumer {
	return &Consumer{
		dispatcher:  dispatcher,
		idempotency: store,
		mirror:      m,
		logg:        logger.New(logger.Options{ServiceName: "consumer-test", Output: io.Discard}),
	}
}

func eventMessage(t *testing.T, eventType string, payload domainEventPayload) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"event_type": eventType},
	}
}

func TestProcessDispatchesMessageCreated(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	consumer := newTestConsumer(dispatcher, newFakeIdempotency(), nil)

	msg := eventMessage(t, eventMessageCreated, domainEventPayload{
		EventID:   uuid.New(),
		UserID:    uuid.New(),
		UserEmail: "bo@example.com",
		ActorName: "ana",
		Body:      "hello",
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(dispatcher.events))
	}
	event := dispatcher.events[0]
	if event.Type != enums.NotificationTypeMessage {
		t.Fatalf("unexpected type %q", event.Type)
	}
	if event.Title != "New message from ana" {
		t.Fatalf("unexpected title %q", event.Title)
	}
	if event.RecipientEmail != "bo@example.com" {
		t.Fatalf("unexpected recipient %q", event.RecipientEmail)
	}
}

func TestProcessSkipsUnhandledEvents(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	consumer := newTestConsumer(dispatcher, newFakeIdempotency(), nil)

	msg := eventMessage(t, "order.created", domainEventPayload{EventID: uuid.New(), UserID: uuid.New()})
	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatal("unhandled events must be acked")
	}
	if len(dispatcher.events) != 0 {
		t.Fatal("unhandled events must not be dispatched")
	}
}

func TestProcessDuplicateEventDispatchesOnce(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	store := newFakeIdempotency()
	consumer := newTestConsumer(dispatcher, store, nil)

	payload := domainEventPayload{EventID: uuid.New(), UserID: uuid.New(), ActorName: "ana", Body: "hi"}
	first := consumer.process(context.Background(), eventMessage(t, eventMessageCreated, payload))
	second := consumer.process(context.Background(), eventMessage(t, eventMessageCreated, payload))

	if !first.ack || !second.ack {
		t.Fatal("both deliveries must ack")
	}
	if len(dispatcher.events) != 1 {
		t.Fatalf("expected a single dispatch, got %d", len(dispatcher.events))
	}
}

func TestProcessDispatchFailureNacksAndReleasesKey(t *testing.T) {
	dispatcher := &fakeDispatcher{err: context.DeadlineExceeded}
	store := newFakeIdempotency()
	consumer := newTestConsumer(dispatcher, store, nil)

	payload := domainEventPayload{EventID: uuid.New(), UserID: uuid.New(), ActorName: "ana", Body: "hi"}
	result := consumer.process(context.Background(), eventMessage(t, eventMessageCreated, payload))
	if !result.nack {
		t.Fatal("dispatch failure must nack")
	}
	if len(store.deleted) != 1 {
		t.Fatal("idempotency key must be released for redelivery")
	}
}

func TestProcessMirrorsChannelMessages(t *testing.T) {
	m := &fakeMirror{}
	consumer := newTestConsumer(&fakeDispatcher{}, newFakeIdempotency(), m)

	channelID := uuid.New()
	relatedType := relatedTypeChannel
	payload := domainEventPayload{
		EventID:     uuid.New(),
		UserID:      uuid.New(),
		ActorName:   "ana",
		Body:        "hi",
		RelatedID:   &channelID,
		RelatedType: &relatedType,
	}
	if result := consumer.process(context.Background(), eventMessage(t, eventMessageCreated, payload)); !result.ack {
		t.Fatal("expected ack")
	}
	if len(m.channelIDs) != 1 || m.channelIDs[0] != channelID {
		t.Fatalf("expected mirror call for channel %s, got %v", channelID, m.channelIDs)
	}

	// lead events never hit the mirror
	if result := consumer.process(context.Background(), eventMessage(t, eventLeadAssigned, domainEventPayload{
		EventID: uuid.New(), UserID: uuid.New(), RelatedID: &channelID, RelatedType: &relatedType,
	})); !result.ack {
		t.Fatal("expected ack")
	}
	if len(m.channelIDs) != 1 {
		t.Fatal("lead events must not be mirrored")
	}
}
