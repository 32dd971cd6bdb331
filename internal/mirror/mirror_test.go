package mirror

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hivecrm/hivecrm-backend/pkg/config"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

type fakeMirrorRepo struct {
	channel        *models.Channel
	communications []models.Communication
}

func (f *fakeMirrorRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeMirrorRepo) GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	return f.channel, nil
}

func (f *fakeMirrorRepo) CreateCommunication(ctx context.Context, communication *models.Communication) error {
	f.communications = append(f.communications, *communication)
	return nil
}

func newTestMirror(t *testing.T, repo Repository) *Mirror {
	t.Helper()
	mirror, err := NewMirror(config.MirrorConfig{Timeout: 2 * time.Second}, repo, logger.New(logger.Options{ServiceName: "mirror-test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}
	return mirror
}

func mirroredChannel(webhookURL string) *models.Channel {
	return &models.Channel{
		ID:                      uuid.New(),
		Name:                    "deals",
		DiscordWebhookURL:       &webhookURL,
		DiscordMirroringEnabled: true,
	}
}

func TestOnMessageCreatedRelays(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	repo := &fakeMirrorRepo{channel: mirroredChannel(server.URL)}
	mirror := newTestMirror(t, repo)

	if err := mirror.OnMessageCreated(context.Background(), repo.channel.ID, "ana", "closing today"); err != nil {
		t.Fatalf("on message created: %v", err)
	}

	if received.Content != "[deals] ana: closing today" {
		t.Fatalf("unexpected content %q", received.Content)
	}
	if len(repo.communications) != 1 {
		t.Fatalf("expected 1 communication row, got %d", len(repo.communications))
	}
	row := repo.communications[0]
	if row.Status != enums.CommunicationStatusSent {
		t.Fatalf("expected sent, got %q", row.Status)
	}
	if row.Kind != communicationKindDiscord {
		t.Fatalf("unexpected kind %q", row.Kind)
	}
}

func TestOnMessageCreatedRecordsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	repo := &fakeMirrorRepo{channel: mirroredChannel(server.URL)}
	mirror := newTestMirror(t, repo)

	if err := mirror.OnMessageCreated(context.Background(), repo.channel.ID, "ana", "hi"); err != nil {
		t.Fatalf("relay failure must not propagate: %v", err)
	}

	if len(repo.communications) != 1 {
		t.Fatalf("expected 1 communication row, got %d", len(repo.communications))
	}
	row := repo.communications[0]
	if row.Status != enums.CommunicationStatusFailed {
		t.Fatalf("expected failed, got %q", row.Status)
	}
	if row.Error == nil || !strings.Contains(*row.Error, "429") {
		t.Fatalf("expected status in error, got %v", row.Error)
	}
}

func TestOnMessageCreatedUnreachableWebhook(t *testing.T) {
	repo := &fakeMirrorRepo{channel: mirroredChannel("http://127.0.0.1:1/webhook")}
	mirror := newTestMirror(t, repo)

	if err := mirror.OnMessageCreated(context.Background(), repo.channel.ID, "ana", "hi"); err != nil {
		t.Fatalf("relay failure must not propagate: %v", err)
	}
	if len(repo.communications) != 1 || repo.communications[0].Status != enums.CommunicationStatusFailed {
		t.Fatal("expected a failed communication row")
	}
}

func TestOnMessageCreatedSkipsDisabledChannel(t *testing.T) {
	url := "http://example.invalid/webhook"
	repo := &fakeMirrorRepo{channel: &models.Channel{
		ID:                uuid.New(),
		Name:              "deals",
		DiscordWebhookURL: &url,
	}}
	mirror := newTestMirror(t, repo)

	if err := mirror.OnMessageCreated(context.Background(), repo.channel.ID, "ana", "hi"); err != nil {
		t.Fatalf("on message created: %v", err)
	}
	if len(repo.communications) != 0 {
		t.Fatal("disabled channel must not be mirrored")
	}
}

func TestOnMessageCreatedMissingChannel(t *testing.T) {
	mirror := newTestMirror(t, &fakeMirrorRepo{})
	if err := mirror.OnMessageCreated(context.Background(), uuid.New(), "ana", "hi"); err != nil {
		t.Fatalf("missing channel must not propagate: %v", err)
	}
}
