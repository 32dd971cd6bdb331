package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hivecrm/hivecrm-backend/pkg/config"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/enums"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
)

const communicationKindDiscord = "discord_mirror"

// Mirror relays channel messages to a configured Discord webhook. Relay
// failures are recorded and logged, never returned to the message path.
type Mirror struct {
	repo    Repository
	client  *http.Client
	logg    *logger.Logger
	timeout time.Duration
}

// NewMirror builds a channel mirror.
func NewMirror(cfg config.MirrorConfig, repo Repository, logg *logger.Logger) (*Mirror, error) {
	if repo == nil {
		return nil, fmt.Errorf("mirror repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Mirror{
		repo:    repo,
		client:  &http.Client{Timeout: timeout},
		logg:    logg,
		timeout: timeout,
	}, nil
}

type webhookPayload struct {
	Content string `json:"content"`
}

// OnMessageCreated relays a new channel message when mirroring is enabled for
// the channel. Always returns nil; the caller's message flow never depends on
// the mirror.
func (m *Mirror) OnMessageCreated(ctx context.Context, channelID uuid.UUID, author, body string) error {
	logCtx := m.logg.WithFields(ctx, map[string]any{"channel_id": channelID})

	channel, err := m.repo.GetChannel(ctx, channelID)
	if err != nil {
		m.logg.Error(logCtx, "mirror channel lookup failed", err)
		return nil
	}
	if channel == nil || !channel.DiscordMirroringEnabled {
		return nil
	}
	if channel.DiscordWebhookURL == nil || *channel.DiscordWebhookURL == "" {
		m.logg.Warn(logCtx, "mirroring enabled but no webhook url configured")
		return nil
	}

	content := fmt.Sprintf("[%s] %s: %s", channel.Name, author, body)
	sendErr := m.post(ctx, *channel.DiscordWebhookURL, content)

	communication := models.Communication{
		ChannelID: channel.ID,
		Kind:      communicationKindDiscord,
		Body:      content,
		Status:    enums.CommunicationStatusSent,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		communication.Status = enums.CommunicationStatusFailed
		communication.Error = &msg
		m.logg.Error(logCtx, "discord relay failed", sendErr)
	}

	if err := m.repo.CreateCommunication(ctx, &communication); err != nil {
		m.logg.Error(logCtx, "failed to record communication", err)
	}
	return nil
}

func (m *Mirror) post(ctx context.Context, webhookURL, content string) error {
	payload, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
