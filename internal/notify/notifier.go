package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sentinel/internal/config"
	"sentinel/internal/constants"
	"sentinel/internal/logger"
)

// Escalation is the webhook payload posted when a comment is escalated
// to a human.
type Escalation struct {
	ClientID   string    `json:"client_id"`
	CommentID  string    `json:"comment_id"`
	Platform   string    `json:"platform"`
	Level      string    `json:"level"`
	Reason     string    `json:"reason"`
	Confidence int       `json:"confidence"`
	Excerpt    string    `json:"excerpt"`
	Permalink  string    `json:"permalink,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Notifier interface {
	SendEscalation(ctx context.Context, webhookURL string, payload Escalation) error
}

type WebhookNotifier struct {
	httpClient *http.Client
	logger     logger.Logger
}

func NewWebhookNotifier(cfg config.NotifyConfig, log logger.Logger) *WebhookNotifier {
	timeout := cfg.TimeoutSeconds * time.Second
	if timeout <= 0 {
		timeout = constants.WebhookTimeout
	}
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

func (n *WebhookNotifier) SendEscalation(ctx context.Context, webhookURL string, payload Escalation) error {
	if webhookURL == "" {
		n.logger.DebugwCtx(ctx, "No escalation webhook configured, skipping notification")
		return nil
	}

	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
