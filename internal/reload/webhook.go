package reload

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"confd/internal/retry"

	"github.com/google/uuid"
)

// WebhookConfig represents the webhook reload listener configuration
type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Secret  string            `mapstructure:"secret"` // HMAC-SHA256 request signing
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Retry   retry.Config      `mapstructure:"retry"`
}

// WebhookPayload is the body posted to the configured endpoint
type WebhookPayload struct {
	EventType  string    `json:"event_type"`
	DeliveryID string    `json:"delivery_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// WebhookNotifier posts a reload event to an external endpoint. It
// satisfies ListenerFunc via Notify.
type WebhookNotifier struct {
	config *WebhookConfig
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(cfg *WebhookConfig) (*WebhookNotifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		config: cfg,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
	}, nil
}

// Notify posts the reload event, retrying transient failures
func (n *WebhookNotifier) Notify(ctx context.Context) error {
	payload := WebhookPayload{
		EventType:  "config.reload",
		DeliveryID: uuid.New().String(),
		Timestamp:  time.Now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return retry.Execute(ctx, &n.config.Retry, func(ctx context.Context) error {
		return n.send(ctx, payload, data)
	})
}

func (n *WebhookNotifier) send(ctx context.Context, payload WebhookPayload, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Confd-Event", payload.EventType)
	req.Header.Set("X-Confd-Delivery", payload.DeliveryID)

	if n.config.Secret != "" {
		req.Header.Set("X-Confd-Signature", signPayload(data, []byte(n.config.Secret)))
	}

	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}

// signPayload computes the hex encoded HMAC-SHA256 of the body
func signPayload(data, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
