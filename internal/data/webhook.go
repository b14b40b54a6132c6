package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/go-retryablehttp"

	"TradeGuard/internal/conf"
	"TradeGuard/pkg/audit"
)

// alertPayload is the JSON body POSTed to the alert webhook.
type alertPayload struct {
	Service   string       `json:"service"`
	Alert     string       `json:"alert"`
	Event     *audit.Event `json:"event"`
	EmittedAt time.Time    `json:"emitted_at"`
}

// WebhookNotifier delivers alert-worthy audit events to an HTTP endpoint.
// Retries with backoff are handled by the retryable client; the caller's
// context bounds the whole attempt.
type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
	logger *log.Helper
}

// NewWebhookNotifier creates the alert notifier from config. With no webhook
// URL configured it returns a log-only notifier so alert handling stays wired.
func NewWebhookNotifier(c *conf.Audit, logger log.Logger) audit.AlertNotifier {
	helper := log.NewHelper(logger)

	if c == nil || c.Webhook == nil || c.Webhook.Url == "" {
		helper.Info("alert webhook not configured, alerts will be logged only")
		return &logOnlyNotifier{logger: helper}
	}

	timeout := c.Webhook.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := c.Webhook.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil // Disable retryablehttp's own logging

	return &WebhookNotifier{
		url:    c.Webhook.Url,
		client: client,
		logger: helper,
	}
}

// Name identifies the notifier in dispatch logs and metrics.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Dispatch POSTs the event to the configured endpoint. Non-2xx responses
// surface as errors so the alert worker counts them as failed dispatches.
func (n *WebhookNotifier) Dispatch(ctx context.Context, e *audit.Event) error {
	body, err := json.Marshal(alertPayload{
		Service:   "TradeGuard",
		Alert:     fmt.Sprintf("%s (risk %d)", e.EventType, e.RiskScore),
		Event:     e,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debugw("alert delivered",
		"event_id", e.EventID,
		"event_type", e.EventType,
		"risk_score", e.RiskScore)
	return nil
}

// logOnlyNotifier stands in when no webhook is configured: alerts land in the
// service log instead of being dropped.
type logOnlyNotifier struct {
	logger *log.Helper
}

func (n *logOnlyNotifier) Name() string {
	return "log"
}

func (n *logOnlyNotifier) Dispatch(_ context.Context, e *audit.Event) error {
	n.logger.Warnw("security alert (webhook disabled)",
		"event_id", e.EventID,
		"event_type", e.EventType,
		"severity", e.Severity,
		"risk_score", e.RiskScore,
		"user_id", e.UserID,
		"action", e.Action)
	return nil
}
