// Package notify raises operator-facing events: detected opportunities,
// terminal execution attempts, flagged residuals. Console by default,
// webhook when configured.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Severity ranks an alert for the consuming surface. High marks open,
// potentially losing exposure that needs manual review.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityHigh Severity = "high"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Alert(ctx context.Context, severity Severity, title, message string) error
}

// ConsoleNotifier logs alerts: info at info level, high at warn level.
type ConsoleNotifier struct {
	logger *zap.Logger
}

// NewConsole creates a console notifier.
func NewConsole(logger *zap.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) Alert(_ context.Context, severity Severity, title, message string) error {
	fields := []zap.Field{
		zap.String("severity", string(severity)),
		zap.String("title", title),
		zap.String("message", message),
	}
	if severity == SeverityHigh {
		n.logger.Warn("operator-alert", fields...)
	} else {
		n.logger.Info("operator-alert", fields...)
	}
	return nil
}

// WebhookNotifier posts alerts as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (n *WebhookNotifier) Alert(ctx context.Context, severity Severity, title, message string) error {
	body, err := json.Marshal(webhookPayload{
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}

	n.logger.Debug("alert-delivered", zap.String("title", title))
	return nil
}
