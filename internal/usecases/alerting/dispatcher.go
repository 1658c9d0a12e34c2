package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
	"github.com/vfg2006/mediation-report-pipeline/pkg/utils"
)

// Dispatcher delivers one alert message per breach to the configured
// channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.AlertEvent) error
}

type webhookPayload struct {
	Text string `json:"text"`
}

// WebhookDispatcher posts single-line alert messages to a Slack-compatible
// incoming webhook.
type WebhookDispatcher struct {
	webhookURL string
	client     *http.Client
}

func NewWebhookDispatcher(webhookURL string, timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Dispatch delivers one event. The caller decides what a failure means; the
// dispatcher itself never retries.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event domain.AlertEvent) error {
	body, err := json.Marshal(webhookPayload{Text: FormatMessage(event)})
	if err != nil {
		return fmt.Errorf("encoding alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("alert webhook returned status %d: %s", resp.StatusCode, payload)
	}

	return nil
}

// FormatMessage renders the single-line, human-readable alert text.
func FormatMessage(e domain.AlertEvent) string {
	return fmt.Sprintf(
		"[mediation-alert] date=%s app=%q ad_unit=%q metric=%s observed=%s rule=\"%s %s\"",
		e.ReportDate,
		e.App,
		e.AdUnit,
		e.Metric,
		formatValue(e.Observed),
		e.Op,
		formatValue(e.Threshold),
	)
}

// formatValue renders a metric value for the alert text, capping ratio
// noise at four decimal places.
func formatValue(v float64) string {
	return strconv.FormatFloat(utils.RoundWithFourDecimalPlace(v), 'g', -1, 64)
}
