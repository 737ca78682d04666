package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyProvider sends PagerDuty Events API v2 notifications. Down
// alerts trigger an event, recoveries resolve it via the dedup key.
type PagerDutyProvider struct{}

func init() {
	RegisterProvider(&PagerDutyProvider{})
}

func (p *PagerDutyProvider) Name() string {
	return "pagerduty"
}

func (p *PagerDutyProvider) Send(ctx context.Context, channel *models.Notification, message *Message) error {
	integrationKey, _ := channel.Config["integration_key"].(string)
	severity, _ := channel.Config["severity"].(string)

	if integrationKey == "" {
		return fmt.Errorf("integration_key is required")
	}

	if severity == "" {
		if message.Status == "down" {
			severity = "critical"
		} else {
			severity = "info"
		}
	}

	eventAction := "trigger"
	if message.Status == "up" {
		eventAction = "resolve"
	}

	customDetails := map[string]interface{}{
		"monitor": message.MonitorName,
		"status":  message.Status,
		"message": message.Body,
		"time":    message.Time,
	}
	if message.Ping > 0 {
		customDetails["response_time"] = fmt.Sprintf("%dms", message.Ping)
	}
	if message.MonitorURL != "" {
		customDetails["url"] = message.MonitorURL
	}

	payload := map[string]interface{}{
		"routing_key":  integrationKey,
		"event_action": eventAction,
		"dedup_key":    fmt.Sprintf("vigil-%s", message.MonitorName),
		"payload": map[string]interface{}{
			"summary":        message.Title,
			"source":         "Vigil",
			"severity":       severity,
			"timestamp":      message.Time,
			"custom_details": customDetails,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", pagerDutyEventsURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send PagerDuty event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("PagerDuty API returned status %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode PagerDuty response: %w", err)
	}
	if status, _ := result["status"].(string); status != "success" {
		errMsg, _ := result["message"].(string)
		return fmt.Errorf("PagerDuty API error: %s", errMsg)
	}

	return nil
}

func (p *PagerDutyProvider) Validate(config map[string]interface{}) error {
	integrationKey, ok := config["integration_key"].(string)
	if !ok || integrationKey == "" {
		return fmt.Errorf("integration_key is required")
	}
	return nil
}
