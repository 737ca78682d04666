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

// SlackProvider sends Slack incoming-webhook notifications
type SlackProvider struct{}

func init() {
	RegisterProvider(&SlackProvider{})
}

func (s *SlackProvider) Name() string {
	return "slack"
}

func (s *SlackProvider) Send(ctx context.Context, channel *models.Notification, message *Message) error {
	webhookURL, _ := channel.Config["webhook_url"].(string)
	slackChannel, _ := channel.Config["channel"].(string)
	username, _ := channel.Config["username"].(string)

	if webhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}
	if username == "" {
		username = "Vigil"
	}

	var color string
	switch message.Status {
	case "up":
		color = "good"
	case "down":
		color = "danger"
	case "maintenance":
		color = "#0000FF"
	default:
		color = "#808080"
	}

	fields := []map[string]interface{}{
		{"title": "Monitor", "value": message.MonitorName, "short": true},
		{"title": "Status", "value": message.Status, "short": true},
	}
	if message.Ping > 0 {
		fields = append(fields, map[string]interface{}{
			"title": "Response Time", "value": fmt.Sprintf("%dms", message.Ping), "short": true,
		})
	}
	if message.MonitorURL != "" {
		fields = append(fields, map[string]interface{}{
			"title": "URL", "value": message.MonitorURL, "short": false,
		})
	}

	attachment := map[string]interface{}{
		"color":  color,
		"title":  message.Title,
		"text":   message.Body,
		"ts":     time.Now().Unix(),
		"footer": "Vigil",
		"fields": fields,
	}

	payload := map[string]interface{}{
		"username":    username,
		"attachments": []interface{}{attachment},
	}
	if slackChannel != "" {
		payload["channel"] = slackChannel
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (s *SlackProvider) Validate(config map[string]interface{}) error {
	webhookURL, ok := config["webhook_url"].(string)
	if !ok || webhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}
	return nil
}
