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

// DiscordProvider sends Discord webhook notifications
type DiscordProvider struct{}

func init() {
	RegisterProvider(&DiscordProvider{})
}

func (d *DiscordProvider) Name() string {
	return "discord"
}

func (d *DiscordProvider) Send(ctx context.Context, channel *models.Notification, message *Message) error {
	webhookURL, _ := channel.Config["webhook_url"].(string)
	username, _ := channel.Config["username"].(string)

	if webhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}
	if username == "" {
		username = "Vigil"
	}

	var color int
	switch message.Status {
	case "up":
		color = 0x00FF00
	case "down":
		color = 0xFF0000
	case "maintenance":
		color = 0x0000FF
	default:
		color = 0x808080
	}

	fields := []map[string]interface{}{
		{"name": "Monitor", "value": message.MonitorName, "inline": true},
		{"name": "Status", "value": message.Status, "inline": true},
	}
	if message.Ping > 0 {
		fields = append(fields, map[string]interface{}{
			"name": "Response Time", "value": fmt.Sprintf("%dms", message.Ping), "inline": true,
		})
	}
	if message.MonitorURL != "" {
		fields = append(fields, map[string]interface{}{
			"name": "URL", "value": message.MonitorURL, "inline": false,
		})
	}

	embed := map[string]interface{}{
		"title":       message.Title,
		"description": message.Body,
		"color":       color,
		"timestamp":   message.Time,
		"fields":      fields,
	}

	payload := map[string]interface{}{
		"username": username,
		"embeds":   []interface{}{embed},
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
		return fmt.Errorf("failed to send Discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Discord webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (d *DiscordProvider) Validate(config map[string]interface{}) error {
	webhookURL, ok := config["webhook_url"].(string)
	if !ok || webhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}
	return nil
}
