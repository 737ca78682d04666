package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
)

// NtfyProvider sends ntfy notifications (self-hosted or ntfy.sh)
type NtfyProvider struct{}

func init() {
	RegisterProvider(&NtfyProvider{})
}

func (n *NtfyProvider) Name() string {
	return "ntfy"
}

func (n *NtfyProvider) Send(ctx context.Context, channel *models.Notification, message *Message) error {
	serverURL, _ := channel.Config["server_url"].(string)
	topic, _ := channel.Config["topic"].(string)
	priority, _ := channel.Config["priority"].(float64)
	username, _ := channel.Config["username"].(string)
	password, _ := channel.Config["password"].(string)

	if serverURL == "" {
		serverURL = "https://ntfy.sh"
	}
	if topic == "" {
		return fmt.Errorf("topic is required")
	}

	if priority == 0 {
		if message.Status == "down" {
			priority = 4
		} else {
			priority = 3
		}
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(serverURL, "/"), topic)
	body := FormatMessage(message)

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Title", message.Title)
	req.Header.Set("Priority", fmt.Sprintf("%d", int(priority)))
	req.Header.Set("User-Agent", "Vigil/1.0")
	if username != "" && password != "" {
		req.SetBasicAuth(username, password)
	}
	if message.MonitorURL != "" {
		req.Header.Set("Actions", fmt.Sprintf("view, View Monitor, %s", message.MonitorURL))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy server returned status %d", resp.StatusCode)
	}

	return nil
}

func (n *NtfyProvider) Validate(config map[string]interface{}) error {
	topic, ok := config["topic"].(string)
	if !ok || topic == "" {
		return fmt.Errorf("topic is required")
	}
	return nil
}
