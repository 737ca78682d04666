package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/vigil-dev/vigil/internal/models"
)

// Provider defines the interface for all notification providers
type Provider interface {
	// Name returns the unique identifier for this provider
	Name() string

	// Send sends a notification with the given message
	Send(ctx context.Context, channel *models.Notification, message *Message) error

	// Validate validates the provider configuration
	Validate(config map[string]interface{}) error
}

// Message represents a notification message to be sent
type Message struct {
	Title       string
	Body        string
	MonitorName string
	MonitorURL  string
	Status      string // "up", "down", "maintenance"
	Ping        int    // milliseconds
	Time        string
	Important   bool
}

var (
	providers = make(map[string]Provider)
	mu        sync.RWMutex
)

// RegisterProvider registers a new notification provider
func RegisterProvider(provider Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[provider.Name()] = provider
}

// GetProvider returns a provider by name
func GetProvider(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	provider, ok := providers[name]
	return provider, ok
}

// GetAllProviders returns all registered providers
func GetAllProviders() map[string]Provider {
	mu.RLock()
	defer mu.RUnlock()
	result := make(map[string]Provider)
	for k, v := range providers {
		result[k] = v
	}
	return result
}

// FormatMessage renders a plain-text body with the common details
func FormatMessage(msg *Message) string {
	body := fmt.Sprintf("%s\n\n", msg.Title)
	body += msg.Body + "\n\n"
	body += fmt.Sprintf("Monitor: %s\n", msg.MonitorName)

	if msg.MonitorURL != "" {
		body += fmt.Sprintf("URL: %s\n", msg.MonitorURL)
	}

	if msg.Ping > 0 {
		body += fmt.Sprintf("Response Time: %dms\n", msg.Ping)
	}

	body += fmt.Sprintf("Time: %s\n", msg.Time)

	return body
}
