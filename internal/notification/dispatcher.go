package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/models"
)

const sendTimeout = 30 * time.Second

// Dispatcher resolves which channels a monitor alerts to and fans the
// message out to their providers
type Dispatcher struct {
	db *gorm.DB
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{db: db}
}

// NotifyDown sends down notifications for a confirmed outage
func (d *Dispatcher) NotifyDown(m *models.Monitor, result *models.CheckResult) error {
	ping := 0
	if result.ResponseTime != nil {
		ping = *result.ResponseTime
	}
	return d.send(m.ID, &Message{
		Title:       "Monitor is DOWN",
		Body:        result.Message,
		MonitorName: m.Name,
		MonitorURL:  m.URL,
		Status:      "down",
		Ping:        ping,
		Time:        time.Now().Format(time.RFC3339),
		Important:   true,
	})
}

// NotifyRecovered sends recovery notifications after an outage ends
func (d *Dispatcher) NotifyRecovered(m *models.Monitor, inc *models.Incident) error {
	body := "Monitor is responding again"
	if inc != nil && inc.DurationSeconds != nil {
		body = fmt.Sprintf("Recovered after %s of downtime",
			(time.Duration(*inc.DurationSeconds) * time.Second).String())
	}
	return d.send(m.ID, &Message{
		Title:       "Monitor is UP",
		Body:        body,
		MonitorName: m.Name,
		MonitorURL:  m.URL,
		Status:      "up",
		Time:        time.Now().Format(time.RFC3339),
	})
}

// send fans the message out to all of the monitor's channels
// concurrently. Monitors with no channels of their own fall back to
// the default channels.
func (d *Dispatcher) send(monitorID int, msg *Message) error {
	channels, err := d.monitorChannels(monitorID)
	if err != nil {
		return fmt.Errorf("failed to load monitor channels: %w", err)
	}

	if len(channels) == 0 {
		channels, err = d.defaultChannels()
		if err != nil {
			return fmt.Errorf("failed to load default channels: %w", err)
		}
	}

	if len(channels) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	errCh := make(chan error, len(channels))
	for _, ch := range channels {
		go func(n *models.Notification) {
			if err := d.sendOne(ctx, n, msg); err != nil {
				log.Printf("Failed to send notification via %s (%s): %v", n.Type, n.Name, err)
				errCh <- err
				return
			}
			errCh <- nil
		}(ch)
	}

	var failed int
	for i := 0; i < len(channels); i++ {
		if err := <-errCh; err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to send %d/%d notifications", failed, len(channels))
	}
	return nil
}

func (d *Dispatcher) sendOne(ctx context.Context, channel *models.Notification, msg *Message) error {
	if !channel.Active {
		return nil
	}

	provider, ok := GetProvider(channel.Type)
	if !ok {
		return fmt.Errorf("unknown notification provider: %s", channel.Type)
	}
	return provider.Send(ctx, channel, msg)
}

func (d *Dispatcher) monitorChannels(monitorID int) ([]*models.Notification, error) {
	var channels []*models.Notification
	err := d.db.
		Joins("INNER JOIN monitor_notifications mn ON mn.notification_id = notifications.id").
		Where("mn.monitor_id = ? AND notifications.active = ?", monitorID, true).
		Find(&channels).Error
	return channels, err
}

func (d *Dispatcher) defaultChannels() ([]*models.Notification, error) {
	var channels []*models.Notification
	err := d.db.Where("is_default = ? AND active = ?", true, true).Find(&channels).Error
	return channels, err
}

// TestChannel sends a test message through a single channel
func (d *Dispatcher) TestChannel(ctx context.Context, channel *models.Notification) error {
	return d.sendOne(ctx, channel, &Message{
		Title:       "Test Notification",
		Body:        "This is a test notification from Vigil.",
		MonitorName: "Test Monitor",
		Status:      "up",
		Time:        time.Now().Format(time.RFC3339),
	})
}
