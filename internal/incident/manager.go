package incident

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/models"
)

// Manager owns the lifecycle of Incident rows. The at-most-one-open
// invariant is enforced by checking state immediately before creating;
// the narrow race window this leaves is accepted.
type Manager struct {
	db *gorm.DB
}

// NewManager creates a new incident manager
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetOpen returns the monitor's open incident, or nil when there is none
func (m *Manager) GetOpen(monitorID int) (*models.Incident, error) {
	var inc models.Incident
	err := m.db.Where("monitor_id = ? AND ended_at IS NULL", monitorID).
		Order("started_at DESC").First(&inc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// Open creates an incident for a confirmed failure. When an incident is
// already open for the monitor it is returned unchanged instead of
// creating a second one.
func (m *Manager) Open(monitorID int, startedAt time.Time, reason string) (*models.Incident, error) {
	existing, err := m.GetOpen(monitorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	inc := &models.Incident{
		MonitorID: monitorID,
		StartedAt: startedAt,
		Reason:    reason,
	}
	if err := m.db.Create(inc).Error; err != nil {
		return nil, fmt.Errorf("open incident for monitor %d: %w", monitorID, err)
	}
	return inc, nil
}

// Close ends an incident and records its computed duration
func (m *Manager) Close(inc *models.Incident, endedAt time.Time) error {
	inc.CloseAt(endedAt)
	return m.db.Save(inc).Error
}

// MarkAlerted records that a down alert fired for this incident and at
// which failure count, which later gates the recovery alert
func (m *Manager) MarkAlerted(inc *models.Incident, failureCount int) error {
	inc.DownAlertSent = true
	inc.AlertFailureCount = failureCount
	return m.db.Model(inc).Updates(map[string]interface{}{
		"down_alert_sent":     true,
		"alert_failure_count": failureCount,
	}).Error
}

// List returns a monitor's incidents, newest first
func (m *Manager) List(monitorID, limit int) ([]models.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	var incidents []models.Incident
	err := m.db.Where("monitor_id = ?", monitorID).
		Order("started_at DESC").Limit(limit).Find(&incidents).Error
	return incidents, err
}
