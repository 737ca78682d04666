package engine

import (
	"github.com/vigil-dev/vigil/internal/models"
	"gorm.io/gorm"
)

// GormMonitorStore backs the pipeline's monitor access with the
// application database
type GormMonitorStore struct {
	db *gorm.DB
}

func NewGormMonitorStore(db *gorm.DB) *GormMonitorStore {
	return &GormMonitorStore{db: db}
}

// Get loads a monitor by ID
func (s *GormMonitorStore) Get(id int) (*models.Monitor, error) {
	var m models.Monitor
	if err := s.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveStatus persists only the runtime state columns so that
// concurrent configuration edits are never overwritten by the pipeline
func (s *GormMonitorStore) SaveStatus(m *models.Monitor) error {
	return s.db.Model(&models.Monitor{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"status":                   m.Status,
		"status_changed_at":        m.StatusChangedAt,
		"down_since":               m.DownSince,
		"consecutive_failures":     m.ConsecutiveFailures,
		"transient_failures":       m.TransientFailures,
		"last_alert_failure_count": m.LastAlertFailureCount,
	}).Error
}
