package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Alert pattern constants
const (
	AlertPatternEvery     = "every"
	AlertPatternFibonacci = "fibonacci"
)

// Monitor represents a monitored endpoint and its runtime state
type Monitor struct {
	ID                int                    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name              string                 `json:"name" gorm:"not null"`
	Type              string                 `json:"type" gorm:"not null;index"` // http, tcp, ping, dns
	URL               string                 `json:"url"`
	Interval          int                    `json:"interval" gorm:"default:60"`           // seconds between checks
	Timeout           int                    `json:"timeout" gorm:"default:30"`            // seconds per probe
	ConfirmationDelay int                    `json:"confirmation_delay" gorm:"default:0"`  // seconds; 0 = use global default
	AlertPattern      string                 `json:"alert_pattern" gorm:"default:'every'"` // every, fibonacci
	Active            bool                   `json:"active" gorm:"default:true;index"`
	Config            map[string]interface{} `json:"config" gorm:"-"`
	ConfigRaw         string                 `json:"-" gorm:"column:config;type:text"`

	// Runtime status, mutated by the check pipeline
	Status          int        `json:"status" gorm:"default:2"` // see check status constants
	StatusChangedAt *time.Time `json:"status_changed_at"`
	DownSince       *time.Time `json:"down_since"`

	// Alert state counters
	ConsecutiveFailures   int `json:"consecutive_failures" gorm:"default:0"`
	TransientFailures     int `json:"transient_failures" gorm:"default:0"`
	LastAlertFailureCount int `json:"last_alert_failure_count" gorm:"default:0"`

	// Denormalized maintenance state, refreshed by the maintenance evaluator
	InMaintenance       bool       `json:"in_maintenance" gorm:"default:false"`
	MaintenanceStartsAt *time.Time `json:"maintenance_starts_at"`
	MaintenanceEndsAt   *time.Time `json:"maintenance_ends_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Monitor
func (Monitor) TableName() string {
	return "monitors"
}

// BeforeSave marshals the Config map to JSON before saving (GORM hook)
func (m *Monitor) BeforeSave(tx *gorm.DB) error {
	if m.Config != nil {
		configJSON, err := json.Marshal(m.Config)
		if err != nil {
			return err
		}
		m.ConfigRaw = string(configJSON)
	}
	return nil
}

// AfterFind unmarshals the Config JSON after loading (GORM hook)
func (m *Monitor) AfterFind(tx *gorm.DB) error {
	if m.ConfigRaw != "" {
		return json.Unmarshal([]byte(m.ConfigRaw), &m.Config)
	}
	return nil
}

// EffectiveStatus folds the maintenance flag into the reported status
// so dashboards show maintenance rather than the underlying check state
func (m *Monitor) EffectiveStatus() int {
	if m.InMaintenance {
		return StatusMaintenance
	}
	return m.Status
}

// PatternOrDefault returns the configured alert pattern, defaulting to
// "every" when unset
func (m *Monitor) PatternOrDefault() string {
	if m.AlertPattern == "" {
		return AlertPatternEvery
	}
	return m.AlertPattern
}

// ConfigString returns a string value from the type-specific config
func (m *Monitor) ConfigString(key, fallback string) string {
	if m.Config == nil {
		return fallback
	}
	if val, ok := m.Config[key].(string); ok {
		return val
	}
	return fallback
}

// ConfigBool returns a bool value from the type-specific config
func (m *Monitor) ConfigBool(key string, fallback bool) bool {
	if m.Config == nil {
		return fallback
	}
	if val, ok := m.Config[key].(bool); ok {
		return val
	}
	return fallback
}

// ConfigStringMap returns a string map from the type-specific config
func (m *Monitor) ConfigStringMap(key string) map[string]string {
	result := make(map[string]string)
	if m.Config == nil {
		return result
	}
	if val, ok := m.Config[key].(map[string]interface{}); ok {
		for k, v := range val {
			if str, ok := v.(string); ok {
				result[k] = str
			}
		}
	}
	return result
}

// ConfigIntSlice returns an int slice from the type-specific config
func (m *Monitor) ConfigIntSlice(key string, fallback []int) []int {
	if m.Config == nil {
		return fallback
	}
	if val, ok := m.Config[key].([]interface{}); ok {
		result := make([]int, 0, len(val))
		for _, v := range val {
			if num, ok := v.(float64); ok {
				result = append(result, int(num))
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
