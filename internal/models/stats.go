package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// StatsFreshness is how long a snapshot is considered fresh
const StatsFreshness = time.Hour

// RecentEntry is one compact row in a snapshot's recent-history array,
// kept small so dashboards can render without touching the history store.
type RecentEntry struct {
	Time         time.Time `json:"time"`
	Status       int       `json:"status"`
	ResponseTime *int      `json:"response_time"`
	Message      string    `json:"message,omitempty"`
}

// MonitorStats is the aggregated statistics snapshot, one row per monitor.
// Every aggregation pass fully recomputes and replaces it.
type MonitorStats struct {
	ID        int `json:"-" gorm:"primaryKey;autoIncrement"`
	MonitorID int `json:"monitor_id" gorm:"not null;uniqueIndex"`

	Uptime1h  float64 `json:"uptime_1h" gorm:"column:uptime_1h"`
	Uptime24h float64 `json:"uptime_24h" gorm:"column:uptime_24h"`
	Uptime7d  float64 `json:"uptime_7d" gorm:"column:uptime_7d"`
	Uptime30d float64 `json:"uptime_30d" gorm:"column:uptime_30d"`
	Uptime90d float64 `json:"uptime_90d" gorm:"column:uptime_90d"`

	// Response-time stats over the last 24h, nil when no probe connected
	AvgResponse24h *int `json:"avg_response_24h" gorm:"column:avg_response_24h"`
	MinResponse24h *int `json:"min_response_24h" gorm:"column:min_response_24h"`
	MaxResponse24h *int `json:"max_response_24h" gorm:"column:max_response_24h"`
	P50Response24h *int `json:"p50_response_24h" gorm:"column:p50_response_24h"`
	P95Response24h *int `json:"p95_response_24h" gorm:"column:p95_response_24h"`
	P99Response24h *int `json:"p99_response_24h" gorm:"column:p99_response_24h"`

	// Down-check counts, a cheap proxy distinct from Incident rows
	Incidents24h int `json:"incidents_24h" gorm:"column:incidents_24h"`
	Incidents7d  int `json:"incidents_7d" gorm:"column:incidents_7d"`
	Incidents30d int `json:"incidents_30d" gorm:"column:incidents_30d"`

	Checks24h int `json:"checks_24h" gorm:"column:checks_24h"`
	Checks7d  int `json:"checks_7d" gorm:"column:checks_7d"`
	Checks30d int `json:"checks_30d" gorm:"column:checks_30d"`

	Recent    []RecentEntry `json:"recent_history" gorm:"-"`
	RecentRaw string        `json:"-" gorm:"column:recent_history;type:text"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// TableName specifies the table name for MonitorStats
func (MonitorStats) TableName() string {
	return "monitor_stats"
}

// BeforeSave marshals the recent-history array (GORM hook)
func (s *MonitorStats) BeforeSave(tx *gorm.DB) error {
	if s.Recent == nil {
		s.RecentRaw = "[]"
		return nil
	}
	raw, err := json.Marshal(s.Recent)
	if err != nil {
		return err
	}
	s.RecentRaw = string(raw)
	return nil
}

// AfterFind unmarshals the recent-history array (GORM hook)
func (s *MonitorStats) AfterFind(tx *gorm.DB) error {
	if s.RecentRaw != "" {
		return json.Unmarshal([]byte(s.RecentRaw), &s.Recent)
	}
	return nil
}

// IsFresh reports whether the snapshot was calculated recently enough
// for dashboards to trust it
func (s *MonitorStats) IsFresh(now time.Time) bool {
	return now.Sub(s.CalculatedAt) < StatsFreshness
}
