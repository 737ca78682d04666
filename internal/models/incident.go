package models

import "time"

// Incident represents one continuous downtime period for a monitor.
// At most one incident per monitor may be open (EndedAt == nil) at a time.
type Incident struct {
	ID              int        `json:"id" gorm:"primaryKey;autoIncrement"`
	MonitorID       int        `json:"monitor_id" gorm:"not null;index"`
	StartedAt       time.Time  `json:"started_at" gorm:"not null"`
	EndedAt         *time.Time `json:"ended_at" gorm:"index"`
	DurationSeconds *int       `json:"duration_seconds"`
	Reason          string     `json:"reason" gorm:"type:text"`

	// Whether a down alert actually fired for this incident. Recovery
	// alerts are suppressed when it never did.
	DownAlertSent     bool `json:"down_alert_sent" gorm:"default:false"`
	AlertFailureCount int  `json:"alert_failure_count" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Incident
func (Incident) TableName() string {
	return "incidents"
}

// IsOpen reports whether the incident is still ongoing
func (i *Incident) IsOpen() bool {
	return i.EndedAt == nil
}

// CloseAt marks the incident as ended and computes its duration
func (i *Incident) CloseAt(endedAt time.Time) {
	i.EndedAt = &endedAt
	duration := int(endedAt.Sub(i.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	i.DurationSeconds = &duration
}
