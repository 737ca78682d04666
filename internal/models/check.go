package models

import "time"

// Check status constants
const (
	StatusDown        = 0
	StatusUp          = 1
	StatusPending     = 2 // not yet checked
	StatusMaintenance = 3
	StatusSuspect     = 4 // failed once, awaiting downtime confirmation
)

// CheckResult represents a single probe outcome. Results are immutable
// once written to a monitor's history partition.
type CheckResult struct {
	MonitorID    int       `json:"monitor_id"`
	Status       int       `json:"status"`
	ResponseTime *int      `json:"response_time"` // milliseconds, nil when the probe never connected
	HTTPStatus   *int      `json:"http_status"`
	Message      string    `json:"message"`
	CheckedAt    time.Time `json:"checked_at"`
}

// IsUp reports whether the probe succeeded
func (r *CheckResult) IsUp() bool {
	return r.Status == StatusUp
}

// MinuteBucket returns the minute bucket the result falls into.
// The history store keeps at most one result per monitor per bucket.
func (r *CheckResult) MinuteBucket() int64 {
	return r.CheckedAt.UTC().Unix() / 60
}
