package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Maintenance window kinds
const (
	WindowRecurring = "recurring"
	WindowOneTime   = "one_time"
)

// ErrInvalidWindow is returned when a maintenance window spec is malformed
var ErrInvalidWindow = errors.New("invalid maintenance window")

// MaintenanceWindow is a suppression interval attached to a monitor.
// Recurring windows repeat weekly (day of week + time range in their own
// timezone); one-time windows are absolute [StartsAt, EndsAt) intervals.
type MaintenanceWindow struct {
	ID        int    `json:"id" gorm:"primaryKey;autoIncrement"`
	MonitorID int    `json:"monitor_id" gorm:"not null;index"`
	Kind      string `json:"kind" gorm:"not null"`

	// Recurring fields. Times are "HH:MM"; an end at or before the start
	// spans midnight into the next day.
	DayOfWeek int    `json:"day_of_week"` // 0 = Sunday
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`

	// One-time fields
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for MaintenanceWindow
func (MaintenanceWindow) TableName() string {
	return "maintenance_windows"
}

// Validate rejects malformed window specs at configuration time
func (w *MaintenanceWindow) Validate() error {
	switch w.Kind {
	case WindowRecurring:
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			return fmt.Errorf("%w: day_of_week must be between 0 and 6, got %d", ErrInvalidWindow, w.DayOfWeek)
		}
		if _, err := ParseClock(w.StartTime); err != nil {
			return fmt.Errorf("%w: start_time: %v", ErrInvalidWindow, err)
		}
		if _, err := ParseClock(w.EndTime); err != nil {
			return fmt.Errorf("%w: end_time: %v", ErrInvalidWindow, err)
		}
		if w.Timezone != "" {
			if _, err := time.LoadLocation(w.Timezone); err != nil {
				return fmt.Errorf("%w: unknown timezone %q", ErrInvalidWindow, w.Timezone)
			}
		}
	case WindowOneTime:
		if w.StartsAt == nil || w.EndsAt == nil {
			return fmt.Errorf("%w: one-time windows require starts_at and ends_at", ErrInvalidWindow)
		}
		if !w.EndsAt.After(*w.StartsAt) {
			return fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidWindow)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidWindow, w.Kind)
	}
	return nil
}

// Location returns the window's timezone, defaulting to UTC
func (w *MaintenanceWindow) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses an "HH:MM" string into minutes since midnight.
// Only digits are accepted on either side of the colon.
func ParseClock(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok || !isDigits(h) || !isDigits(m) {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if hh > 23 || mm > 59 {
		return 0, fmt.Errorf("out of range clock time %q", s)
	}
	return hh*60 + mm, nil
}

func isDigits(s string) bool {
	if s == "" || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
