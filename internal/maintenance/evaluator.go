package maintenance

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/models"
)

// Evaluator keeps the denormalized maintenance state on monitors in sync
// with their configured windows. It only exposes the flag; alert gating
// elsewhere consults it.
type Evaluator struct {
	db *gorm.DB
}

// NewEvaluator creates a new maintenance evaluator
func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db}
}

// Evaluate returns whether any of the windows covers the given instant,
// along with the bounds of the matching window
func Evaluate(windows []models.MaintenanceWindow, now time.Time) (bool, *time.Time, *time.Time) {
	for i := range windows {
		if active, start, end := CurrentBounds(&windows[i], now); active {
			return true, &start, &end
		}
	}
	return false, nil, nil
}

// CurrentBounds reports whether the window covers the given instant and,
// if so, the absolute bounds of the covering occurrence
func CurrentBounds(w *models.MaintenanceWindow, now time.Time) (bool, time.Time, time.Time) {
	switch w.Kind {
	case models.WindowOneTime:
		if w.StartsAt == nil || w.EndsAt == nil {
			return false, time.Time{}, time.Time{}
		}
		if !now.Before(*w.StartsAt) && now.Before(*w.EndsAt) {
			return true, *w.StartsAt, *w.EndsAt
		}
		return false, time.Time{}, time.Time{}

	case models.WindowRecurring:
		return recurringBounds(w, now)
	}
	return false, time.Time{}, time.Time{}
}

// recurringBounds evaluates a weekly window in its own timezone. A window
// whose end is at or before its start spans midnight, so the occurrence
// that began the previous day is checked as well.
func recurringBounds(w *models.MaintenanceWindow, now time.Time) (bool, time.Time, time.Time) {
	startMin, err := models.ParseClock(w.StartTime)
	if err != nil {
		return false, time.Time{}, time.Time{}
	}
	endMin, err := models.ParseClock(w.EndTime)
	if err != nil {
		return false, time.Time{}, time.Time{}
	}

	durMin := endMin - startMin
	if durMin <= 0 {
		durMin += 24 * 60
	}

	loc := w.Location()
	local := now.In(loc)

	for offset := -1; offset <= 0; offset++ {
		day := local.AddDate(0, 0, offset)
		if int(day.Weekday()) != w.DayOfWeek {
			continue
		}

		start := time.Date(day.Year(), day.Month(), day.Day(), startMin/60, startMin%60, 0, 0, loc)
		end := start.Add(time.Duration(durMin) * time.Minute)

		if !local.Before(start) && local.Before(end) {
			return true, start, end
		}
	}
	return false, time.Time{}, time.Time{}
}

// UpdateAll refreshes the maintenance flag and bounds on every monitor
// that has windows configured, and clears the flag on monitors whose
// windows no longer match. Per-monitor failures are logged and skipped.
func (e *Evaluator) UpdateAll() error {
	var monitors []models.Monitor
	if err := e.db.Find(&monitors).Error; err != nil {
		return err
	}

	now := time.Now()
	for i := range monitors {
		if err := e.refresh(&monitors[i], now); err != nil {
			log.Printf("Failed to refresh maintenance state for monitor %d: %v", monitors[i].ID, err)
		}
	}
	return nil
}

func (e *Evaluator) refresh(m *models.Monitor, now time.Time) error {
	var windows []models.MaintenanceWindow
	if err := e.db.Where("monitor_id = ?", m.ID).Find(&windows).Error; err != nil {
		return err
	}

	active, start, end := Evaluate(windows, now)
	if active == m.InMaintenance && equalTimePtr(start, m.MaintenanceStartsAt) && equalTimePtr(end, m.MaintenanceEndsAt) {
		return nil
	}

	return e.db.Model(m).Updates(map[string]interface{}{
		"in_maintenance":        active,
		"maintenance_starts_at": start,
		"maintenance_ends_at":   end,
	}).Error
}

// CleanupExpired removes one-time windows whose end has passed, so the
// configured list does not grow unbounded
func (e *Evaluator) CleanupExpired() (int64, error) {
	res := e.db.Where("kind = ? AND ends_at < ?", models.WindowOneTime, time.Now()).
		Delete(&models.MaintenanceWindow{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("Removed %d expired maintenance windows", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
