package stats

import (
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vigil-dev/vigil/internal/history"
	"github.com/vigil-dev/vigil/internal/models"
)

// recentWindow bounds the recent-history snapshot: the newest record per
// minute within the last 100 minutes, capped at 100 entries
const (
	recentWindow  = 100 * time.Minute
	recentEntries = 100
)

// Aggregator recomputes the statistics snapshot for each monitor from
// its history partition. Snapshots are fully replaced on every pass, so
// the history store stays the single source of truth.
type Aggregator struct {
	db    *gorm.DB
	store *history.Store
}

// NewAggregator creates a new statistics aggregator
func NewAggregator(db *gorm.DB, store *history.Store) *Aggregator {
	return &Aggregator{db: db, store: store}
}

// RunBatch recomputes snapshots for all active monitors. One monitor's
// failure is logged and skipped so it never aborts the batch.
func (a *Aggregator) RunBatch() error {
	var monitors []models.Monitor
	if err := a.db.Where("active = ?", true).Find(&monitors).Error; err != nil {
		return err
	}

	log.Printf("Aggregating statistics for %d monitors", len(monitors))
	now := time.Now()

	for i := range monitors {
		snapshot, err := a.Aggregate(monitors[i].ID, now)
		if err != nil {
			log.Printf("Failed to aggregate stats for monitor %d: %v", monitors[i].ID, err)
			continue
		}
		if err := a.upsert(snapshot); err != nil {
			log.Printf("Failed to store stats for monitor %d: %v", monitors[i].ID, err)
		}
	}
	return nil
}

// Refresh recomputes and stores a single monitor's snapshot
func (a *Aggregator) Refresh(monitorID int) (*models.MonitorStats, error) {
	s, err := a.Aggregate(monitorID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := a.upsert(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Aggregate computes a monitor's snapshot as of the given instant
func (a *Aggregator) Aggregate(monitorID int, now time.Time) (*models.MonitorStats, error) {
	s := &models.MonitorStats{
		MonitorID:    monitorID,
		CalculatedAt: now,
	}

	windows := []struct {
		d      time.Duration
		uptime *float64
	}{
		{time.Hour, &s.Uptime1h},
		{24 * time.Hour, &s.Uptime24h},
		{7 * 24 * time.Hour, &s.Uptime7d},
		{30 * 24 * time.Hour, &s.Uptime30d},
		{90 * 24 * time.Hour, &s.Uptime90d},
	}

	for _, w := range windows {
		up, total, err := a.store.CountsSince(monitorID, now.Add(-w.d))
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", w.d, err)
		}
		*w.uptime = UptimePercentage(up, total)

		// Incident proxy and check counts share the window scans
		switch w.d {
		case 24 * time.Hour:
			s.Checks24h = total
			s.Incidents24h = total - up
		case 7 * 24 * time.Hour:
			s.Checks7d = total
			s.Incidents7d = total - up
		case 30 * 24 * time.Hour:
			s.Checks30d = total
			s.Incidents30d = total - up
		}
	}

	times, err := a.store.ResponseTimesSince(monitorID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	s.AvgResponse24h, s.MinResponse24h, s.MaxResponse24h = ResponseStats(times)
	s.P50Response24h = Percentile(times, 50)
	s.P95Response24h = Percentile(times, 95)
	s.P99Response24h = Percentile(times, 99)

	recent, err := a.recentHistory(monitorID, now)
	if err != nil {
		return nil, err
	}
	s.Recent = recent

	return s, nil
}

// recentHistory returns the compact recent-history array. The store's
// minute-bucket dedup already guarantees at most one record per minute,
// so a capped newest-first query suffices.
func (a *Aggregator) recentHistory(monitorID int, now time.Time) ([]models.RecentEntry, error) {
	from := now.Add(-recentWindow)
	results, err := a.store.Query(monitorID, history.Filter{
		Limit:    recentEntries,
		DateFrom: &from,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]models.RecentEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, models.RecentEntry{
			Time:         r.CheckedAt,
			Status:       r.Status,
			ResponseTime: r.ResponseTime,
			Message:      r.Message,
		})
	}
	return entries, nil
}

// upsert replaces the monitor's snapshot row, keyed by monitor id
func (a *Aggregator) upsert(s *models.MonitorStats) error {
	return a.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "monitor_id"}},
		UpdateAll: true,
	}).Create(s).Error
}

// UptimePercentage computes up/total as a percentage rounded to two
// decimals. A window with no data reports 100.0 so new monitors do not
// look broken before their first check.
func UptimePercentage(up, total int) float64 {
	if total == 0 {
		return 100.0
	}
	return math.Round(float64(up)/float64(total)*100*100) / 100
}

// ResponseStats returns avg (rounded to the nearest integer), min and
// max of the given response times. All nil when there is no data.
func ResponseStats(times []int) (avg, min, max *int) {
	if len(times) == 0 {
		return nil, nil, nil
	}

	minV, maxV, sum := times[0], times[0], 0
	for _, t := range times {
		if t < minV {
			minV = t
		}
		if t > maxV {
			maxV = t
		}
		sum += t
	}
	avgV := int(math.Round(float64(sum) / float64(len(times))))
	return &avgV, &minV, &maxV
}

// Percentile returns the nearest-rank percentile of ascending-sorted
// response times, or nil when there is no data
func Percentile(sorted []int, p int) *int {
	if len(sorted) == 0 {
		return nil
	}
	rank := int(math.Ceil(float64(p) / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	v := sorted[rank-1]
	return &v
}
