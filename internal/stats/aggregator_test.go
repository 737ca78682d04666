package stats

import (
	"testing"
	"time"

	"github.com/vigil-dev/vigil/internal/history"
	"github.com/vigil-dev/vigil/internal/models"
)

func newTestAggregator(t *testing.T) (*Aggregator, *history.Store) {
	t.Helper()
	store, err := history.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(store.Close)
	// The db is only needed for RunBatch/upsert, not for Aggregate.
	return NewAggregator(nil, store), store
}

func appendResult(t *testing.T, store *history.Store, id, status int, at time.Time, responseMs *int) {
	t.Helper()
	if err := store.Append(id, &models.CheckResult{Status: status, ResponseTime: responseMs, CheckedAt: at}); err != nil {
		t.Fatal(err)
	}
}

func intPtr(v int) *int { return &v }

func TestUptimePercentage(t *testing.T) {
	tests := []struct {
		up, total int
		want      float64
	}{
		{0, 0, 100.0}, // no data reads as fully up
		{8, 10, 80.0},
		{10, 10, 100.0},
		{0, 10, 0.0},
		{1, 3, 33.33},
		{2, 3, 66.67},
	}

	for _, tt := range tests {
		if got := UptimePercentage(tt.up, tt.total); got != tt.want {
			t.Errorf("UptimePercentage(%d, %d) = %v, want %v", tt.up, tt.total, got, tt.want)
		}
	}
}

func TestAggregateEmptyPartitionDefaults(t *testing.T) {
	agg, _ := newTestAggregator(t)
	now := time.Now().UTC()

	s, err := agg.Aggregate(1, now)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}

	for name, got := range map[string]float64{
		"1h": s.Uptime1h, "24h": s.Uptime24h, "7d": s.Uptime7d, "30d": s.Uptime30d, "90d": s.Uptime90d,
	} {
		if got != 100.0 {
			t.Errorf("uptime %s with no data = %v, want 100.0", name, got)
		}
	}
	if s.AvgResponse24h != nil || s.MinResponse24h != nil || s.MaxResponse24h != nil {
		t.Error("response stats with no data should all be nil")
	}
	if s.Checks24h != 0 || s.Incidents24h != 0 {
		t.Errorf("counts with no data = (%d, %d), want (0, 0)", s.Checks24h, s.Incidents24h)
	}
	if len(s.Recent) != 0 {
		t.Errorf("recent history with no data has %d entries, want 0", len(s.Recent))
	}
}

func TestAggregateUptime24h(t *testing.T) {
	agg, store := newTestAggregator(t)
	now := time.Now().UTC()

	// 10 checks in the last 24h: 8 up, 2 down.
	for i := 0; i < 10; i++ {
		status := models.StatusUp
		if i < 2 {
			status = models.StatusDown
		}
		appendResult(t, store, 1, status, now.Add(time.Duration(-i-1)*time.Hour), intPtr(100+i))
	}

	s, err := agg.Aggregate(1, now)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}

	if s.Uptime24h != 80.0 {
		t.Errorf("Uptime24h = %v, want 80.00", s.Uptime24h)
	}
	if s.Checks24h != 10 {
		t.Errorf("Checks24h = %d, want 10", s.Checks24h)
	}
	if s.Incidents24h != 2 {
		t.Errorf("Incidents24h = %d, want 2", s.Incidents24h)
	}
}

func TestAggregateResponseStats(t *testing.T) {
	agg, store := newTestAggregator(t)
	now := time.Now().UTC()

	for i, ms := range []int{100, 200, 350} {
		appendResult(t, store, 1, models.StatusUp, now.Add(time.Duration(-i-1)*time.Minute), intPtr(ms))
	}
	// A result without a response time must not skew the stats.
	appendResult(t, store, 1, models.StatusDown, now.Add(-10*time.Minute), nil)

	s, err := agg.Aggregate(1, now)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}

	if s.AvgResponse24h == nil || *s.AvgResponse24h != 217 {
		t.Errorf("AvgResponse24h = %v, want 217 (rounded)", s.AvgResponse24h)
	}
	if s.MinResponse24h == nil || *s.MinResponse24h != 100 {
		t.Errorf("MinResponse24h = %v, want 100", s.MinResponse24h)
	}
	if s.MaxResponse24h == nil || *s.MaxResponse24h != 350 {
		t.Errorf("MaxResponse24h = %v, want 350", s.MaxResponse24h)
	}
}

func TestAggregateRecentHistoryCapped(t *testing.T) {
	agg, store := newTestAggregator(t)
	now := time.Now().UTC().Truncate(time.Minute)

	// 120 one-per-minute results; only the last 100 minutes qualify.
	for i := 0; i < 120; i++ {
		appendResult(t, store, 1, models.StatusUp, now.Add(time.Duration(-i)*time.Minute), intPtr(100))
	}

	s, err := agg.Aggregate(1, now)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}

	if len(s.Recent) != recentEntries {
		t.Fatalf("recent history has %d entries, want %d", len(s.Recent), recentEntries)
	}
	// Newest first.
	if !s.Recent[0].Time.Equal(now) {
		t.Errorf("recent[0].Time = %v, want %v", s.Recent[0].Time, now)
	}
	for i := 1; i < len(s.Recent); i++ {
		if s.Recent[i].Time.After(s.Recent[i-1].Time) {
			t.Fatal("recent history not ordered newest-first")
		}
	}
}

func TestPercentile(t *testing.T) {
	sorted := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	tests := []struct {
		p    int
		want int
	}{
		{50, 50},
		{95, 100},
		{99, 100},
	}
	for _, tt := range tests {
		got := Percentile(sorted, tt.p)
		if got == nil || *got != tt.want {
			t.Errorf("Percentile(%d) = %v, want %d", tt.p, got, tt.want)
		}
	}

	if Percentile(nil, 50) != nil {
		t.Error("Percentile of no data should be nil")
	}
	single := Percentile([]int{42}, 99)
	if single == nil || *single != 42 {
		t.Errorf("Percentile of single sample = %v, want 42", single)
	}
}

func TestResponseStatsEmpty(t *testing.T) {
	avg, min, max := ResponseStats(nil)
	if avg != nil || min != nil || max != nil {
		t.Error("ResponseStats(nil) should return all nils")
	}
}
