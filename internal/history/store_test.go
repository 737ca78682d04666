package history

import (
	"testing"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func result(status int, at time.Time, responseMs int) *models.CheckResult {
	return &models.CheckResult{
		Status:       status,
		ResponseTime: &responseMs,
		CheckedAt:    at,
	}
}

func TestAppendAndLatest(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.Append(1, result(models.StatusUp, now.Add(-2*time.Minute), 120)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := store.Append(1, result(models.StatusDown, now, 50)); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	latest, err := store.Latest(1)
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if latest == nil {
		t.Fatal("Latest() = nil, want a result")
	}
	if latest.Status != models.StatusDown {
		t.Errorf("Latest().Status = %d, want %d", latest.Status, models.StatusDown)
	}
	if !latest.CheckedAt.Equal(now) {
		t.Errorf("Latest().CheckedAt = %v, want %v", latest.CheckedAt, now)
	}
}

func TestMinuteBucketDedupKeepsLatest(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 30, 5, 0, time.UTC)

	// Three appends inside the same minute; only the last survives.
	if err := store.Append(1, result(models.StatusUp, base, 100)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(1, result(models.StatusUp, base.Add(20*time.Second), 110)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(1, result(models.StatusDown, base.Add(40*time.Second), 120)); err != nil {
		t.Fatal(err)
	}

	results, err := store.Query(1, Filter{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results in one minute bucket, want 1", len(results))
	}
	if results[0].Status != models.StatusDown {
		t.Errorf("surviving result status = %d, want latest (%d)", results[0].Status, models.StatusDown)
	}
	if results[0].ResponseTime == nil || *results[0].ResponseTime != 120 {
		t.Errorf("surviving result response time = %v, want 120", results[0].ResponseTime)
	}
}

func TestQueryMissingPartitionReturnsEmpty(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(42, Filter{})
	if err != nil {
		t.Fatalf("Query() on missing partition error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Query() on missing partition = %d results, want 0", len(results))
	}

	latest, err := store.Latest(42)
	if err != nil {
		t.Fatalf("Latest() on missing partition error: %v", err)
	}
	if latest != nil {
		t.Errorf("Latest() on missing partition = %+v, want nil", latest)
	}
}

func TestQueryFiltersAndOrder(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		status := models.StatusUp
		if i%3 == 0 {
			status = models.StatusDown
		}
		if err := store.Append(1, result(status, base.Add(time.Duration(i)*time.Minute), 100+i)); err != nil {
			t.Fatal(err)
		}
	}

	// Newest first
	all, err := store.Query(1, Filter{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 10 {
		t.Fatalf("got %d results, want 10", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CheckedAt.After(all[i-1].CheckedAt) {
			t.Fatal("results not ordered newest-first")
		}
	}

	// Status filter
	down := models.StatusDown
	downOnly, err := store.Query(1, Filter{Status: &down, Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(downOnly) != 4 {
		t.Errorf("status filter returned %d results, want 4", len(downOnly))
	}

	// Date range
	from := base.Add(5 * time.Minute)
	ranged, err := store.Query(1, Filter{DateFrom: &from, Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 5 {
		t.Errorf("date filter returned %d results, want 5", len(ranged))
	}

	// Pagination
	page, err := store.Query(1, Filter{Limit: 3, Offset: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 {
		t.Errorf("page returned %d results, want 3", len(page))
	}
	if !page[0].CheckedAt.Equal(base.Add(6 * time.Minute)) {
		t.Errorf("page starts at %v, want %v", page[0].CheckedAt, base.Add(6*time.Minute))
	}
}

func TestCleanupRetentionBoundaryAndIdempotence(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	// Five old records, five recent ones.
	for i := 0; i < 5; i++ {
		if err := store.Append(1, result(models.StatusUp, now.AddDate(0, 0, -40).Add(time.Duration(i)*time.Minute), 100)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := store.Append(1, result(models.StatusUp, now.Add(time.Duration(-i)*time.Minute), 100)); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.Cleanup(1, 30)
	if err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if deleted != 5 {
		t.Errorf("Cleanup() deleted %d rows, want 5", deleted)
	}

	// Second run deletes nothing further.
	deleted, err = store.Cleanup(1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 0 {
		t.Errorf("second Cleanup() deleted %d rows, want 0", deleted)
	}

	remaining, err := store.Query(1, Filter{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 5 {
		t.Errorf("%d rows remain, want 5", len(remaining))
	}
}

func TestCleanupMissingPartition(t *testing.T) {
	store := newTestStore(t)
	deleted, err := store.Cleanup(99, 30)
	if err != nil {
		t.Fatalf("Cleanup() on missing partition error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Cleanup() on missing partition = %d, want 0", deleted)
	}
}

func TestCountsSince(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		status := models.StatusUp
		if i < 2 {
			status = models.StatusDown
		}
		if err := store.Append(1, result(status, base.Add(time.Duration(i)*time.Minute), 100)); err != nil {
			t.Fatal(err)
		}
	}

	up, total, err := store.CountsSince(1, base)
	if err != nil {
		t.Fatalf("CountsSince() error: %v", err)
	}
	if up != 8 || total != 10 {
		t.Errorf("CountsSince() = (%d, %d), want (8, 10)", up, total)
	}

	// Missing partition counts as no data.
	up, total, err = store.CountsSince(7, base)
	if err != nil {
		t.Fatal(err)
	}
	if up != 0 || total != 0 {
		t.Errorf("CountsSince() on missing partition = (%d, %d), want (0, 0)", up, total)
	}
}

func TestResponseTimesSinceSkipsNull(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Append(1, result(models.StatusUp, base, 300)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(1, result(models.StatusUp, base.Add(time.Minute), 100)); err != nil {
		t.Fatal(err)
	}
	noTime := &models.CheckResult{Status: models.StatusDown, CheckedAt: base.Add(2 * time.Minute)}
	if err := store.Append(1, noTime); err != nil {
		t.Fatal(err)
	}

	times, err := store.ResponseTimesSince(1, base)
	if err != nil {
		t.Fatalf("ResponseTimesSince() error: %v", err)
	}
	if len(times) != 2 {
		t.Fatalf("got %d response times, want 2 (null skipped)", len(times))
	}
	if times[0] != 100 || times[1] != 300 {
		t.Errorf("response times = %v, want ascending [100 300]", times)
	}
}

func TestEnsurePartitionIdempotentAndDrop(t *testing.T) {
	store := newTestStore(t)

	if err := store.EnsurePartition(3); err != nil {
		t.Fatalf("EnsurePartition() error: %v", err)
	}
	if err := store.EnsurePartition(3); err != nil {
		t.Fatalf("second EnsurePartition() error: %v", err)
	}

	if err := store.Append(3, result(models.StatusUp, time.Now().UTC(), 100)); err != nil {
		t.Fatal(err)
	}

	if err := store.Drop(3); err != nil {
		t.Fatalf("Drop() error: %v", err)
	}

	results, err := store.Query(3, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Query() after Drop() = %d results, want 0", len(results))
	}
}

func TestConcurrentAppendAcrossPartitions(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	done := make(chan error, 4)
	for id := 1; id <= 4; id++ {
		go func(monitorID int) {
			for i := 0; i < 20; i++ {
				if err := store.Append(monitorID, result(models.StatusUp, base.Add(time.Duration(i)*time.Minute), i)); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}(id)
	}
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Append() error: %v", err)
		}
	}

	for id := 1; id <= 4; id++ {
		results, err := store.Query(id, Filter{Limit: 100})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 20 {
			t.Errorf("monitor %d has %d results, want 20", id, len(results))
		}
	}
}
