package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vigil-dev/vigil/internal/models"
)

type fakeMonitors struct {
	stored map[int]*models.Monitor
	getErr error
}

func (f *fakeMonitors) Get(id int) (*models.Monitor, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	m, ok := f.stored[id]
	if !ok {
		return nil, errors.New("monitor not found")
	}
	clone := *m
	return &clone, nil
}

func (f *fakeMonitors) SaveStatus(m *models.Monitor) error {
	stored, ok := f.stored[m.ID]
	if !ok {
		return errors.New("monitor not found")
	}
	stored.Status = m.Status
	stored.StatusChangedAt = m.StatusChangedAt
	stored.DownSince = m.DownSince
	stored.ConsecutiveFailures = m.ConsecutiveFailures
	stored.TransientFailures = m.TransientFailures
	stored.LastAlertFailureCount = m.LastAlertFailureCount
	return nil
}

type fakeHistory struct {
	appended []*models.CheckResult
	err      error
}

func (f *fakeHistory) Append(monitorID int, r *models.CheckResult) error {
	f.appended = append(f.appended, r)
	return f.err
}

type fakeIncidents struct {
	open   map[int]*models.Incident
	nextID int
	closed []*models.Incident
}

func (f *fakeIncidents) GetOpen(monitorID int) (*models.Incident, error) {
	return f.open[monitorID], nil
}

func (f *fakeIncidents) Open(monitorID int, startedAt time.Time, reason string) (*models.Incident, error) {
	if existing := f.open[monitorID]; existing != nil {
		return existing, nil
	}
	f.nextID++
	inc := &models.Incident{ID: f.nextID, MonitorID: monitorID, StartedAt: startedAt, Reason: reason}
	f.open[monitorID] = inc
	return inc, nil
}

func (f *fakeIncidents) Close(inc *models.Incident, endedAt time.Time) error {
	inc.CloseAt(endedAt)
	f.closed = append(f.closed, inc)
	delete(f.open, inc.MonitorID)
	return nil
}

func (f *fakeIncidents) MarkAlerted(inc *models.Incident, failureCount int) error {
	inc.DownAlertSent = true
	inc.AlertFailureCount = failureCount
	return nil
}

type fakeNotifier struct {
	down      int
	recovered int
	err       error
}

func (f *fakeNotifier) NotifyDown(m *models.Monitor, result *models.CheckResult) error {
	if f.err != nil {
		return f.err
	}
	f.down++
	return nil
}

func (f *fakeNotifier) NotifyRecovered(m *models.Monitor, inc *models.Incident) error {
	if f.err != nil {
		return f.err
	}
	f.recovered++
	return nil
}

type testHarness struct {
	pipeline  *Pipeline
	monitors  *fakeMonitors
	history   *fakeHistory
	incidents *fakeIncidents
	notifier  *fakeNotifier

	pending    []func()
	probeCalls int
	probeUp    bool
	probeNil   bool
}

func newHarness(t *testing.T, m *models.Monitor) *testHarness {
	t.Helper()
	h := &testHarness{
		monitors:  &fakeMonitors{stored: map[int]*models.Monitor{m.ID: m}},
		history:   &fakeHistory{},
		incidents: &fakeIncidents{open: map[int]*models.Incident{}},
		notifier:  &fakeNotifier{},
	}
	h.pipeline = NewPipeline(h.monitors, h.history, h.incidents, h.notifier, nil, 30*time.Second, 5*time.Second)
	h.pipeline.confirmer.schedule = func(d time.Duration, fn func()) {
		h.pending = append(h.pending, fn)
	}
	h.pipeline.confirmer.probe = func(ctx context.Context, m *models.Monitor) *models.CheckResult {
		h.probeCalls++
		if h.probeNil {
			return nil
		}
		status := models.StatusDown
		if h.probeUp {
			status = models.StatusUp
		}
		return &models.CheckResult{MonitorID: m.ID, Status: status, Message: "confirmation probe", CheckedAt: time.Now()}
	}
	return h
}

// fireConfirmation runs the oldest pending confirmation callback
func (h *testHarness) fireConfirmation(t *testing.T) {
	t.Helper()
	if len(h.pending) == 0 {
		t.Fatal("no confirmation scheduled")
	}
	fn := h.pending[0]
	h.pending = h.pending[1:]
	fn()
}

func (h *testHarness) check(status int, at time.Time) {
	m, _ := h.monitors.Get(1)
	h.pipeline.OnCheckResult(m, &models.CheckResult{
		MonitorID: 1,
		Status:    status,
		Message:   "probe result",
		CheckedAt: at,
	})
}

func upMonitor() *models.Monitor {
	return &models.Monitor{
		ID:           1,
		Name:         "api",
		Type:         "http",
		URL:          "https://example.com",
		Interval:     60,
		Timeout:      30,
		AlertPattern: models.AlertPatternFibonacci,
		Status:       models.StatusUp,
		Active:       true,
	}
}

func TestFirstFailureEntersSuspect(t *testing.T) {
	h := newHarness(t, upMonitor())
	failedAt := time.Now()

	h.check(models.StatusDown, failedAt)

	stored := h.monitors.stored[1]
	if stored.Status != models.StatusSuspect {
		t.Errorf("Status = %d, want StatusSuspect", stored.Status)
	}
	if stored.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", stored.ConsecutiveFailures)
	}
	if stored.DownSince == nil || !stored.DownSince.Equal(failedAt) {
		t.Errorf("DownSince = %v, want %v", stored.DownSince, failedAt)
	}
	if len(h.pending) != 1 {
		t.Fatalf("scheduled confirmations = %d, want 1", len(h.pending))
	}
	if h.notifier.down != 0 {
		t.Errorf("down notifications = %d, want 0 before confirmation", h.notifier.down)
	}
	if len(h.incidents.open) != 0 {
		t.Error("incident opened before confirmation")
	}
	if len(h.history.appended) != 1 {
		t.Errorf("history appends = %d, want 1", len(h.history.appended))
	}
}

func TestConfirmationSuccessIsTransient(t *testing.T) {
	h := newHarness(t, upMonitor())
	h.probeUp = true

	h.check(models.StatusDown, time.Now())
	h.fireConfirmation(t)

	stored := h.monitors.stored[1]
	if h.probeCalls != 1 {
		t.Errorf("probe calls = %d, want 1", h.probeCalls)
	}
	if stored.Status != models.StatusUp {
		t.Errorf("Status = %d, want StatusUp", stored.Status)
	}
	if stored.TransientFailures != 1 {
		t.Errorf("TransientFailures = %d, want 1", stored.TransientFailures)
	}
	if stored.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", stored.ConsecutiveFailures)
	}
	if stored.DownSince != nil {
		t.Error("DownSince not cleared")
	}
	if h.notifier.down != 0 {
		t.Errorf("down notifications = %d, want 0 for transient failure", h.notifier.down)
	}
	if len(h.incidents.open) != 0 {
		t.Error("incident opened for transient failure")
	}
}

func TestRecoveryBeforeConfirmationSkipsProbe(t *testing.T) {
	h := newHarness(t, upMonitor())

	h.check(models.StatusDown, time.Now())
	h.check(models.StatusUp, time.Now())
	h.fireConfirmation(t)

	if h.probeCalls != 0 {
		t.Errorf("probe calls = %d, want 0 when monitor already recovered", h.probeCalls)
	}
	stored := h.monitors.stored[1]
	if stored.Status != models.StatusUp {
		t.Errorf("Status = %d, want StatusUp", stored.Status)
	}
	if stored.TransientFailures != 1 {
		t.Errorf("TransientFailures = %d, want 1", stored.TransientFailures)
	}
	if stored.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", stored.ConsecutiveFailures)
	}
}

func TestConfirmedDownOpensIncidentAndAlerts(t *testing.T) {
	h := newHarness(t, upMonitor())
	failedAt := time.Now().Add(-time.Minute)

	h.check(models.StatusDown, failedAt)
	h.fireConfirmation(t)

	stored := h.monitors.stored[1]
	if stored.Status != models.StatusDown {
		t.Errorf("Status = %d, want StatusDown", stored.Status)
	}
	if stored.DownSince == nil || !stored.DownSince.Equal(failedAt) {
		t.Error("DownSince should keep the original failure time")
	}

	inc := h.incidents.open[1]
	if inc == nil {
		t.Fatal("no incident opened")
	}
	if !inc.StartedAt.Equal(failedAt) {
		t.Errorf("incident StartedAt = %v, want original failure time %v", inc.StartedAt, failedAt)
	}
	if h.notifier.down != 1 {
		t.Errorf("down notifications = %d, want 1 at failure count 1", h.notifier.down)
	}
	if !inc.DownAlertSent {
		t.Error("incident not marked alerted")
	}
	if inc.AlertFailureCount != 1 {
		t.Errorf("AlertFailureCount = %d, want 1", inc.AlertFailureCount)
	}
	if stored.LastAlertFailureCount != 1 {
		t.Errorf("LastAlertFailureCount = %d, want 1", stored.LastAlertFailureCount)
	}
}

func TestConfirmationProbeErrorConfirmsDown(t *testing.T) {
	h := newHarness(t, upMonitor())
	h.probeNil = true

	h.check(models.StatusDown, time.Now())
	h.fireConfirmation(t)

	if h.monitors.stored[1].Status != models.StatusDown {
		t.Error("probe error should resolve toward confirmed down")
	}
	if len(h.incidents.open) != 1 {
		t.Error("incident should be opened on probe error")
	}
}

func TestFibonacciAlertSpacingWhileDown(t *testing.T) {
	h := newHarness(t, upMonitor())

	h.check(models.StatusDown, time.Now())
	h.fireConfirmation(t)
	if h.notifier.down != 1 {
		t.Fatalf("down notifications = %d, want 1 after confirmation", h.notifier.down)
	}

	// Failure counts 2..13: fibonacci alerts at 2, 3, 5, 8, 13
	wantAfter := map[int]int{2: 2, 3: 3, 4: 3, 5: 4, 6: 4, 7: 4, 8: 5, 9: 5, 10: 5, 11: 5, 12: 5, 13: 6}
	for count := 2; count <= 13; count++ {
		h.check(models.StatusDown, time.Now())
		stored := h.monitors.stored[1]
		if stored.ConsecutiveFailures != count {
			t.Fatalf("ConsecutiveFailures = %d, want %d", stored.ConsecutiveFailures, count)
		}
		if h.notifier.down != wantAfter[count] {
			t.Errorf("after %d failures: down notifications = %d, want %d", count, h.notifier.down, wantAfter[count])
		}
	}
}

func TestEveryPatternAlertsOnEachFailure(t *testing.T) {
	m := upMonitor()
	m.AlertPattern = models.AlertPatternEvery
	h := newHarness(t, m)

	h.check(models.StatusDown, time.Now())
	h.fireConfirmation(t)
	for i := 0; i < 3; i++ {
		h.check(models.StatusDown, time.Now())
	}

	if h.notifier.down != 4 {
		t.Errorf("down notifications = %d, want 4 with every pattern", h.notifier.down)
	}
}

func TestRecoveryClosesIncidentAndResets(t *testing.T) {
	h := newHarness(t, upMonitor())
	failedAt := time.Now().Add(-10 * time.Minute)

	h.check(models.StatusDown, failedAt)
	h.fireConfirmation(t)
	h.check(models.StatusDown, time.Now())

	recoveredAt := time.Now()
	h.check(models.StatusUp, recoveredAt)

	stored := h.monitors.stored[1]
	if stored.Status != models.StatusUp {
		t.Errorf("Status = %d, want StatusUp", stored.Status)
	}
	if stored.ConsecutiveFailures != 0 || stored.LastAlertFailureCount != 0 {
		t.Error("counters not reset on recovery")
	}
	if stored.DownSince != nil {
		t.Error("DownSince not cleared on recovery")
	}

	if len(h.incidents.closed) != 1 {
		t.Fatalf("closed incidents = %d, want 1", len(h.incidents.closed))
	}
	inc := h.incidents.closed[0]
	if inc.EndedAt == nil || !inc.EndedAt.Equal(recoveredAt) {
		t.Error("incident EndedAt not set to recovery time")
	}
	if inc.DurationSeconds == nil || *inc.DurationSeconds < 9*60 {
		t.Errorf("incident duration = %v, want at least 9 minutes", inc.DurationSeconds)
	}

	if h.notifier.recovered != 1 {
		t.Errorf("recovery notifications = %d, want 1 after a down alert was sent", h.notifier.recovered)
	}
}

func TestRecoveryWithoutDownAlertStaysQuiet(t *testing.T) {
	h := newHarness(t, upMonitor())

	// Force the monitor straight into confirmed down without an alert
	// by opening the incident manually
	stored := h.monitors.stored[1]
	stored.Status = models.StatusDown
	stored.ConsecutiveFailures = 4
	inc, _ := h.incidents.Open(1, time.Now().Add(-time.Minute), "timeout")
	if inc.DownAlertSent {
		t.Fatal("precondition: incident must not be marked alerted")
	}

	h.check(models.StatusUp, time.Now())

	if h.notifier.recovered != 0 {
		t.Errorf("recovery notifications = %d, want 0 when no down alert was sent", h.notifier.recovered)
	}
	if len(h.incidents.closed) != 1 {
		t.Error("incident should still be closed")
	}
}

func TestMaintenanceSuppressesAlerts(t *testing.T) {
	m := upMonitor()
	m.InMaintenance = true
	h := newHarness(t, m)

	h.check(models.StatusDown, time.Now())
	h.fireConfirmation(t)
	h.check(models.StatusDown, time.Now())

	if h.notifier.down != 0 {
		t.Errorf("down notifications = %d, want 0 during maintenance", h.notifier.down)
	}
	if len(h.incidents.open) != 1 {
		t.Error("incident should still be recorded during maintenance")
	}
	inc := h.incidents.open[1]
	if inc.DownAlertSent {
		t.Error("incident marked alerted while suppressed")
	}

	h.check(models.StatusUp, time.Now())
	if h.notifier.recovered != 0 {
		t.Errorf("recovery notifications = %d, want 0 when no down alert was sent", h.notifier.recovered)
	}
}

func TestHistoryAppendFailureDoesNotStopStateHandling(t *testing.T) {
	h := newHarness(t, upMonitor())
	h.history.err = errors.New("disk full")

	h.check(models.StatusDown, time.Now())

	if h.monitors.stored[1].Status != models.StatusSuspect {
		t.Error("state machine should still advance when history append fails")
	}
}

func TestNotifierErrorLeavesAlertStateUnchanged(t *testing.T) {
	h := newHarness(t, upMonitor())
	h.notifier.err = errors.New("webhook unreachable")

	h.check(models.StatusDown, time.Now())
	h.fireConfirmation(t)

	stored := h.monitors.stored[1]
	if stored.LastAlertFailureCount != 0 {
		t.Errorf("LastAlertFailureCount = %d, want 0 when send failed", stored.LastAlertFailureCount)
	}
	inc := h.incidents.open[1]
	if inc == nil {
		t.Fatal("incident should be opened regardless of notification outcome")
	}
	if inc.DownAlertSent {
		t.Error("incident marked alerted when send failed")
	}
}

func TestStaleConfirmationDoesNotAdoptOlderFailure(t *testing.T) {
	h := newHarness(t, upMonitor())
	firstFail := time.Now().Add(-time.Minute)
	secondFail := time.Now()

	h.check(models.StatusDown, firstFail)
	h.check(models.StatusUp, time.Now().Add(-30*time.Second))
	h.check(models.StatusDown, secondFail)

	if len(h.pending) != 2 {
		t.Fatalf("scheduled confirmations = %d, want 2", len(h.pending))
	}

	// The first confirmation fires after a new failure period began
	h.fireConfirmation(t)
	if h.probeCalls != 0 {
		t.Errorf("probe calls = %d, want 0 for a stale confirmation", h.probeCalls)
	}
	if len(h.incidents.open) != 0 {
		t.Error("stale confirmation must not open an incident")
	}
	stored := h.monitors.stored[1]
	if stored.Status != models.StatusSuspect {
		t.Errorf("Status = %d, want StatusSuspect while the current period is pending", stored.Status)
	}
	if stored.TransientFailures != 1 {
		t.Errorf("TransientFailures = %d, want 1 for the recovered first period", stored.TransientFailures)
	}

	// The second confirmation owns the current period
	h.fireConfirmation(t)
	if h.probeCalls != 1 {
		t.Errorf("probe calls = %d, want 1", h.probeCalls)
	}
	inc := h.incidents.open[1]
	if inc == nil {
		t.Fatal("no incident opened for the confirmed period")
	}
	if !inc.StartedAt.Equal(secondFail) {
		t.Errorf("incident StartedAt = %v, want second failure time %v", inc.StartedAt, secondFail)
	}
}

func TestConfirmationProbeRejectsInternalTarget(t *testing.T) {
	monitors := &fakeMonitors{stored: map[int]*models.Monitor{}}
	c := NewConfirmer(monitors, time.Second, time.Second, nil)
	m := &models.Monitor{ID: 1, Name: "meta", Type: "http", URL: "http://169.254.169.254/latest/meta-data/"}

	result := c.confirmHTTP(context.Background(), m)
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.IsUp() {
		t.Error("confirmation against a metadata endpoint should not succeed")
	}
	if !strings.Contains(result.Message, "not allowed") {
		t.Errorf("result message = %q, want a URL validation failure", result.Message)
	}
}

func TestPerMonitorConfirmationDelayOverridesGlobal(t *testing.T) {
	m := upMonitor()
	m.ConfirmationDelay = 120
	h := newHarness(t, m)

	var gotDelay time.Duration
	h.pipeline.confirmer.schedule = func(d time.Duration, fn func()) {
		gotDelay = d
	}

	h.check(models.StatusDown, time.Now())

	if gotDelay != 120*time.Second {
		t.Errorf("confirmation delay = %v, want 120s from monitor override", gotDelay)
	}
}
