package models

import (
	"testing"
	"time"
)

func TestIncidentCloseAtComputesDuration(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	inc := &Incident{MonitorID: 1, StartedAt: start}

	if !inc.IsOpen() {
		t.Fatal("new incident not open")
	}

	inc.CloseAt(start.Add(95 * time.Second))

	if inc.IsOpen() {
		t.Error("closed incident still open")
	}
	if inc.DurationSeconds == nil || *inc.DurationSeconds != 95 {
		t.Errorf("DurationSeconds = %v, want 95", inc.DurationSeconds)
	}
}

func TestIncidentCloseAtClampsNegativeDuration(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	inc := &Incident{MonitorID: 1, StartedAt: start}

	inc.CloseAt(start.Add(-time.Minute))

	if inc.DurationSeconds == nil || *inc.DurationSeconds != 0 {
		t.Errorf("DurationSeconds = %v, want 0 for clock skew", inc.DurationSeconds)
	}
}
