package models

import "testing"

func TestEffectiveStatus(t *testing.T) {
	m := &Monitor{Status: StatusUp}
	if got := m.EffectiveStatus(); got != StatusUp {
		t.Errorf("EffectiveStatus() = %d, want StatusUp", got)
	}

	m.InMaintenance = true
	if got := m.EffectiveStatus(); got != StatusMaintenance {
		t.Errorf("EffectiveStatus() = %d, want StatusMaintenance during a window", got)
	}

	// Maintenance masks the underlying state even while down
	m.Status = StatusDown
	if got := m.EffectiveStatus(); got != StatusMaintenance {
		t.Errorf("EffectiveStatus() = %d, want StatusMaintenance while down", got)
	}

	m.InMaintenance = false
	if got := m.EffectiveStatus(); got != StatusDown {
		t.Errorf("EffectiveStatus() = %d, want StatusDown after the window", got)
	}
}
