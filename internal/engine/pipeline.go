package engine

import (
	"log"
	"time"

	"github.com/vigil-dev/vigil/internal/alerts"
	"github.com/vigil-dev/vigil/internal/models"
)

// MonitorStore provides access to monitor rows for the pipeline
type MonitorStore interface {
	Get(id int) (*models.Monitor, error)
	SaveStatus(m *models.Monitor) error
}

// HistoryAppender is the slice of the history store the pipeline writes to
type HistoryAppender interface {
	Append(monitorID int, r *models.CheckResult) error
}

// IncidentStore manages incident rows for the pipeline
type IncidentStore interface {
	GetOpen(monitorID int) (*models.Incident, error)
	Open(monitorID int, startedAt time.Time, reason string) (*models.Incident, error)
	Close(inc *models.Incident, endedAt time.Time) error
	MarkAlerted(inc *models.Incident, failureCount int) error
}

// Notifier delivers alert decisions
type Notifier interface {
	NotifyDown(m *models.Monitor, result *models.CheckResult) error
	NotifyRecovered(m *models.Monitor, inc *models.Incident) error
}

// Broadcaster pushes check results to live dashboard clients
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Pipeline is the ordered handler for incoming check results:
// append history, run the confirmation state machine, maintain incidents,
// gate alerts, dispatch notifications, broadcast. Steps are invoked
// sequentially with explicit data handoff.
type Pipeline struct {
	monitors    MonitorStore
	history     HistoryAppender
	incidents   IncidentStore
	notifier    Notifier
	broadcaster Broadcaster
	confirmer   *Confirmer

	now func() time.Time
}

// NewPipeline wires the check-result pipeline. delay and timeout
// configure the downtime confirmation probe.
func NewPipeline(monitors MonitorStore, history HistoryAppender, incidents IncidentStore, notifier Notifier, broadcaster Broadcaster, delay, timeout time.Duration) *Pipeline {
	p := &Pipeline{
		monitors:    monitors,
		history:     history,
		incidents:   incidents,
		notifier:    notifier,
		broadcaster: broadcaster,
		now:         time.Now,
	}
	p.confirmer = NewConfirmer(monitors, delay, timeout, p.onConfirmedDown)
	return p
}

// OnCheckResult is the pipeline entry point, called by the probe
// executor for every raw probe outcome
func (p *Pipeline) OnCheckResult(m *models.Monitor, result *models.CheckResult) {
	if err := p.history.Append(m.ID, result); err != nil {
		log.Printf("Failed to append history for monitor %d: %v", m.ID, err)
	}

	if p.broadcaster != nil {
		p.broadcaster.Broadcast("check_result", result)
	}

	if result.IsUp() {
		p.handleUp(m, result)
	} else {
		p.handleDown(m, result)
	}
}

// handleDown advances the failure state machine for a raw probe failure
func (p *Pipeline) handleDown(m *models.Monitor, result *models.CheckResult) {
	switch m.Status {
	case models.StatusDown:
		// Already confirmed down, another failed check extends the streak
		m.ConsecutiveFailures++
		if err := p.monitors.SaveStatus(m); err != nil {
			log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
			return
		}
		p.maybeSendDownAlert(m, result)

	case models.StatusSuspect:
		// Confirmation already pending, nothing to decide yet

	default:
		// First failure: suspect downtime and schedule the confirmation
		// probe instead of alerting right away
		now := p.now()
		m.Status = models.StatusSuspect
		m.StatusChangedAt = &now
		m.ConsecutiveFailures = 1
		m.DownSince = &result.CheckedAt
		if err := p.monitors.SaveStatus(m); err != nil {
			log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
			return
		}
		log.Printf("Monitor %s (ID: %d) failed, scheduling downtime confirmation", m.Name, m.ID)
		p.confirmer.Schedule(m, result)
	}
}

// handleUp processes a successful probe
func (p *Pipeline) handleUp(m *models.Monitor, result *models.CheckResult) {
	switch m.Status {
	case models.StatusDown:
		p.handleRecovery(m, result)

	case models.StatusSuspect:
		// Recovered on its own before the confirmation probe ran. The
		// confirmer will see the healthy status and record a transient
		// failure instead of probing.
		now := p.now()
		m.Status = models.StatusUp
		m.StatusChangedAt = &now
		if err := p.monitors.SaveStatus(m); err != nil {
			log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
		}

	case models.StatusUp:
		// Steady state

	default:
		now := p.now()
		m.Status = models.StatusUp
		m.StatusChangedAt = &now
		if err := p.monitors.SaveStatus(m); err != nil {
			log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
		}
	}
}

// handleRecovery closes the open incident and gates the recovery alert
func (p *Pipeline) handleRecovery(m *models.Monitor, result *models.CheckResult) {
	inc, err := p.incidents.GetOpen(m.ID)
	if err != nil {
		log.Printf("Failed to load open incident for monitor %d: %v", m.ID, err)
	}
	if inc != nil {
		if err := p.incidents.Close(inc, result.CheckedAt); err != nil {
			log.Printf("Failed to close incident %d: %v", inc.ID, err)
		}
	}

	if alerts.ShouldSendRecoveryAlert(m, inc) && !m.InMaintenance {
		if err := p.notifier.NotifyRecovered(m, inc); err != nil {
			log.Printf("Failed to send recovery notification for monitor %d: %v", m.ID, err)
		} else {
			log.Printf("Sent RECOVERED notification for monitor %s (ID: %d)", m.Name, m.ID)
		}
	}

	now := p.now()
	m.Status = models.StatusUp
	m.StatusChangedAt = &now
	m.ConsecutiveFailures = 0
	m.LastAlertFailureCount = 0
	m.DownSince = nil
	if err := p.monitors.SaveStatus(m); err != nil {
		log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
	}
}

// onConfirmedDown receives the confirmer's state-change signal carrying
// the original failure period
func (p *Pipeline) onConfirmedDown(m *models.Monitor, downSince time.Time, reason string) {
	now := p.now()
	m.Status = models.StatusDown
	m.StatusChangedAt = &now
	m.DownSince = &downSince
	if err := p.monitors.SaveStatus(m); err != nil {
		log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
		return
	}

	if _, err := p.incidents.Open(m.ID, downSince, reason); err != nil {
		log.Printf("Failed to open incident for monitor %d: %v", m.ID, err)
	}

	log.Printf("Monitor %s (ID: %d) confirmed DOWN: %s", m.Name, m.ID, reason)

	p.maybeSendDownAlert(m, &models.CheckResult{
		MonitorID: m.ID,
		Status:    models.StatusDown,
		Message:   reason,
		CheckedAt: downSince,
	})
}

// maybeSendDownAlert applies maintenance suppression and the alert
// pattern before dispatching, and records a successful send on both the
// monitor and its open incident
func (p *Pipeline) maybeSendDownAlert(m *models.Monitor, result *models.CheckResult) {
	if m.InMaintenance {
		log.Printf("Monitor %s (ID: %d) is in maintenance, suppressing down alert", m.Name, m.ID)
		return
	}

	if !alerts.ShouldSendDownAlert(m) {
		log.Printf("Monitor %s (ID: %d) down (%d consecutive failures), next alert at %d",
			m.Name, m.ID, m.ConsecutiveFailures, alerts.NextAlertAt(m.ConsecutiveFailures))
		return
	}

	if err := p.notifier.NotifyDown(m, result); err != nil {
		log.Printf("Failed to send down notification for monitor %d: %v", m.ID, err)
		return
	}
	log.Printf("Sent DOWN notification for monitor %s (ID: %d) after %d consecutive failures",
		m.Name, m.ID, m.ConsecutiveFailures)

	m.LastAlertFailureCount = m.ConsecutiveFailures
	if err := p.monitors.SaveStatus(m); err != nil {
		log.Printf("Failed to save state for monitor %d: %v", m.ID, err)
	}

	inc, err := p.incidents.GetOpen(m.ID)
	if err != nil {
		log.Printf("Failed to load open incident for monitor %d: %v", m.ID, err)
		return
	}
	if inc != nil {
		if err := p.incidents.MarkAlerted(inc, m.ConsecutiveFailures); err != nil {
			log.Printf("Failed to mark incident %d alerted: %v", inc.ID, err)
		}
	}
}
