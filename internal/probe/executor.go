package probe

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/models"
)

// Handler consumes check results; the engine's pipeline implements it
type Handler interface {
	OnCheckResult(monitor *models.Monitor, result *models.CheckResult)
}

// Executor runs the probe loop for every active monitor
type Executor struct {
	db      *gorm.DB
	handler Handler

	monitors map[int]*job
	mu       sync.RWMutex
}

type job struct {
	monitor *models.Monitor
	ticker  *time.Ticker
	stop    chan struct{}
}

// NewExecutor creates a new probe executor
func NewExecutor(db *gorm.DB, handler Handler) *Executor {
	return &Executor{
		db:       db,
		handler:  handler,
		monitors: make(map[int]*job),
	}
}

// Start loads all active monitors and starts their check loops
func (e *Executor) Start() error {
	var monitors []*models.Monitor
	if err := e.db.Where("active = ?", true).Find(&monitors).Error; err != nil {
		return err
	}

	log.Printf("Starting %d active monitors", len(monitors))
	for _, m := range monitors {
		e.StartMonitor(m)
	}
	return nil
}

// StartMonitor begins (or restarts) the check loop for a monitor
func (e *Executor) StartMonitor(monitor *models.Monitor) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.monitors[monitor.ID]; ok {
		close(existing.stop)
		delete(e.monitors, monitor.ID)
	}

	interval := monitor.Interval
	if interval <= 0 {
		interval = 60
	}

	j := &job{
		monitor: monitor,
		ticker:  time.NewTicker(time.Duration(interval) * time.Second),
		stop:    make(chan struct{}),
	}
	e.monitors[monitor.ID] = j

	// First check immediately, then on the ticker
	go e.runCheck(j.monitor)
	go func() {
		for {
			select {
			case <-j.ticker.C:
				go e.runCheck(j.monitor)
			case <-j.stop:
				j.ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Started monitor: %s (ID: %d, Interval: %ds)", monitor.Name, monitor.ID, interval)
}

// StopMonitor halts the check loop for a monitor
func (e *Executor) StopMonitor(monitorID int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if j, ok := e.monitors[monitorID]; ok {
		close(j.stop)
		delete(e.monitors, monitorID)
		log.Printf("Stopped monitor ID: %d", monitorID)
	}
}

// Stop halts all check loops
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, j := range e.monitors {
		close(j.stop)
		delete(e.monitors, id)
	}
	log.Println("All monitors stopped")
}

// runCheck performs a single probe and hands the result to the pipeline
func (e *Executor) runCheck(stale *models.Monitor) {
	// Reload so state mutated by the pipeline since the loop started is
	// not overwritten from a stale copy.
	var monitor models.Monitor
	if err := e.db.First(&monitor, stale.ID).Error; err != nil {
		log.Printf("Monitor %d vanished, skipping check: %v", stale.ID, err)
		return
	}

	probeType, ok := Get(monitor.Type)
	if !ok {
		log.Printf("Unknown monitor type: %s for monitor ID %d", monitor.Type, monitor.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(monitor.Timeout+5)*time.Second)
	defer cancel()

	result, err := probeType.Check(ctx, &monitor)
	if err != nil {
		log.Printf("Monitor check failed for %s (ID: %d): %v", monitor.Name, monitor.ID, err)
		return
	}

	e.handler.OnCheckResult(&monitor, result)
}
