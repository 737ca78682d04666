package jobs

import (
	"log"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/history"
	"github.com/vigil-dev/vigil/internal/maintenance"
	"github.com/vigil-dev/vigil/internal/models"
	"github.com/vigil-dev/vigil/internal/stats"
)

// Scheduler manages background jobs
type Scheduler struct {
	cron          *cron.Cron
	db            *gorm.DB
	store         *history.Store
	aggregator    *stats.Aggregator
	maintenance   *maintenance.Evaluator
	retentionDays int
}

// NewScheduler creates a new job scheduler
func NewScheduler(db *gorm.DB, store *history.Store, aggregator *stats.Aggregator, evaluator *maintenance.Evaluator, retentionDays int) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		db:            db,
		store:         store,
		aggregator:    aggregator,
		maintenance:   evaluator,
		retentionDays: retentionDays,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() {
	// Refresh maintenance flags every minute
	s.cron.AddFunc("* * * * *", func() {
		if err := s.maintenance.UpdateAll(); err != nil {
			log.Printf("Maintenance refresh failed: %v", err)
		}
	})

	// Recompute monitor statistics every 15 minutes
	s.cron.AddFunc("*/15 * * * *", func() {
		if err := s.aggregator.RunBatch(); err != nil {
			log.Printf("Stats aggregation failed: %v", err)
		}
	})

	// Prune old check history daily at 3:14 AM
	s.cron.AddFunc("14 3 * * *", func() {
		log.Println("Running history cleanup job...")
		s.cleanupHistory()
	})

	// Drop expired one-time maintenance windows daily at 3:30 AM
	s.cron.AddFunc("30 3 * * *", func() {
		if _, err := s.maintenance.CleanupExpired(); err != nil {
			log.Printf("Failed to cleanup expired maintenance windows: %v", err)
		}
	})

	// Vacuum history partitions weekly at 2:30 AM on Sunday
	s.cron.AddFunc("30 2 * * 0", func() {
		log.Println("Running vacuum job...")
		s.vacuumPartitions()
	})

	s.cron.Start()
	log.Println("Job scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Job scheduler stopped")
}

// cleanupHistory prunes each monitor's partition past the retention
// window. A failing partition is logged and skipped so one bad file
// cannot stall the batch.
func (s *Scheduler) cleanupHistory() {
	var monitors []models.Monitor
	if err := s.db.Find(&monitors).Error; err != nil {
		log.Printf("Failed to load monitors for cleanup: %v", err)
		return
	}

	var total int64
	for _, m := range monitors {
		deleted, err := s.store.Cleanup(m.ID, s.retentionDays)
		if err != nil {
			log.Printf("Failed to cleanup history for monitor %d: %v", m.ID, err)
			continue
		}
		total += deleted
	}
	log.Printf("Cleaned up %d old check results", total)
}

// vacuumPartitions reclaims space in each monitor's partition
func (s *Scheduler) vacuumPartitions() {
	var monitors []models.Monitor
	if err := s.db.Find(&monitors).Error; err != nil {
		log.Printf("Failed to load monitors for vacuum: %v", err)
		return
	}

	for _, m := range monitors {
		if err := s.store.Vacuum(m.ID); err != nil {
			log.Printf("Failed to vacuum partition for monitor %d: %v", m.ID, err)
		}
	}
	log.Println("Partition vacuum completed")
}
