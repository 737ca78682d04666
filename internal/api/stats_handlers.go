package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/incident"
	"github.com/vigil-dev/vigil/internal/models"
	"github.com/vigil-dev/vigil/internal/stats"
)

// HandleGetMonitorStats returns a monitor's statistics snapshot,
// recomputing it on demand when missing or stale
func HandleGetMonitorStats(db *gorm.DB, aggregator *stats.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		var snapshot models.MonitorStats
		err = db.Where("monitor_id = ?", id).First(&snapshot).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		if errors.Is(err, gorm.ErrRecordNotFound) || !snapshot.IsFresh(time.Now()) {
			fresh, aggErr := aggregator.Refresh(id)
			if aggErr != nil {
				log.Printf("Failed to refresh stats for monitor %d: %v", id, aggErr)
				if errors.Is(err, gorm.ErrRecordNotFound) {
					http.Error(w, "Failed to compute statistics", http.StatusInternalServerError)
					return
				}
				// Serve the stale snapshot rather than nothing
			} else {
				snapshot = *fresh
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	}
}

// HandleGetAllStats returns every monitor's stored snapshot
func HandleGetAllStats(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snapshots []models.MonitorStats
		if err := db.Order("monitor_id").Find(&snapshots).Error; err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshots)
	}
}

// HandleGetIncidents lists a monitor's incidents, newest first
func HandleGetIncidents(manager *incident.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if parsed, err := parsePositive(v, 500); err == nil {
				limit = parsed
			} else {
				http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
				return
			}
		}

		incidents, err := manager.List(id, limit)
		if err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(incidents)
	}
}

// HandleGetOpenIncident returns a monitor's open incident, if any
func HandleGetOpenIncident(manager *incident.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		inc, err := manager.GetOpen(id)
		if err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		if inc == nil {
			http.Error(w, "No open incident", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(inc)
	}
}
