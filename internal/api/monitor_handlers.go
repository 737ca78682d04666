package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/history"
	"github.com/vigil-dev/vigil/internal/models"
	"github.com/vigil-dev/vigil/internal/probe"
)

func idParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func notificationIDParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "notificationId"))
}

// parsePositive parses a positive integer capped at max
func parsePositive(s string, max int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < 1 || v > max {
		return 0, errors.New("out of range")
	}
	return v, nil
}

// HandleGetMonitors lists all monitors
func HandleGetMonitors(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var monitors []models.Monitor
		if err := db.Order("id").Find(&monitors).Error; err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		for i := range monitors {
			monitors[i].Status = monitors[i].EffectiveStatus()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(monitors)
	}
}

// HandleGetMonitor returns a single monitor
func HandleGetMonitor(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		var monitor models.Monitor
		if err := db.First(&monitor, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				http.Error(w, "Monitor not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		monitor.Status = monitor.EffectiveStatus()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(monitor)
	}
}

// HandleCreateMonitor creates a monitor, provisions its history
// partition and starts checking it
func HandleCreateMonitor(db *gorm.DB, store *history.Store, executor *probe.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var monitor models.Monitor
		if err := json.NewDecoder(r.Body).Decode(&monitor); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		probeType, ok := probe.Get(monitor.Type)
		if !ok {
			http.Error(w, "Unknown monitor type: "+monitor.Type, http.StatusBadRequest)
			return
		}
		if err := probeType.Validate(&monitor); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		monitor.Status = models.StatusPending
		if err := db.Create(&monitor).Error; err != nil {
			log.Println("Error creating monitor:", err.Error())
			http.Error(w, "Failed to create monitor", http.StatusInternalServerError)
			return
		}

		if err := store.EnsurePartition(monitor.ID); err != nil {
			log.Printf("Failed to provision history partition for monitor %d: %v", monitor.ID, err)
		}

		if monitor.Active {
			executor.StartMonitor(&monitor)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(monitor)
	}
}

// HandleUpdateMonitor updates a monitor and restarts its check loop
func HandleUpdateMonitor(db *gorm.DB, executor *probe.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		var existing models.Monitor
		if err := db.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				http.Error(w, "Monitor not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		var update models.Monitor
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		update.ID = existing.ID

		probeType, ok := probe.Get(update.Type)
		if !ok {
			http.Error(w, "Unknown monitor type: "+update.Type, http.StatusBadRequest)
			return
		}
		if err := probeType.Validate(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Runtime state stays whatever the pipeline last wrote
		update.Status = existing.Status
		update.StatusChangedAt = existing.StatusChangedAt
		update.DownSince = existing.DownSince
		update.ConsecutiveFailures = existing.ConsecutiveFailures
		update.TransientFailures = existing.TransientFailures
		update.LastAlertFailureCount = existing.LastAlertFailureCount
		update.CreatedAt = existing.CreatedAt

		if err := db.Save(&update).Error; err != nil {
			log.Println("Error updating monitor:", err.Error())
			http.Error(w, "Failed to update monitor", http.StatusInternalServerError)
			return
		}

		executor.StopMonitor(update.ID)
		if update.Active {
			executor.StartMonitor(&update)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(update)
	}
}

// HandleDeleteMonitor removes a monitor along with its history
// partition and dependent rows
func HandleDeleteMonitor(db *gorm.DB, store *history.Store, executor *probe.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		var monitor models.Monitor
		if err := db.First(&monitor, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				http.Error(w, "Monitor not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		executor.StopMonitor(id)

		if err := db.Delete(&models.Monitor{}, id).Error; err != nil {
			log.Println("Error deleting monitor:", err.Error())
			http.Error(w, "Failed to delete monitor", http.StatusInternalServerError)
			return
		}

		if err := store.Drop(id); err != nil {
			log.Printf("Failed to drop history partition for monitor %d: %v", id, err)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
