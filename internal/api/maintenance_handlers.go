package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/maintenance"
	"github.com/vigil-dev/vigil/internal/models"
)

// HandleGetMaintenanceWindows lists a monitor's maintenance windows
func HandleGetMaintenanceWindows(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid monitor ID", http.StatusBadRequest)
			return
		}

		var windows []models.MaintenanceWindow
		if err := db.Where("monitor_id = ?", id).Order("id").Find(&windows).Error; err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(windows)
	}
}

// HandleCreateMaintenanceWindow creates a maintenance window for a
// monitor and refreshes its suppression flag right away
func HandleCreateMaintenanceWindow(db *gorm.DB, evaluator *maintenance.Evaluator) http.HandlerFunc {
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

		var window models.MaintenanceWindow
		if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		window.MonitorID = id

		if err := window.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := db.Create(&window).Error; err != nil {
			log.Println("Error creating maintenance window:", err.Error())
			http.Error(w, "Failed to create maintenance window", http.StatusInternalServerError)
			return
		}

		if err := evaluator.UpdateAll(); err != nil {
			log.Printf("Maintenance refresh after create failed: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(window)
	}
}

// HandleDeleteMaintenanceWindow removes a maintenance window
func HandleDeleteMaintenanceWindow(db *gorm.DB, evaluator *maintenance.Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid window ID", http.StatusBadRequest)
			return
		}

		result := db.Delete(&models.MaintenanceWindow{}, id)
		if result.Error != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		if result.RowsAffected == 0 {
			http.Error(w, "Maintenance window not found", http.StatusNotFound)
			return
		}

		if err := evaluator.UpdateAll(); err != nil {
			log.Printf("Maintenance refresh after delete failed: %v", err)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
