package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/models"
	"github.com/vigil-dev/vigil/internal/notification"
)

// HandleGetNotifications lists all notification channels
func HandleGetNotifications(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var channels []models.Notification
		if err := db.Order("id").Find(&channels).Error; err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(channels)
	}
}

// HandleGetAvailableProviders lists registered provider types
func HandleGetAvailableProviders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := make([]string, 0)
		for name := range notification.GetAllProviders() {
			names = append(names, name)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(names)
	}
}

// HandleCreateNotification creates a notification channel
func HandleCreateNotification(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var channel models.Notification
		if err := json.NewDecoder(r.Body).Decode(&channel); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		provider, ok := notification.GetProvider(channel.Type)
		if !ok {
			http.Error(w, "Unknown provider: "+channel.Type, http.StatusBadRequest)
			return
		}
		if err := provider.Validate(channel.Config); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := db.Create(&channel).Error; err != nil {
			log.Println("Error creating notification channel:", err.Error())
			http.Error(w, "Failed to create notification channel", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(channel)
	}
}

// HandleUpdateNotification updates a notification channel
func HandleUpdateNotification(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid channel ID", http.StatusBadRequest)
			return
		}

		var existing models.Notification
		if err := db.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				http.Error(w, "Notification channel not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		var update models.Notification
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		update.ID = existing.ID
		update.CreatedAt = existing.CreatedAt

		provider, ok := notification.GetProvider(update.Type)
		if !ok {
			http.Error(w, "Unknown provider: "+update.Type, http.StatusBadRequest)
			return
		}
		if err := provider.Validate(update.Config); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := db.Save(&update).Error; err != nil {
			log.Println("Error updating notification channel:", err.Error())
			http.Error(w, "Failed to update notification channel", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(update)
	}
}

// HandleDeleteNotification removes a notification channel
func HandleDeleteNotification(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid channel ID", http.StatusBadRequest)
			return
		}

		result := db.Delete(&models.Notification{}, id)
		if result.Error != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}
		if result.RowsAffected == 0 {
			http.Error(w, "Notification channel not found", http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleTestNotification sends a test message through a channel
func HandleTestNotification(db *gorm.DB, dispatcher *notification.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			http.Error(w, "Invalid channel ID", http.StatusBadRequest)
			return
		}

		var channel models.Notification
		if err := db.First(&channel, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				http.Error(w, "Notification channel not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		if err := dispatcher.TestChannel(r.Context(), &channel); err != nil {
			http.Error(w, "Test failed: "+err.Error(), http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "Test notification sent"}`))
	}
}

// HandleLinkMonitorNotification attaches a channel to a monitor
func HandleLinkMonitorNotification(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := monitorNotificationLink(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var count int64
		db.Model(&models.Monitor{}).Where("id = ?", link.MonitorID).Count(&count)
		if count == 0 {
			http.Error(w, "Monitor not found", http.StatusNotFound)
			return
		}
		db.Model(&models.Notification{}).Where("id = ?", link.NotificationID).Count(&count)
		if count == 0 {
			http.Error(w, "Notification channel not found", http.StatusNotFound)
			return
		}

		if err := db.Where(link).FirstOrCreate(link).Error; err != nil {
			http.Error(w, "Failed to link notification channel", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleUnlinkMonitorNotification detaches a channel from a monitor
func HandleUnlinkMonitorNotification(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := monitorNotificationLink(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := db.Where(link).Delete(&models.MonitorNotification{}).Error; err != nil {
			http.Error(w, "Failed to unlink notification channel", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func monitorNotificationLink(r *http.Request) (*models.MonitorNotification, error) {
	monitorID, err := idParam(r)
	if err != nil {
		return nil, errors.New("invalid monitor ID")
	}
	notificationID, err := notificationIDParam(r)
	if err != nil {
		return nil, errors.New("invalid notification ID")
	}
	return &models.MonitorNotification{MonitorID: monitorID, NotificationID: notificationID}, nil
}
