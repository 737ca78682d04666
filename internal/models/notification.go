package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Notification represents a configured notification channel
type Notification struct {
	ID        int                    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string                 `json:"name" gorm:"not null"`
	Type      string                 `json:"type" gorm:"not null"` // webhook, slack, discord, telegram, smtp
	Config    map[string]interface{} `json:"config" gorm:"-"`
	ConfigRaw string                 `json:"-" gorm:"column:config;type:text"`
	IsDefault bool                   `json:"is_default" gorm:"default:false"`
	Active    bool                   `json:"active" gorm:"default:true"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// MonitorNotification links a monitor to a notification channel
type MonitorNotification struct {
	MonitorID      int `json:"monitor_id" gorm:"primaryKey"`
	NotificationID int `json:"notification_id" gorm:"primaryKey"`
}

// TableName specifies the table name for MonitorNotification
func (MonitorNotification) TableName() string {
	return "monitor_notifications"
}

// BeforeSave marshals the Config map to JSON before saving (GORM hook)
func (n *Notification) BeforeSave(tx *gorm.DB) error {
	if n.Config != nil {
		configJSON, err := json.Marshal(n.Config)
		if err != nil {
			return err
		}
		n.ConfigRaw = string(configJSON)
	}
	return nil
}

// AfterFind unmarshals the Config JSON after loading (GORM hook)
func (n *Notification) AfterFind(tx *gorm.DB) error {
	if n.ConfigRaw != "" {
		return json.Unmarshal([]byte(n.ConfigRaw), &n.Config)
	}
	return nil
}
