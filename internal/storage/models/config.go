// internal/storage/models/config.go
package models

import "time"

// ConfigChange records the global config as it stood after an admin change.
type ConfigChange struct {
	BaseModel
	Admin         string    `gorm:"not null;type:varchar(44)"`
	FeeCollector  string    `gorm:"not null;type:varchar(44)"`
	FeeBps        uint16    `gorm:"not null"`
	TradingPaused bool      `gorm:"not null"`
	ChangedAt     time.Time `gorm:"index;not null"`
}
