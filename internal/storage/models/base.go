// internal/storage/models/base.go
package models

import "time"

// BaseModel: журнал только дописывается, поэтому без мягкого удаления
type BaseModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
