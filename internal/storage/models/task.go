// internal/storage/models/task.go
package models

import "time"

type TaskHistory struct {
	BaseModel
	TaskName      string `gorm:"index;not null;type:varchar(100)"`
	Wallet        string `gorm:"not null;type:varchar(100)"`
	Operation     string `gorm:"not null;type:varchar(10)"`
	Mint          string `gorm:"index;type:varchar(44)"`
	Status        string `gorm:"not null;type:varchar(20)"`
	Attempts      int    `gorm:"default:0"`
	AmountIn      uint64
	AmountOut     uint64
	ErrorMessage  string `gorm:"type:text"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ExecutionTime float64 `gorm:"type:decimal(10,3)"`
}
