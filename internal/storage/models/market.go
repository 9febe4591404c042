// internal/storage/models/market.go
package models

import "time"

// Market is the journal row of a listed token. UnitsSold and CurrencyRaised
// hold the state after the last recorded trade.
type Market struct {
	BaseModel
	Mint           string     `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Name           string     `gorm:"not null;type:varchar(32)"`
	Symbol         string     `gorm:"index;not null;type:varchar(10)"`
	Creator        string     `gorm:"index;not null;type:varchar(44)"`
	CurveKind      string     `gorm:"not null;type:varchar(20)"`
	UnitsSold      uint64     `gorm:"not null;default:0"`
	CurrencyRaised uint64     `gorm:"not null;default:0"`
	Graduated      bool       `gorm:"not null;default:false"`
	GraduatedAt    *time.Time `gorm:"index"`
	ListedAt       time.Time  `gorm:"index;not null"`
}
