// internal/storage/models/trade.go
package models

import "time"

type Trade struct {
	BaseModel      `json:"-"`
	TradeID        string    `gorm:"uniqueIndex;not null;type:varchar(36)" json:"trade_id"`
	Mint           string    `gorm:"index;not null;type:varchar(44)" json:"mint"`
	Trader         string    `gorm:"index;not null;type:varchar(44)" json:"trader"`
	IsBuy          bool      `gorm:"not null" json:"is_buy"`
	AmountIn       uint64    `gorm:"not null" json:"amount_in"`
	AmountOut      uint64    `gorm:"not null" json:"amount_out"`
	Fee            uint64    `gorm:"not null" json:"fee"`
	Price          uint64    `gorm:"not null" json:"price"`
	UnitsSold      uint64    `gorm:"not null" json:"units_sold"`
	CurrencyRaised uint64    `gorm:"not null" json:"currency_raised"`
	ExecutedAt     time.Time `gorm:"index;not null" json:"executed_at"`
}

// MarketStats aggregates the trades of one market.
type MarketStats struct {
	Mint        string
	Trades      int64
	Buys        int64
	Sells       int64
	BuyVolume   uint64
	SellVolume  uint64
	FeesCharged uint64
}
