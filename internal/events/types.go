// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType represents the type of event.
type EventType string

const (
	// Trading events
	TradeCompleted EventType = "trade.completed"

	// Market lifecycle events
	TokenCreated   EventType = "token.created"
	CurveGraduated EventType = "curve.graduated"

	// Admin events
	ConfigChanged EventType = "config.changed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Publisher accepts events for fire-and-forget delivery.
type Publisher interface {
	Publish(event Event) error
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	EventTime time.Time `json:"timestamp"`
}

// NewBase stamps an event of type t at ts.
func NewBase(t EventType, ts time.Time) BaseEvent {
	return BaseEvent{EventType: t, EventTime: ts}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// TradeCompletedEvent is emitted after a trade has been committed and settled.
type TradeCompletedEvent struct {
	BaseEvent
	TradeID        string           `json:"trade_id"`
	Trader         solana.PublicKey `json:"trader"`
	Mint           solana.PublicKey `json:"mint"`
	AmountIn       uint64           `json:"amount_in"`
	AmountOut      uint64           `json:"amount_out"`
	Fee            uint64           `json:"fee"`
	IsBuy          bool             `json:"is_buy"`
	Price          uint64           `json:"price"`
	UnitsSold      uint64           `json:"units_sold"`
	CurrencyRaised uint64           `json:"currency_raised"`
}

// ConfigChangedEvent carries the global config as it stands after an admin change.
type ConfigChangedEvent struct {
	BaseEvent
	Admin         solana.PublicKey `json:"admin"`
	FeeCollector  solana.PublicKey `json:"fee_collector"`
	FeeBps        uint16           `json:"fee_bps"`
	TradingPaused bool             `json:"trading_paused"`
}

// TokenCreatedEvent is emitted when a new market is listed.
type TokenCreatedEvent struct {
	BaseEvent
	Mint      solana.PublicKey `json:"mint"`
	Creator   solana.PublicKey `json:"creator"`
	Name      string           `json:"name"`
	Symbol    string           `json:"symbol"`
	CurveKind string           `json:"curve_kind"`
}

// CurveGraduatedEvent signals that a curve has been retired and its
// liquidity should migrate to an external market.
type CurveGraduatedEvent struct {
	BaseEvent
	Mint           solana.PublicKey `json:"mint"`
	Authority      solana.PublicKey `json:"authority"`
	UnitsSold      uint64           `json:"units_sold"`
	CurrencyRaised uint64           `json:"currency_raised"`
}
