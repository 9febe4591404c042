// =============================
// File: internal/ledger/trade.go
// =============================
package ledger

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
)

// Direction is the side of a trade.
type Direction uint8

const (
	Buy Direction = iota + 1
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection принимает "buy" или "sell" без учёта регистра
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// TradeRequest is one call to ExecuteTrade. For a buy AmountIn is currency,
// for a sell it is tokens.
type TradeRequest struct {
	AmountIn     uint64
	MinAmountOut uint64
	Direction    Direction
}

// Quote is the outcome of pricing a request against the current state.
// For a buy Fee is taken from AmountIn; for a sell from the gross payout.
type Quote struct {
	Direction Direction
	AmountIn  uint64
	AmountOut uint64
	Fee       uint64
	// Net is the currency that enters the curve on a buy, or the gross
	// currency that leaves it on a sell.
	Net   uint64
	Price uint64
	// After is the market state the trade would commit.
	After curve.State
	// FeeCollector is taken from the same config snapshot as the fee rate.
	FeeCollector solana.PublicKey
}

// TradeResult describes a committed and settled trade.
type TradeResult struct {
	Quote
	TradeID string
}

// Status is the lifecycle state of a ledger.
type Status uint8

const (
	StatusActive Status = iota + 1
	StatusPaused
	StatusGraduated
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusGraduated:
		return "graduated"
	default:
		return "unknown"
	}
}
