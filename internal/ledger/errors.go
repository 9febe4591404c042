// =============================
// File: internal/ledger/errors.go
// =============================
package ledger

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrTradingPaused     = errors.New("trading is paused")
	ErrSlippageExceeded  = errors.New("slippage exceeded")
	ErrGraduationReached = errors.New("graduation threshold reached")
	ErrGraduated         = errors.New("curve has graduated")
	ErrZeroAmount        = errors.New("amount must be greater than zero")
	ErrInvalidDirection  = errors.New("invalid trade direction")
	ErrSettlement        = errors.New("settlement failed")
)

// SlippageExceededError описывает котировку, оказавшуюся хуже заданной границы
type SlippageExceededError struct {
	MinAmountOut uint64
	AmountOut    uint64
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("%v: got %d, minimum %d", ErrSlippageExceeded, e.AmountOut, e.MinAmountOut)
}

func (e *SlippageExceededError) Unwrap() error {
	return ErrSlippageExceeded
}

// TradeError привязывает причину отказа к рынку и направлению сделки
type TradeError struct {
	Mint      solana.PublicKey
	Direction Direction
	Err       error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Direction, e.Mint, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a caller may retry the trade with adjusted
// bounds. Only slippage failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSlippageExceeded)
}
