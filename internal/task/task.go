// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

// OperationType defines the supported operation types
type OperationType string

const (
	OperationBuy  OperationType = "buy"
	OperationSell OperationType = "sell"
)

const (
	// DefaultSlippageBps применяется, если в задаче не указан slippage_bps (1%)
	DefaultSlippageBps = 100
	MaxSlippageBps     = 10_000
)

// Task represents one scripted trade against a market
type Task struct {
	ID         int
	TaskName   string
	WalletName string
	Operation  OperationType
	Amount     uint64 // For buy: lamports to spend. For sell: raw token units
	Token      string // Token symbol, resolved to a mint by the simulator
	Slippage   types.SlippageConfig
	CreatedAt  time.Time
}

// NewTask creates a properly initialized task with bps slippage
func NewTask(name, wallet string, op OperationType, amount, slippageBps uint64, token string) *Task {
	return &Task{
		TaskName:   name,
		WalletName: wallet,
		Operation:  op,
		Amount:     amount,
		Token:      token,
		Slippage:   types.SlippageConfig{Type: types.SlippageBps, Value: slippageBps},
		CreatedAt:  time.Now(),
	}
}

func parseOperation(s string) (OperationType, error) {
	op := OperationType(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case OperationBuy, OperationSell:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

// Validate checks if the task has valid parameters
func (t *Task) Validate() error {
	if t.TaskName == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if t.WalletName == "" {
		return fmt.Errorf("wallet name cannot be empty")
	}
	if t.Token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	switch t.Operation {
	case OperationBuy, OperationSell:
	default:
		return fmt.Errorf("invalid operation: %s", t.Operation)
	}

	if t.Amount == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	if t.Slippage.Type == types.SlippageBps && t.Slippage.Value > MaxSlippageBps {
		return fmt.Errorf("slippage must be between 0 and %d bps", MaxSlippageBps)
	}
	return nil
}
