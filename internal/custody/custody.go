// =============================================
// File: internal/custody/custody.go
// =============================================
package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// Op is the kind of movement an instruction performs.
type Op uint8

const (
	OpTransfer Op = iota + 1
	OpMint
	OpBurn
)

func (o Op) String() string {
	switch o {
	case OpTransfer:
		return "transfer"
	case OpMint:
		return "mint"
	case OpBurn:
		return "burn"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Instruction is one fund or token movement. A transfer with a zero Mint
// moves base currency.
type Instruction struct {
	Op     Op
	Mint   solana.PublicKey
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
}

// Transfer moves base currency between accounts.
func Transfer(from, to solana.PublicKey, amount uint64) Instruction {
	return Instruction{Op: OpTransfer, From: from, To: to, Amount: amount}
}

// MintTo creates amount tokens of mint in the to account.
func MintTo(mint, to solana.PublicKey, amount uint64) Instruction {
	return Instruction{Op: OpMint, Mint: mint, To: to, Amount: amount}
}

// Burn destroys amount tokens of mint held by from.
func Burn(mint, from solana.PublicKey, amount uint64) Instruction {
	return Instruction{Op: OpBurn, Mint: mint, From: from, Amount: amount}
}

// Settler executes a batch of instructions atomically: either every
// instruction takes effect or none does.
type Settler interface {
	Settle(ctx context.Context, ixs []Instruction) error
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(ctx context.Context, ixs []Instruction) error

func (f SettlerFunc) Settle(ctx context.Context, ixs []Instruction) error {
	return f(ctx, ixs)
}

// Authority is a market's program-derived funds account. Only the ledger
// that owns the market issues instructions moving funds out of it.
type Authority struct {
	Address solana.PublicKey
	Bump    uint8
}

// CurveSeed prefixes the seeds of every curve authority.
const CurveSeed = "curve"

// DeriveAuthority finds the curve authority for mint under programID.
func DeriveAuthority(programID, mint solana.PublicKey) (Authority, error) {
	addr, bump, err := solana.FindProgramAddress(
		[][]byte{[]byte(CurveSeed), mint.Bytes()},
		programID,
	)
	if err != nil {
		return Authority{}, fmt.Errorf("failed to derive curve authority for %s: %w", mint, err)
	}
	return Authority{Address: addr, Bump: bump}, nil
}
