// =============================================
// File: internal/custody/vault.go
// =============================================
package custody

import (
	"context"
	"fmt"
	"sync"

	smath "github.com/ava-labs/avalanchego/utils/math"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type tokenKey struct {
	mint    solana.PublicKey
	account solana.PublicKey
}

// Vault is an in-memory custody service holding base currency balances,
// token balances and token supplies.
type Vault struct {
	mu      sync.Mutex
	native  map[solana.PublicKey]uint64
	tokens  map[tokenKey]uint64
	supply  map[solana.PublicKey]uint64
	settled uint64
	logger  *zap.Logger
}

func NewVault(logger *zap.Logger) *Vault {
	return &Vault{
		native: make(map[solana.PublicKey]uint64),
		tokens: make(map[tokenKey]uint64),
		supply: make(map[solana.PublicKey]uint64),
		logger: logger.Named("vault"),
	}
}

// Deposit credits base currency to an account from outside the system.
func (v *Vault) Deposit(account solana.PublicKey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	bal, err := smath.Add(v.native[account], amount)
	if err != nil {
		return fmt.Errorf("deposit to %s: %w", account, err)
	}
	v.native[account] = bal
	return nil
}

// Balance returns the base currency held by account.
func (v *Vault) Balance(account solana.PublicKey) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.native[account]
}

// TokenBalance returns the tokens of mint held by account.
func (v *Vault) TokenBalance(mint, account solana.PublicKey) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tokens[tokenKey{mint, account}]
}

// Supply returns the circulating supply of mint.
func (v *Vault) Supply(mint solana.PublicKey) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.supply[mint]
}

// Settled returns the number of batches applied so far.
func (v *Vault) Settled() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.settled
}

// Settle applies ixs all-or-nothing. Balances are staged in a scratch
// overlay and copied back only when every instruction succeeds.
func (v *Vault) Settle(ctx context.Context, ixs []Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	s := &stage{
		vault:  v,
		native: make(map[solana.PublicKey]uint64),
		tokens: make(map[tokenKey]uint64),
		supply: make(map[solana.PublicKey]uint64),
	}
	for i, ix := range ixs {
		if err := s.apply(ix); err != nil {
			v.logger.Debug("Settlement rejected",
				zap.Int("instruction", i),
				zap.Stringer("op", ix.Op),
				zap.Uint64("amount", ix.Amount),
				zap.Error(err))
			return fmt.Errorf("instruction %d (%s): %w", i, ix.Op, err)
		}
	}

	for k, bal := range s.native {
		v.native[k] = bal
	}
	for k, bal := range s.tokens {
		v.tokens[k] = bal
	}
	for k, sup := range s.supply {
		v.supply[k] = sup
	}
	v.settled++
	return nil
}

type stage struct {
	vault  *Vault
	native map[solana.PublicKey]uint64
	tokens map[tokenKey]uint64
	supply map[solana.PublicKey]uint64
}

func (s *stage) nativeOf(k solana.PublicKey) uint64 {
	if bal, ok := s.native[k]; ok {
		return bal
	}
	return s.vault.native[k]
}

func (s *stage) tokensOf(k tokenKey) uint64 {
	if bal, ok := s.tokens[k]; ok {
		return bal
	}
	return s.vault.tokens[k]
}

func (s *stage) supplyOf(mint solana.PublicKey) uint64 {
	if sup, ok := s.supply[mint]; ok {
		return sup
	}
	return s.vault.supply[mint]
}

func (s *stage) apply(ix Instruction) error {
	if ix.Amount == 0 {
		return nil
	}
	switch ix.Op {
	case OpTransfer:
		if ix.From.IsZero() || ix.To.IsZero() {
			return fmt.Errorf("%w: transfer needs both accounts", ErrInvalidInstruction)
		}
		if ix.Mint.IsZero() {
			return s.moveNative(ix.From, ix.To, ix.Amount)
		}
		return s.moveTokens(ix.Mint, ix.From, ix.To, ix.Amount)
	case OpMint:
		if ix.Mint.IsZero() || ix.To.IsZero() {
			return fmt.Errorf("%w: mint needs mint and destination", ErrInvalidInstruction)
		}
		sup, err := smath.Add(s.supplyOf(ix.Mint), ix.Amount)
		if err != nil {
			return err
		}
		k := tokenKey{ix.Mint, ix.To}
		bal, err := smath.Add(s.tokensOf(k), ix.Amount)
		if err != nil {
			return err
		}
		s.supply[ix.Mint] = sup
		s.tokens[k] = bal
		return nil
	case OpBurn:
		if ix.Mint.IsZero() || ix.From.IsZero() {
			return fmt.Errorf("%w: burn needs mint and source", ErrInvalidInstruction)
		}
		k := tokenKey{ix.Mint, ix.From}
		bal, err := smath.Sub(s.tokensOf(k), ix.Amount)
		if err != nil {
			return fmt.Errorf("%w: %s holds %d tokens, burn %d", ErrInsufficientFunds, ix.From, s.tokensOf(k), ix.Amount)
		}
		sup, err := smath.Sub(s.supplyOf(ix.Mint), ix.Amount)
		if err != nil {
			return err
		}
		s.tokens[k] = bal
		s.supply[ix.Mint] = sup
		return nil
	default:
		return fmt.Errorf("%w: unknown op %d", ErrInvalidInstruction, ix.Op)
	}
}

func (s *stage) moveNative(from, to solana.PublicKey, amount uint64) error {
	src, err := smath.Sub(s.nativeOf(from), amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, s.nativeOf(from), amount)
	}
	s.native[from] = src
	dst, err := smath.Add(s.nativeOf(to), amount)
	if err != nil {
		return err
	}
	s.native[to] = dst
	return nil
}

func (s *stage) moveTokens(mint, from, to solana.PublicKey, amount uint64) error {
	fk, tk := tokenKey{mint, from}, tokenKey{mint, to}
	src, err := smath.Sub(s.tokensOf(fk), amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d tokens, needs %d", ErrInsufficientFunds, from, s.tokensOf(fk), amount)
	}
	s.tokens[fk] = src
	dst, err := smath.Add(s.tokensOf(tk), amount)
	if err != nil {
		return err
	}
	s.tokens[tk] = dst
	return nil
}
