package curve

import (
	"fmt"

	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
)

// Defaults assigned to a linear curve at token creation.
const (
	DefaultInitialPrice    uint64 = 1_000_000      // 0.001 SOL per token
	DefaultSlope           uint64 = 100            // lamports per raw unit sold
	DefaultLiquidityTarget uint64 = 17_000_000_000 // 17 SOL
)

var _ Strategy = (*Linear)(nil)

// Linear prices tokens as initialPrice + slope*unitsSold and caps the
// currency the curve may hold at liquidityTarget.
type Linear struct {
	initialPrice    uint64
	slope           uint64
	liquidityTarget uint64
}

func NewLinear(initialPrice, slope, liquidityTarget uint64) (*Linear, error) {
	if initialPrice == 0 {
		return nil, fmt.Errorf("%w: initial price must be positive", ErrInvalidParams)
	}
	if liquidityTarget == 0 {
		return nil, fmt.Errorf("%w: liquidity target must be positive", ErrInvalidParams)
	}
	return &Linear{initialPrice: initialPrice, slope: slope, liquidityTarget: liquidityTarget}, nil
}

func (l *Linear) Kind() Kind { return KindLinear }

// LiquidityTarget is the maximum currency the curve will hold.
func (l *Linear) LiquidityTarget() uint64 { return l.liquidityTarget }

// PriceFor returns the unit price once amount more units have been sold.
func (l *Linear) PriceFor(st State, amount uint64) (uint64, error) {
	supply, err := fixedpoint.Add(st.UnitsSold, amount)
	if err != nil {
		return 0, err
	}
	step, err := fixedpoint.Mul(l.slope, supply)
	if err != nil {
		return 0, err
	}
	return fixedpoint.Add(l.initialPrice, step)
}

func (l *Linear) PriceAt(st State) (uint64, error) {
	return l.PriceFor(st, 0)
}

// TokensOut prices the whole purchase at the current supply, not at
// supply+amount.
func (l *Linear) TokensOut(st State, currencyIn uint64) (uint64, error) {
	price, err := l.PriceAt(st)
	if err != nil {
		return 0, err
	}
	return fixedpoint.MulDiv(currencyIn, fixedpoint.Scale, price)
}

func (l *Linear) CurrencyOut(st State, tokensIn uint64) (uint64, error) {
	price, err := l.PriceAt(st)
	if err != nil {
		return 0, err
	}
	return fixedpoint.MulDiv(tokensIn, price, fixedpoint.Scale)
}

func (l *Linear) CheckBuy(st State, currencyIn uint64) error {
	raised, err := fixedpoint.Add(st.CurrencyRaised, currencyIn)
	if err != nil {
		return err
	}
	if raised > l.liquidityTarget {
		return fmt.Errorf("%w: %d + %d > %d",
			ErrLiquidityTargetExceeded, st.CurrencyRaised, currencyIn, l.liquidityTarget)
	}
	return nil
}

func (l *Linear) CheckSell(st State, currencyOut uint64) error {
	return checkPayout(st, currencyOut)
}
