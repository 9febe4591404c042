package curve

import (
	"fmt"

	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
)

// Protocol constants of the exponential curve: price = 0.6015 * e^(0.00003606 * raised).
const (
	DefaultBasePrice  uint64 = 601_500_000
	DefaultGrowthRate uint64 = 36_060
)

var _ Strategy = (*Exponential)(nil)

// Exponential prices tokens by a third-order Taylor approximation of an
// exponential in the currency raised so far. The price is a step function of
// the pre-trade state: a trade does not move its own price.
type Exponential struct {
	basePrice  uint64
	growthRate uint64
}

func NewExponential(basePrice, growthRate uint64) (*Exponential, error) {
	if basePrice == 0 {
		return nil, fmt.Errorf("%w: base price must be positive", ErrInvalidParams)
	}
	return &Exponential{basePrice: basePrice, growthRate: growthRate}, nil
}

func (e *Exponential) Kind() Kind { return KindExponential }

func (e *Exponential) PriceAt(st State) (uint64, error) {
	factor, err := e.expFactor(st.CurrencyRaised)
	if err != nil {
		return 0, err
	}
	price, err := fixedpoint.MulScaled(e.basePrice, factor)
	if err != nil {
		return 0, fmt.Errorf("price at raised=%d: %w", st.CurrencyRaised, err)
	}
	if price == 0 {
		return 0, fmt.Errorf("price at raised=%d: %w", st.CurrencyRaised, fixedpoint.ErrDivisionByZero)
	}
	return price, nil
}

// expFactor returns 1 + x + x^2/2 + x^3/6 in Scale units, x = growth * raised.
func (e *Exponential) expFactor(raised uint64) (uint64, error) {
	x, err := fixedpoint.MulScaled(raised, e.growthRate)
	if err != nil {
		return 0, err
	}
	x2, err := fixedpoint.MulScaled(x, x)
	if err != nil {
		return 0, err
	}
	x3, err := fixedpoint.MulScaled(x2, x)
	if err != nil {
		return 0, err
	}

	factor, err := fixedpoint.Add(fixedpoint.Scale, x)
	if err != nil {
		return 0, err
	}
	if factor, err = fixedpoint.Add(factor, x2/2); err != nil {
		return 0, err
	}
	return fixedpoint.Add(factor, x3/6)
}

func (e *Exponential) TokensOut(st State, currencyIn uint64) (uint64, error) {
	price, err := e.PriceAt(st)
	if err != nil {
		return 0, err
	}
	return fixedpoint.MulDiv(currencyIn, TokensPerPriceStep, price)
}

func (e *Exponential) CurrencyOut(st State, tokensIn uint64) (uint64, error) {
	price, err := e.PriceAt(st)
	if err != nil {
		return 0, err
	}
	return fixedpoint.MulDiv(tokensIn, price, TokensPerPriceStep)
}

func (e *Exponential) CheckBuy(st State, currencyIn uint64) error {
	_, err := fixedpoint.Add(st.CurrencyRaised, currencyIn)
	return err
}

func (e *Exponential) CheckSell(st State, currencyOut uint64) error {
	return checkPayout(st, currencyOut)
}
