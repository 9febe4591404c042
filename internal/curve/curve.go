// internal/curve/curve.go
package curve

import (
	"errors"
	"fmt"
)

const (
	// TokenUnit is one whole sale token in raw units (6 decimals).
	TokenUnit uint64 = 1_000_000
	// TotalSupply is the full token supply minted over a token's lifetime.
	TotalSupply uint64 = 1_000_000_000 * TokenUnit
	// TotalSaleSupply is the amount sold through the curve before it graduates.
	TotalSaleSupply uint64 = 800_000_000 * TokenUnit
	// TokensPerPriceStep is the token quantity a single exponential price quote refers to.
	TokensPerPriceStep uint64 = 10_000_000 * TokenUnit
)

var (
	ErrLiquidityTargetExceeded = errors.New("liquidity target exceeded")
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrInvalidParams           = errors.New("invalid curve parameters")
	ErrUnknownKind             = errors.New("unknown curve kind")
)

// State is the market input every strategy prices against.
type State struct {
	UnitsSold      uint64 `json:"units_sold"`
	CurrencyRaised uint64 `json:"currency_raised"`
}

// Kind identifies a pricing model.
type Kind string

const (
	KindExponential Kind = "exponential"
	KindLinear      Kind = "linear"
)

// Strategy maps a market state to a unit price and converts between
// currency and token amounts at that price. Implementations are pure.
type Strategy interface {
	Kind() Kind
	// PriceAt returns the unit price at st. Never zero on success.
	PriceAt(st State) (uint64, error)
	// TokensOut converts currencyIn into tokens at PriceAt(st).
	TokensOut(st State, currencyIn uint64) (uint64, error)
	// CurrencyOut converts tokensIn into currency at PriceAt(st).
	CurrencyOut(st State, tokensIn uint64) (uint64, error)
	// CheckBuy enforces model-specific limits on adding currencyIn to the curve.
	CheckBuy(st State, currencyIn uint64) error
	// CheckSell enforces model-specific limits on paying currencyOut from the curve.
	CheckSell(st State, currencyOut uint64) error
}

// QuoteBuy returns the tokens currencyIn buys at st, with the model's limits applied.
func QuoteBuy(s Strategy, st State, currencyIn uint64) (uint64, error) {
	tokens, err := s.TokensOut(st, currencyIn)
	if err != nil {
		return 0, err
	}
	if err := s.CheckBuy(st, currencyIn); err != nil {
		return 0, err
	}
	return tokens, nil
}

// QuoteSell returns the currency tokensIn sells for at st, with the model's limits applied.
func QuoteSell(s Strategy, st State, tokensIn uint64) (uint64, error) {
	currency, err := s.CurrencyOut(st, tokensIn)
	if err != nil {
		return 0, err
	}
	if err := s.CheckSell(st, currency); err != nil {
		return 0, err
	}
	return currency, nil
}

// checkPayout is shared by both models: the curve can never pay out more
// currency than it holds.
func checkPayout(st State, currencyOut uint64) error {
	if currencyOut > st.CurrencyRaised {
		return fmt.Errorf("%w: payout %d exceeds curve balance %d",
			ErrInsufficientLiquidity, currencyOut, st.CurrencyRaised)
	}
	return nil
}
