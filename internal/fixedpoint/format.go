package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals of the base currency (lamports) and of every sale token.
const (
	CurrencyDecimals = 9
	TokenDecimals    = 6
)

// ToDecimal renders a raw integer amount with the given number of decimals.
func ToDecimal(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// FromDecimal converts a human amount back to raw units, rounding down.
// Negative or non-representable inputs return ok=false.
func FromDecimal(amount decimal.Decimal, decimals uint8) (uint64, bool) {
	if amount.IsNegative() {
		return 0, false
	}
	raw := amount.Shift(int32(decimals)).Floor()
	if !raw.BigInt().IsUint64() {
		return 0, false
	}
	return raw.BigInt().Uint64(), true
}

// FormatCurrency renders lamports as SOL.
func FormatCurrency(amount uint64) string {
	return ToDecimal(amount, CurrencyDecimals).String()
}

// FormatTokens renders raw token units as whole tokens.
func FormatTokens(amount uint64) string {
	return ToDecimal(amount, TokenDecimals).String()
}
