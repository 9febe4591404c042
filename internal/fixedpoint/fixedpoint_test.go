package fixedpoint

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckedOps(t *testing.T) {
	sum, err := Add(2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), sum)

	_, err = Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrOverflow)
	assert.ErrorIs(t, err, ErrArithmetic)

	diff, err := Sub(10, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), diff)

	_, err = Sub(4, 10)
	assert.ErrorIs(t, err, ErrUnderflow)

	prod, err := Mul(1<<31, 1<<31)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<62), prod)

	_, err = Mul(1<<32, 1<<32)
	assert.ErrorIs(t, err, ErrOverflow)

	q, err := Div(7, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), q)

	_, err = Div(7, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDiv(t *testing.T) {
	// The intermediate product exceeds 64 bits but the quotient does not.
	got, err := MulDiv(1_000_000_000, 10_000_000_000_000, 601_500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(16_625_103_906_899), got)

	got, err = MulDiv(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = MulDiv(math.MaxUint64, 2, 1)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = MulDiv(1, 1, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	got, err = MulScaled(2*Scale, 3*Scale)
	require.NoError(t, err)
	assert.Equal(t, 6*Scale, got)
}

func TestOverflowNeverSaturates(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func() (uint64, error)
	}{
		{"add", func() (uint64, error) { return Add(math.MaxUint64, math.MaxUint64) }},
		{"mul", func() (uint64, error) { return Mul(math.MaxUint64, 2) }},
		{"muldiv", func() (uint64, error) { return MulDiv(math.MaxUint64, math.MaxUint64, 2) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, err := tc.fn()
			assert.True(t, errors.Is(err, ErrOverflow))
			assert.Zero(t, v)
		})
	}
}

func TestDecimalRendering(t *testing.T) {
	assert.Equal(t, "1.5", FormatCurrency(1_500_000_000))
	assert.Equal(t, "9.9", FormatTokens(9_900_000))
	assert.Equal(t, "0", FormatTokens(0))

	raw, ok := FromDecimal(decimal.RequireFromString("0.25"), CurrencyDecimals)
	require.True(t, ok)
	assert.Equal(t, uint64(250_000_000), raw)

	_, ok = FromDecimal(decimal.NewFromInt(-1), TokenDecimals)
	assert.False(t, ok)
}
