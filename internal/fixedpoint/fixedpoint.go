// internal/fixedpoint/fixedpoint.go
package fixedpoint

import (
	"errors"
	"fmt"

	smath "github.com/ava-labs/avalanchego/utils/math"
	"github.com/holiman/uint256"
)

// Scale is the implied denominator of every scaled amount (six decimal digits).
const Scale uint64 = 1_000_000

var (
	// ErrArithmetic is the parent of every pricing arithmetic failure.
	ErrArithmetic = errors.New("arithmetic error")

	ErrOverflow       = fmt.Errorf("%w: overflow", ErrArithmetic)
	ErrUnderflow      = fmt.Errorf("%w: underflow", ErrArithmetic)
	ErrDivisionByZero = fmt.Errorf("%w: division by zero", ErrArithmetic)
)

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, err := smath.Add(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, err := smath.Sub(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b uint64) (uint64, error) {
	prod, err := smath.Mul(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return prod, nil
}

// Div returns a/b rounded down, or ErrDivisionByZero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: %d / 0", ErrDivisionByZero, a)
	}
	return a / b, nil
}

// MulDiv returns floor(a*b/c). The product is held in 256 bits, so the call
// fails only when c is zero or the quotient itself does not fit in 64 bits.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, fmt.Errorf("%w: %d * %d / 0", ErrDivisionByZero, a, b)
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quo := prod.Div(prod, uint256.NewInt(c))
	if !quo.IsUint64() {
		return 0, fmt.Errorf("%w: %d * %d / %d", ErrOverflow, a, b, c)
	}
	return quo.Uint64(), nil
}

// MulScaled multiplies two scaled values and divides out one factor of Scale.
func MulScaled(a, b uint64) (uint64, error) {
	return MulDiv(a, b, Scale)
}
