// internal/fee/fee.go
package fee

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
)

const (
	// BpsDenominator is the number of basis points in 100%.
	BpsDenominator uint64 = 10_000
	// MaxBps caps the trading fee at 10%.
	MaxBps uint16 = 1000
	// DefaultBps is the 1% protocol fee applied until an admin changes it.
	DefaultBps uint16 = 100
)

var ErrInvalidFeePercentage = errors.New("invalid fee percentage")

// Validate checks a fee rate at configuration time.
func Validate(bps uint16) error {
	if bps > MaxBps {
		return fmt.Errorf("%w: %d bps exceeds maximum %d", ErrInvalidFeePercentage, bps, MaxBps)
	}
	return nil
}

// Compute splits amount into the fee (rounded down) and the remainder.
// fee + net == amount always holds; bps is assumed already validated.
func Compute(amount uint64, bps uint16) (fee, net uint64, err error) {
	fee, err = fixedpoint.MulDiv(amount, uint64(bps), BpsDenominator)
	if err != nil {
		return 0, 0, err
	}
	net, err = fixedpoint.Sub(amount, fee)
	if err != nil {
		return 0, 0, err
	}
	return fee, net, nil
}
