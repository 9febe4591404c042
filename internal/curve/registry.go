package curve

import "fmt"

// Params carries the constants of any curve kind. Fields that do not apply
// to Kind are ignored.
type Params struct {
	Kind            Kind   `mapstructure:"kind" yaml:"kind" json:"kind"`
	BasePrice       uint64 `mapstructure:"base_price" yaml:"base_price" json:"base_price,omitempty"`
	GrowthRate      uint64 `mapstructure:"growth_rate" yaml:"growth_rate" json:"growth_rate,omitempty"`
	InitialPrice    uint64 `mapstructure:"initial_price" yaml:"initial_price" json:"initial_price,omitempty"`
	Slope           uint64 `mapstructure:"slope" yaml:"slope" json:"slope,omitempty"`
	LiquidityTarget uint64 `mapstructure:"liquidity_target" yaml:"liquidity_target" json:"liquidity_target,omitempty"`
}

// DefaultParams returns the protocol defaults for kind.
func DefaultParams(kind Kind) Params {
	switch kind {
	case KindLinear:
		return Params{
			Kind:            KindLinear,
			InitialPrice:    DefaultInitialPrice,
			Slope:           DefaultSlope,
			LiquidityTarget: DefaultLiquidityTarget,
		}
	default:
		return Params{
			Kind:       KindExponential,
			BasePrice:  DefaultBasePrice,
			GrowthRate: DefaultGrowthRate,
		}
	}
}

type factory func(Params) (Strategy, error)

var models = map[Kind]factory{
	KindExponential: func(p Params) (Strategy, error) {
		return NewExponential(p.BasePrice, p.GrowthRate)
	},
	KindLinear: func(p Params) (Strategy, error) {
		return NewLinear(p.InitialPrice, p.Slope, p.LiquidityTarget)
	},
}

// New builds the strategy described by p.
func New(p Params) (Strategy, error) {
	build, ok := models[p.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
	return build(p)
}

// ParseKind validates a configured kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := models[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
