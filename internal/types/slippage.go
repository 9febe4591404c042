// internal/types/slippage.go
package types

// SlippageType определяет тип политики проскальзывания
type SlippageType string

const (
	// SlippageFixed использует фиксированное значение minAmountOut
	SlippageFixed SlippageType = "fixed"
	// SlippageBps допускает отклонение от котировки в базисных пунктах
	SlippageBps SlippageType = "bps"
	// SlippageNone не использует ограничение minAmountOut
	SlippageNone SlippageType = "none"
)

const bpsDenominator = 10_000

// SlippageConfig конфигурирует политику проскальзывания
type SlippageConfig struct {
	Type SlippageType `yaml:"type" json:"type"`
	// Value:
	// - для SlippageFixed: точное значение minAmountOut
	// - для SlippageBps: допустимое отклонение (100 = 1%), не больше 10000
	// - для SlippageNone: игнорируется
	Value uint64 `yaml:"value" json:"value"`
}

// MinAmountOut вычисляет minAmountOut для ожидаемого выхода quoted.
func (c SlippageConfig) MinAmountOut(quoted uint64) uint64 {
	switch c.Type {
	case SlippageFixed:
		return c.Value
	case SlippageBps:
		tolerance := c.Value
		if tolerance > bpsDenominator {
			tolerance = bpsDenominator
		}
		// quoted - quoted*tolerance/10000 без переполнения
		cut := quoted/bpsDenominator*tolerance + quoted%bpsDenominator*tolerance/bpsDenominator
		return quoted - cut
	default:
		return 0
	}
}
