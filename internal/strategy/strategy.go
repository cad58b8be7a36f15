// Package strategy holds the signal generators. A Strategy is a value: the
// kind selects the generator and the parameter blocks configure it. Every
// operation is a pure function of the price sequence, oldest first.
package strategy

import (
	"strings"

	"github.com/markcheno/go-talib"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"go.uber.org/zap"
)

// Kind names a signal strategy.
type Kind string

const (
	KindMA       Kind = "ma"
	KindRSI      Kind = "rsi"
	KindCombined Kind = "combined"
)

// MAParams configures the moving-average crossover.
type MAParams struct {
	ShortWindow int `json:"short_window" yaml:"short_window"`
	LongWindow  int `json:"long_window" yaml:"long_window"`
}

// RSIParams configures the relative strength index generator.
type RSIParams struct {
	Period     int     `json:"period" yaml:"period"`
	Oversold   float64 `json:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought" yaml:"overbought"`
}

// Strategy is the configured signal generator.
type Strategy struct {
	Kind Kind
	MA   MAParams
	RSI  RSIParams
}

// DefaultMAParams returns the 10/30 crossover.
func DefaultMAParams() MAParams {
	return MAParams{ShortWindow: 10, LongWindow: 30}
}

// DefaultRSIParams returns period 14 with 30/70 thresholds.
func DefaultRSIParams() RSIParams {
	return RSIParams{Period: 14, Oversold: 30, Overbought: 70}
}

// New returns a strategy of the given kind with default parameters.
func New(kind Kind) Strategy {
	return Strategy{Kind: kind, MA: DefaultMAParams(), RSI: DefaultRSIParams()}
}

// Parse maps a configured name to a strategy. Unknown names fall back to the
// combined strategy with a warning.
func Parse(name string, log *logger.Logger) Strategy {
	kind := Kind(strings.ToLower(strings.TrimSpace(name)))

	switch kind {
	case KindMA, KindRSI, KindCombined:
		return New(kind)
	default:
		if log != nil {
			log.Warn("Unknown strategy, falling back to combined", zap.String("strategy", name))
		}

		return New(KindCombined)
	}
}

// Validate checks the parameter blocks used by the kind.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindMA:
		return s.MA.validate()
	case KindRSI:
		return s.RSI.validate()
	case KindCombined:
		if err := s.MA.validate(); err != nil {
			return err
		}

		return s.RSI.validate()
	default:
		return errors.Newf(errors.ErrCodeUnsupportedStrategy, "unsupported strategy %q", s.Kind)
	}
}

func (p MAParams) validate() error {
	if p.ShortWindow <= 0 || p.LongWindow <= 1 || p.ShortWindow >= p.LongWindow {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"moving average windows must satisfy 0 < short < long, got %d/%d", p.ShortWindow, p.LongWindow)
	}

	return nil
}

func (p RSIParams) validate() error {
	if p.Period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "rsi period must be positive, got %d", p.Period)
	}

	if p.Oversold < 0 || p.Overbought > 100 || p.Oversold >= p.Overbought {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"rsi thresholds must satisfy 0 <= oversold < overbought <= 100, got %.2f/%.2f", p.Oversold, p.Overbought)
	}

	return nil
}

// Name returns the configured kind.
func (s Strategy) Name() string {
	return string(s.Kind)
}

// MinSamples is the history length below which no signal can fire.
func (s Strategy) MinSamples() int {
	switch s.Kind {
	case KindMA:
		return s.MA.LongWindow
	case KindRSI:
		return s.RSI.Period + 1
	default:
		return max(s.MA.LongWindow, s.RSI.Period+1)
	}
}

// ShouldBuy reports an entry signal. The combined strategy needs both generators to agree.
func (s Strategy) ShouldBuy(prices []float64) bool {
	switch s.Kind {
	case KindMA:
		return s.MA.crossover(prices) == crossUp
	case KindRSI:
		value, ok := RSI(prices, s.RSI.Period)

		return ok && value < s.RSI.Oversold
	default:
		value, ok := RSI(prices, s.RSI.Period)

		return s.MA.crossover(prices) == crossUp && ok && value < s.RSI.Oversold
	}
}

// ShouldSell reports an exit signal. The combined strategy exits when either generator does.
func (s Strategy) ShouldSell(prices []float64) bool {
	switch s.Kind {
	case KindMA:
		return s.MA.crossover(prices) == crossDown
	case KindRSI:
		value, ok := RSI(prices, s.RSI.Period)

		return ok && value > s.RSI.Overbought
	default:
		value, ok := RSI(prices, s.RSI.Period)

		return s.MA.crossover(prices) == crossDown || (ok && value > s.RSI.Overbought)
	}
}

type cross int

const (
	crossNone cross = iota
	crossUp
	crossDown
)

// crossover compares the regime of the last two samples.
func (p MAParams) crossover(prices []float64) cross {
	n := len(prices)
	if p.validate() != nil || n < p.LongWindow {
		return crossNone
	}

	regime := p.Regime(prices)

	switch {
	case regime[n-1] == 1 && regime[n-2] == 0:
		return crossUp
	case regime[n-1] == 0 && regime[n-2] == 1:
		return crossDown
	default:
		return crossNone
	}
}

// Regime returns the per-index crossover regime: 1 when the long window is
// complete at that index and the short SMA is above the long SMA.
func (p MAParams) Regime(prices []float64) []int {
	regime := make([]int, len(prices))
	if p.validate() != nil || len(prices) < p.LongWindow {
		return regime
	}

	short := talib.Sma(prices, p.ShortWindow)
	long := talib.Sma(prices, p.LongWindow)

	for i := p.LongWindow - 1; i < len(prices); i++ {
		if short[i] > long[i] {
			regime[i] = 1
		}
	}

	return regime
}

// RSI computes the relative strength index of the last period deltas using
// simple means of gains and losses. A window with no losses yields 100.
// ok is false when fewer than period+1 prices are given.
func RSI(prices []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	window := prices[len(prices)-period-1:]

	var gain, loss float64

	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}

	gain /= float64(period)
	loss /= float64(period)

	if loss == 0 {
		return 100, true
	}

	return 100 - 100/(1+gain/loss), true
}
