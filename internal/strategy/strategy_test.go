package strategy

import (
	"testing"

	"github.com/markcheno/go-talib"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type StrategyTestSuite struct {
	suite.Suite
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func flat(n int, price float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = price
	}

	return prices
}

func linear(n int, start, step float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + step*float64(i)
	}

	return prices
}

// crossUpSeries crosses upwards at index 30: 30 flat samples, then a jump.
func crossUpSeries() []float64 {
	return append(flat(30, 100), 200, 200)
}

// crossDownSeries crosses upwards at index 30 and back down at index 32.
func crossDownSeries() []float64 {
	return append(flat(30, 100), 200, 50, 40)
}

// oversoldCrossSeries ends with a crossover caused by an old spike leaving
// the long window while the last 14 deltas are all losses.
func oversoldCrossSeries() []float64 {
	prices := append(flat(14, 100), 160)
	prices = append(prices, flat(15, 100)...)

	for p := 113.0; p >= 99; p-- {
		prices = append(prices, p)
	}

	return prices
}

func (suite *StrategyTestSuite) TestParse() {
	log := logger.NewNopLogger()

	tests := []struct {
		name     string
		input    string
		expected Kind
	}{
		{"moving average", "ma", KindMA},
		{"rsi upper case", "RSI", KindRSI},
		{"combined", " combined ", KindCombined},
		{"unknown falls back", "macd", KindCombined},
		{"empty falls back", "", KindCombined},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			s := Parse(tc.input, log)
			suite.Equal(tc.expected, s.Kind)
			suite.NoError(s.Validate())
		})
	}
}

func (suite *StrategyTestSuite) TestMinSamples() {
	suite.Equal(30, New(KindMA).MinSamples())
	suite.Equal(15, New(KindRSI).MinSamples())
	suite.Equal(30, New(KindCombined).MinSamples())
}

func (suite *StrategyTestSuite) TestValidate() {
	s := New(KindMA)
	s.MA = MAParams{ShortWindow: 30, LongWindow: 10}
	suite.True(errors.HasCode(s.Validate(), errors.ErrCodeInvalidParameter))

	s = New(KindRSI)
	s.RSI.Oversold = 80
	suite.True(errors.HasCode(s.Validate(), errors.ErrCodeInvalidParameter))

	s = Strategy{Kind: "bollinger"}
	suite.True(errors.HasCode(s.Validate(), errors.ErrCodeUnsupportedStrategy))
}

func (suite *StrategyTestSuite) TestRegimeMatchesTalib() {
	prices := crossDownSeries()
	params := DefaultMAParams()
	regime := params.Regime(prices)

	short := talib.Sma(prices, params.ShortWindow)
	long := talib.Sma(prices, params.LongWindow)

	for i := range prices {
		expected := 0
		if i >= params.LongWindow-1 && short[i] > long[i] {
			expected = 1
		}

		suite.Equal(expected, regime[i], "index %d", i)
	}

	suite.Equal(0, regime[29])
	suite.Equal(1, regime[30])
	suite.Equal(1, regime[31])
	suite.Equal(0, regime[32])
}

func (suite *StrategyTestSuite) TestMACrossoverTiming() {
	s := New(KindMA)
	prices := crossUpSeries()

	for n := 0; n <= len(prices); n++ {
		expected := n == 31
		suite.Equal(expected, s.ShouldBuy(prices[:n]), "length %d", n)
		suite.False(s.ShouldSell(prices[:n]), "length %d", n)
	}
}

func (suite *StrategyTestSuite) TestMASellOnCrossDown() {
	s := New(KindMA)
	prices := crossDownSeries()

	suite.False(s.ShouldSell(prices[:32]))
	suite.True(s.ShouldSell(prices))
	suite.False(s.ShouldBuy(prices))
}

func (suite *StrategyTestSuite) TestMAShortHistory() {
	s := New(KindMA)
	suite.False(s.ShouldBuy(linear(29, 1, 1)))
	suite.False(s.ShouldSell(linear(29, 100, -1)))
}

func (suite *StrategyTestSuite) TestRSIValues() {
	value, ok := RSI(linear(15, 1, 1), 14)
	suite.True(ok)
	suite.Equal(100.0, value)

	value, ok = RSI(linear(15, 100, -1), 14)
	suite.True(ok)
	suite.Equal(0.0, value)

	value, ok = RSI(flat(15, 100), 14)
	suite.True(ok)
	suite.Equal(100.0, value)

	alternating := []float64{10}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			alternating = append(alternating, alternating[i]+1)
		} else {
			alternating = append(alternating, alternating[i]-1)
		}
	}

	value, ok = RSI(alternating, 14)
	suite.True(ok)
	suite.InDelta(50.0, value, 1e-9)

	// only the last period deltas count
	value, ok = RSI(append(linear(20, 200, -1), linear(15, 181, 1)...), 14)
	suite.True(ok)
	suite.Equal(100.0, value)

	_, ok = RSI(linear(14, 1, 1), 14)
	suite.False(ok)
}

func (suite *StrategyTestSuite) TestRSISignals() {
	s := New(KindRSI)

	suite.True(s.ShouldBuy(linear(15, 100, -1)))
	suite.False(s.ShouldSell(linear(15, 100, -1)))
	suite.True(s.ShouldSell(linear(15, 1, 1)))
	suite.False(s.ShouldBuy(linear(15, 1, 1)))
	suite.False(s.ShouldBuy(linear(14, 100, -1)))
}

func (suite *StrategyTestSuite) TestCombinedBuyNeedsBoth() {
	s := New(KindCombined)

	// MA crosses up but the jump makes RSI overbought
	suite.True(New(KindMA).ShouldBuy(crossUpSeries()[:31]))
	suite.False(s.ShouldBuy(crossUpSeries()[:31]))

	// RSI oversold without a crossover
	suite.True(New(KindRSI).ShouldBuy(linear(40, 200, -1)))
	suite.False(s.ShouldBuy(linear(40, 200, -1)))

	prices := oversoldCrossSeries()
	suite.True(New(KindMA).ShouldBuy(prices))
	suite.True(New(KindRSI).ShouldBuy(prices))
	suite.True(s.ShouldBuy(prices))
}

func (suite *StrategyTestSuite) TestCombinedSellNeedsEither() {
	s := New(KindCombined)

	// steady rise: no crossover at the end, RSI 100
	suite.True(s.ShouldSell(linear(40, 1, 1)))

	suite.True(s.ShouldSell(crossDownSeries()))

	// falling prices: RSI oversold and too short for the crossover
	suite.False(s.ShouldSell(linear(29, 100, -1)))
}
