package ledger

import (
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/shopspring/decimal"
)

// statsAccumulator holds running statistics over SELL records.
type statsAccumulator struct {
	buys        int
	sells       int
	winning     int
	losing      int
	realized    decimal.Decimal
	fees        decimal.Decimal
	profitSum   decimal.Decimal
	lossSum     decimal.Decimal
	maxProfit   float64
	maxLoss     float64
	peakPnL     float64
	maxDrawdown float64
}

func newStatsAccumulator() *statsAccumulator {
	return &statsAccumulator{
		realized:  decimal.Zero,
		fees:      decimal.Zero,
		profitSum: decimal.Zero,
		lossSum:   decimal.Zero,
	}
}

func (acc *statsAccumulator) add(trade types.TradeRecord) {
	if trade.Action == types.TradeActionBuy {
		acc.buys++

		return
	}

	acc.sells++
	acc.realized = acc.realized.Add(decimal.NewFromFloat(trade.PnL))
	acc.fees = acc.fees.Add(decimal.NewFromFloat(trade.FeeValue))

	if trade.PnL > 0 {
		acc.winning++
		acc.profitSum = acc.profitSum.Add(decimal.NewFromFloat(trade.PnL))
	} else if trade.PnL < 0 {
		acc.losing++
		acc.lossSum = acc.lossSum.Add(decimal.NewFromFloat(trade.PnL))
	}

	if trade.PnL > acc.maxProfit {
		acc.maxProfit = trade.PnL
	}

	if trade.PnL < acc.maxLoss {
		acc.maxLoss = trade.PnL
	}

	running := acc.realized.InexactFloat64()
	if running > acc.peakPnL {
		acc.peakPnL = running
	}

	if drawdown := acc.peakPnL - running; drawdown > acc.maxDrawdown {
		acc.maxDrawdown = drawdown
	}
}

func (acc *statsAccumulator) stats(unrealized float64) types.PerformanceStats {
	stats := types.PerformanceStats{
		Empty:              false,
		TotalTrades:        acc.buys,
		CompletedTrades:    acc.sells,
		ProfitableTrades:   acc.winning,
		LosingTrades:       acc.losing,
		TotalRealizedPnL:   acc.realized.InexactFloat64(),
		TotalUnrealizedPnL: unrealized,
		TotalFeesPaid:      acc.fees.InexactFloat64(),
		MaxProfit:          acc.maxProfit,
		MaxLoss:            acc.maxLoss,
		MaxDrawdown:        acc.maxDrawdown,
	}

	if acc.sells > 0 {
		stats.WinRate = float64(acc.winning) / float64(acc.sells)
	}

	if acc.winning > 0 {
		stats.AverageProfit = acc.profitSum.Div(decimal.NewFromInt(int64(acc.winning))).InexactFloat64()
	}

	if acc.losing > 0 {
		stats.AverageLoss = acc.lossSum.Div(decimal.NewFromInt(int64(acc.losing))).InexactFloat64()
	}

	return stats
}

// PerformanceStats derives statistics from the trade history. The result is
// marked Empty when no trade exists yet.
func (l *Ledger) PerformanceStats() types.PerformanceStats {
	trades := l.Trades()
	if len(trades) == 0 {
		return types.PerformanceStats{Empty: true}
	}

	acc := newStatsAccumulator()
	for _, trade := range trades {
		acc.add(trade)
	}

	return acc.stats(l.TotalUnrealizedPnL())
}
