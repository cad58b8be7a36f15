// Package risk checks open lots against stop-loss and take-profit thresholds.
package risk

import (
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"go.uber.org/zap"
)

// Trigger is a forced exit for one lot. Reason is stop_loss or take_profit.
type Trigger struct {
	Lot       types.Lot
	Reason    types.TradeReason
	PctChange float64
	Price     float64
}

// Monitor evaluates lots against percentage thresholds.
type Monitor struct {
	stopLossPct   float64
	takeProfitPct float64
	logger        *logger.Logger
}

// NewMonitor creates a monitor. Both thresholds are positive percentages.
func NewMonitor(stopLossPct, takeProfitPct float64, log *logger.Logger) (*Monitor, error) {
	if stopLossPct <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidStopLoss, "stop loss percentage must be positive, got %f", stopLossPct)
	}

	if takeProfitPct <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidTakeProfit, "take profit percentage must be positive, got %f", takeProfitPct)
	}

	return &Monitor{
		stopLossPct:   stopLossPct,
		takeProfitPct: takeProfitPct,
		logger:        log,
	}, nil
}

// Evaluate returns one trigger per lot that crossed a threshold at
// currentPrice, in lot order. Stop-loss is checked first. Callers selling
// a trigger's amount through the ledger close the oldest lots first, which
// is the triggered lot as long as an asset holds a single lot.
func (m *Monitor) Evaluate(lots []types.Lot, currentPrice float64) []Trigger {
	triggers := make([]Trigger, 0)

	if currentPrice <= 0 {
		return triggers
	}

	for _, lot := range lots {
		pct := lot.PctChange(currentPrice)

		var reason types.TradeReason

		switch {
		case pct <= -m.stopLossPct:
			reason = types.TradeReasonStopLoss
		case pct >= m.takeProfitPct:
			reason = types.TradeReasonTakeProfit
		default:
			continue
		}

		m.logger.Info("Risk threshold crossed",
			zap.String("asset", lot.Asset),
			zap.String("lot_id", lot.ID),
			zap.String("reason", string(reason)),
			zap.Float64("entry_price", lot.EntryPrice),
			zap.Float64("current_price", currentPrice),
			zap.Float64("pct_change", pct),
		)

		triggers = append(triggers, Trigger{
			Lot:       lot,
			Reason:    reason,
			PctChange: pct,
			Price:     currentPrice,
		})
	}

	return triggers
}

// StopLossPct returns the loss percentage that forces an exit.
func (m *Monitor) StopLossPct() float64 {
	return m.stopLossPct
}

// TakeProfitPct returns the gain percentage that forces an exit.
func (m *Monitor) TakeProfitPct() float64 {
	return m.takeProfitPct
}
