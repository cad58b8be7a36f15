package risk

import (
	"testing"

	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RiskTestSuite struct {
	suite.Suite
	monitor *Monitor
}

func TestRiskSuite(t *testing.T) {
	suite.Run(t, new(RiskTestSuite))
}

func (suite *RiskTestSuite) SetupTest() {
	monitor, err := NewMonitor(5, 10, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.monitor = monitor
}

func lot(id string, entry float64) types.Lot {
	return types.Lot{ID: id, Asset: "BTC", Amount: 0.1, EntryPrice: entry}
}

func (suite *RiskTestSuite) TestNewMonitorValidation() {
	_, err := NewMonitor(0, 10, logger.NewNopLogger())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidStopLoss))

	_, err = NewMonitor(5, -1, logger.NewNopLogger())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTakeProfit))

	suite.Equal(5.0, suite.monitor.StopLossPct())
	suite.Equal(10.0, suite.monitor.TakeProfitPct())
}

func (suite *RiskTestSuite) TestThresholds() {
	tests := []struct {
		name     string
		price    float64
		expected types.TradeReason
	}{
		{"exactly at stop loss", 47500, types.TradeReasonStopLoss},
		{"below stop loss", 40000, types.TradeReasonStopLoss},
		{"just above stop loss", 47501, ""},
		{"unchanged", 50000, ""},
		{"just below take profit", 54999, ""},
		{"exactly at take profit", 55000, types.TradeReasonTakeProfit},
		{"above take profit", 60000, types.TradeReasonTakeProfit},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			triggers := suite.monitor.Evaluate([]types.Lot{lot("a", 50000)}, tc.price)

			if tc.expected == "" {
				suite.Empty(triggers)

				return
			}

			suite.Require().Len(triggers, 1)
			suite.Equal(tc.expected, triggers[0].Reason)
			suite.Equal("a", triggers[0].Lot.ID)
			suite.Equal(tc.price, triggers[0].Price)
		})
	}
}

func (suite *RiskTestSuite) TestOneTriggerPerAffectedLot() {
	lots := []types.Lot{lot("old", 50000), lot("mid", 46000), lot("new", 43000)}

	triggers := suite.monitor.Evaluate(lots, 47500)
	suite.Require().Len(triggers, 2)
	suite.Equal("old", triggers[0].Lot.ID)
	suite.Equal(types.TradeReasonStopLoss, triggers[0].Reason)
	suite.Equal("new", triggers[1].Lot.ID)
	suite.Equal(types.TradeReasonTakeProfit, triggers[1].Reason)
	suite.InDelta(-5.0, triggers[0].PctChange, 1e-9)
}

func (suite *RiskTestSuite) TestNoLotsOrInvalidPrice() {
	suite.Empty(suite.monitor.Evaluate(nil, 100))
	suite.Empty(suite.monitor.Evaluate([]types.Lot{lot("a", 100)}, 0))
}
