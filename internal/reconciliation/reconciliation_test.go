package reconciliation

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bitso/internal/ledger"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/pricebuffer"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type stubBalances struct {
	balances types.Balances
	err      error
	calls    int
}

func (s *stubBalances) GetBalance(_ context.Context) (types.Balances, error) {
	s.calls++

	return s.balances, s.err
}

type ReconciliationTestSuite struct {
	suite.Suite
	ledger   *ledger.Ledger
	buffer   *pricebuffer.Buffer
	balances *stubBalances
	manager  *Manager
	ethMXN   types.Pair
}

func TestReconciliationSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationTestSuite))
}

func (suite *ReconciliationTestSuite) SetupTest() {
	log := logger.NewNopLogger()
	suite.ethMXN = types.Pair("eth_mxn")
	suite.ledger = ledger.New(log, ledger.Config{TakerFee: 0.0065})
	suite.buffer = pricebuffer.New(100)
	suite.balances = &stubBalances{}
	suite.manager = NewManager(suite.balances, suite.ledger, suite.buffer, []types.Pair{suite.ethMXN}, log)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 12; i++ {
		suite.Require().NoError(suite.buffer.AppendPrice(suite.ethMXN, float64(i)*1000, start.Add(time.Duration(i)*time.Minute)))
	}
}

func (suite *ReconciliationTestSuite) TestWithinToleranceNoChange() {
	lot, err := suite.ledger.Open("ETH", 1.0, 50000, 0.0065)
	suite.Require().NoError(err)

	suite.balances.balances = types.Balances{"ETH": 1.0005}

	report, err := suite.manager.Reconcile(context.Background())
	suite.Require().NoError(err)
	suite.False(report.Changed())

	lots := suite.ledger.Lots("ETH")
	suite.Require().Len(lots, 1)
	suite.Equal(lot.ID, lots[0].ID)
	suite.Equal(1.0, lots[0].Amount)
}

func (suite *ReconciliationTestSuite) TestMismatchClearsAndReopensAtRecentMean() {
	_, err := suite.ledger.Open("ETH", 0.6, 50000, 0.0065)
	suite.Require().NoError(err)
	_, err = suite.ledger.Open("ETH", 0.4, 52000, 0.0065)
	suite.Require().NoError(err)

	suite.balances.balances = types.Balances{"ETH": 1.01}

	report, err := suite.manager.Reconcile(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(report.Diffs, 1)

	diff := report.Diffs[0]
	suite.Equal("ETH", diff.Asset)
	suite.Equal(2, diff.LotsCleared)
	suite.True(diff.Reopened)
	suite.InDelta(1.0, diff.LedgerAmount, 1e-12)
	suite.InDelta(0.01, diff.Difference, 1e-12)
	suite.InDelta(7500.0, diff.EntryPrice, 1e-9)

	lots := suite.ledger.Lots("ETH")
	suite.Require().Len(lots, 1)
	suite.Equal(1.01, lots[0].Amount)
	suite.InDelta(7500.0, lots[0].EntryPrice, 1e-9)
	suite.Equal(0.0, lots[0].FeeRate)

	trades := suite.ledger.Trades()
	suite.Equal(types.TradeReasonReconciliation, trades[len(trades)-1].Reason)
	suite.Equal(0.0, suite.ledger.TotalRealizedPnL())
}

func (suite *ReconciliationTestSuite) TestExchangeEmptyClearsOnly() {
	_, err := suite.ledger.Open("ETH", 0.5, 50000, 0.0065)
	suite.Require().NoError(err)

	suite.balances.balances = types.Balances{"MXN": 1000}

	report, err := suite.manager.Reconcile(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(report.Diffs, 1)
	suite.False(report.Diffs[0].Reopened)
	suite.Equal(0.0, suite.ledger.AvailableAmount("ETH"))
}

func (suite *ReconciliationTestSuite) TestNoPriceHistoryLeavesFlat() {
	solMXN := types.Pair("sol_mxn")
	manager := NewManager(suite.balances, suite.ledger, suite.buffer, []types.Pair{solMXN}, logger.NewNopLogger())
	suite.balances.balances = types.Balances{"SOL": 3}

	report, err := manager.Reconcile(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(report.Diffs, 1)
	suite.False(report.Diffs[0].Reopened)
	suite.Empty(suite.ledger.Lots("SOL"))
}

func (suite *ReconciliationTestSuite) TestUntrackedHoldingsAdopted() {
	suite.balances.balances = types.Balances{"ETH": 0.25}

	report, err := suite.manager.Reconcile(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(report.Diffs, 1)
	suite.Equal(0, report.Diffs[0].LotsCleared)
	suite.Equal(0.25, suite.ledger.AvailableAmount("ETH"))
}

func (suite *ReconciliationTestSuite) TestDuplicateAssetsReconciledOnce() {
	manager := NewManager(suite.balances, suite.ledger, suite.buffer,
		[]types.Pair{suite.ethMXN, types.Pair("eth_usd")}, logger.NewNopLogger())
	suite.balances.balances = types.Balances{"ETH": 0.5}

	report, err := manager.Reconcile(context.Background())
	suite.Require().NoError(err)
	suite.Len(report.Diffs, 1)
	suite.Len(suite.ledger.Lots("ETH"), 1)
}

func (suite *ReconciliationTestSuite) TestBalanceFailure() {
	_, err := suite.ledger.Open("ETH", 0.5, 50000, 0.0065)
	suite.Require().NoError(err)
	suite.balances.err = stderrors.New("timeout")

	report, err := suite.manager.Reconcile(context.Background())
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeReconciliationError, errors.GetCode(err))
	suite.False(report.Changed())
	suite.Equal(0.5, suite.ledger.AvailableAmount("ETH"))
}
