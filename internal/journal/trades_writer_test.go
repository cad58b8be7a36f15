package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bitso/internal/ledger"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/stretchr/testify/suite"
)

var _ ledger.TradeSink = (*TradesWriter)(nil)

type TradesWriterTestSuite struct {
	suite.Suite
	path string
}

func TestTradesWriterSuite(t *testing.T) {
	suite.Run(t, new(TradesWriterTestSuite))
}

func (suite *TradesWriterTestSuite) SetupTest() {
	suite.path = filepath.Join(suite.T().TempDir(), "run_1", TradesFileName)
}

func (suite *TradesWriterTestSuite) newWriter() *TradesWriter {
	writer := NewTradesWriter(suite.path, logger.NewNopLogger())
	suite.Require().NoError(writer.Initialize())

	return writer
}

func (suite *TradesWriterTestSuite) TestNotInitialized() {
	writer := NewTradesWriter(suite.path, logger.NewNopLogger())

	err := writer.RecordTrade(types.TradeRecord{ID: "x"})
	suite.Require().Error(err)
	suite.Contains(err.Error(), "writer not initialized")

	suite.Error(writer.Flush())

	_, err = writer.Count()
	suite.Error(err)
	suite.NoError(writer.Close())
}

func (suite *TradesWriterTestSuite) TestRecordTradesFromLedger() {
	writer := suite.newWriter()
	defer writer.Close()

	at := time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)
	l := ledger.New(logger.NewNopLogger(), ledger.Config{
		TakerFee: 0.0065,
		Sink:     writer,
		Now:      func() time.Time { return at },
	})

	_, err := l.Open("ETH", 0.02, 50000, 0)
	suite.Require().NoError(err)

	at = at.Add(time.Minute)
	_, err = l.Close("ETH", 0.02, 51000, 0.0065)
	suite.Require().NoError(err)

	count, err := writer.Count()
	suite.Require().NoError(err)
	suite.Equal(2, count)

	pnl, err := writer.TotalPnL()
	suite.Require().NoError(err)
	suite.InDelta(13.37, pnl, 1e-9)

	fees, err := writer.TotalFees()
	suite.Require().NoError(err)
	suite.InDelta(6.63, fees, 1e-9)

	suite.FileExists(writer.OutputPath())

	trades, err := ReadTrades(writer.OutputPath())
	suite.Require().NoError(err)
	suite.Require().Len(trades, 2)
	suite.Equal(types.TradeActionBuy, trades[0].Action)
	suite.Equal(types.TradeActionSell, trades[1].Action)
	suite.Equal("ETH", trades[1].Asset)
	suite.Equal(types.TradeReasonSignal, trades[1].Reason)
	suite.True(at.Equal(trades[1].Timestamp))
}

func (suite *TradesWriterTestSuite) TestEmptyAggregates() {
	writer := suite.newWriter()
	defer writer.Close()

	pnl, err := writer.TotalPnL()
	suite.Require().NoError(err)
	suite.Equal(0.0, pnl)

	suite.Require().NoError(writer.Flush())
	suite.FileExists(suite.path)
}

func (suite *TradesWriterTestSuite) TestReopenLoadsExistingJournal() {
	writer := suite.newWriter()
	suite.Require().NoError(writer.RecordTrade(types.TradeRecord{
		ID:        "t-1",
		Action:    types.TradeActionBuy,
		Asset:     "SOL",
		Amount:    1,
		Price:     3000,
		Timestamp: time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC),
		Reason:    types.TradeReasonReconciliation,
	}))
	suite.Require().NoError(writer.Close())

	reopened := suite.newWriter()
	defer reopened.Close()

	count, err := reopened.Count()
	suite.Require().NoError(err)
	suite.Equal(1, count)
}
