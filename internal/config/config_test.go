package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

var envKeys = []string{
	"TRADING_PAIRS", "TRADING_PAIR", "TRADE_AMOUNT", "STOP_LOSS_PERCENTAGE",
	"TAKE_PROFIT_PERCENTAGE", "DRY_RUN", "STRATEGY", "FUND_ALLOCATION_STRATEGY",
	"CHECK_INTERVAL_MINUTES", "BITSO_API_KEY", "BITSO_API_SECRET",
	"BITSO_USE_STAGING", "EXCHANGE_PROVIDER", "LOG_LEVEL", "LOG_FILE",
	"DATA_DIR", "JOURNAL_DIR",
}

func (suite *ConfigTestSuite) SetupTest() {
	for _, key := range envKeys {
		suite.T().Setenv(key, "")
	}
}

func (suite *ConfigTestSuite) writeFile(content string) string {
	path := filepath.Join(suite.T().TempDir(), "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	return path
}

func (suite *ConfigTestSuite) TestDefault() {
	cfg := Default()

	suite.Equal([]string{"eth_mxn"}, cfg.TradingPairs)
	suite.Equal(100.0, cfg.TradeAmount)
	suite.Equal(5.0, cfg.StopLossPct)
	suite.Equal(10.0, cfg.TakeProfitPct)
	suite.Equal(1000, cfg.MaxHistoryLength)
	suite.Equal(50, cfg.MinHistory)
	suite.Equal("first_come_first_served", cfg.AllocationStrategy)
	suite.Equal("combined", cfg.Strategy)
	suite.True(cfg.DryRun)
	suite.Equal(5*time.Minute, cfg.CheckInterval)
	suite.Equal(10, cfg.PersistEvery)
	suite.Equal(ProviderBitso, cfg.Exchange.Provider)
	suite.Equal(30*time.Second, cfg.Exchange.Timeout)
	suite.Equal(100*time.Millisecond, cfg.Exchange.RateLimit)
	suite.NoError(cfg.Validate())
}

func (suite *ConfigTestSuite) TestLoadFromEnv() {
	suite.T().Setenv("TRADING_PAIRS", "eth_mxn, LTC_MXN ,")
	suite.T().Setenv("TRADE_AMOUNT", "250.5")
	suite.T().Setenv("STOP_LOSS_PERCENTAGE", "3")
	suite.T().Setenv("TAKE_PROFIT_PERCENTAGE", "8")
	suite.T().Setenv("DRY_RUN", "False")
	suite.T().Setenv("STRATEGY", "RSI")
	suite.T().Setenv("FUND_ALLOCATION_STRATEGY", "equal_split")
	suite.T().Setenv("CHECK_INTERVAL_MINUTES", "1")
	suite.T().Setenv("BITSO_API_KEY", "key")
	suite.T().Setenv("BITSO_API_SECRET", "secret")
	suite.T().Setenv("BITSO_USE_STAGING", "false")
	suite.T().Setenv("LOG_LEVEL", "debug")
	suite.T().Setenv("DATA_DIR", "/tmp/prices")

	cfg, err := LoadFromEnv()
	suite.Require().NoError(err)

	suite.Equal([]string{"eth_mxn", "LTC_MXN"}, cfg.TradingPairs)
	suite.Equal(250.5, cfg.TradeAmount)
	suite.Equal(3.0, cfg.StopLossPct)
	suite.Equal(8.0, cfg.TakeProfitPct)
	suite.False(cfg.DryRun)
	suite.Equal("rsi", cfg.Strategy)
	suite.Equal("equal_split", cfg.AllocationStrategy)
	suite.Equal(time.Minute, cfg.CheckInterval)
	suite.Equal("key", cfg.Exchange.APIKey)
	suite.Equal("secret", cfg.Exchange.APISecret)
	suite.False(cfg.Exchange.UseStaging)
	suite.Equal("debug", cfg.Log.Level)
	suite.Equal("/tmp/prices", cfg.DataDir)

	pairs, err := cfg.Pairs()
	suite.Require().NoError(err)
	suite.Equal([]types.Pair{"eth_mxn", "ltc_mxn"}, pairs)
}

func (suite *ConfigTestSuite) TestLoadFromEnvSinglePair() {
	suite.T().Setenv("TRADING_PAIR", "sol_mxn")

	cfg, err := LoadFromEnv()
	suite.Require().NoError(err)
	suite.Equal([]string{"sol_mxn"}, cfg.TradingPairs)
}

func (suite *ConfigTestSuite) TestLoadFromEnvInvalidNumber() {
	suite.T().Setenv("TRADE_AMOUNT", "lots")

	_, err := LoadFromEnv()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
	suite.Contains(err.Error(), "TRADE_AMOUNT")
}

func (suite *ConfigTestSuite) TestLoadFromEnvLiveWithoutCredentials() {
	suite.T().Setenv("DRY_RUN", "false")

	_, err := LoadFromEnv()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingCredentials))
}

func (suite *ConfigTestSuite) TestLoadFromFile() {
	path := suite.writeFile(strings.Join([]string{
		"version: v0.4.2",
		"trading_pairs: [eth_mxn, avax_mxn]",
		"trade_amount: 500",
		"check_interval: 90s",
		"max_ticker_age: 2m",
		"allocation_strategy: random",
		"exchange:",
		"  provider: binance",
		"  api_key: k",
		"  api_secret: s",
		"fees:",
		"  taker_rate: 0.001",
	}, "\n"))

	cfg, err := LoadFromFile(path)
	suite.Require().NoError(err)

	suite.Equal([]string{"eth_mxn", "avax_mxn"}, cfg.TradingPairs)
	suite.Equal(500.0, cfg.TradeAmount)
	suite.Equal(90*time.Second, cfg.CheckInterval)
	suite.Equal(2*time.Minute, cfg.MaxTickerAge)
	suite.Equal("random", cfg.AllocationStrategy)
	suite.Equal(ProviderBinance, cfg.Exchange.Provider)
	suite.Equal(0.001, cfg.Fees.TakerRate)
	// untouched fields keep their defaults
	suite.Equal(5.0, cfg.StopLossPct)
	suite.Equal(30*time.Second, cfg.Exchange.Timeout)
}

func (suite *ConfigTestSuite) TestLoadFromFileVersionMismatch() {
	path := suite.writeFile("version: 9.0.0\ntrading_pairs: [eth_mxn]\n")

	_, err := LoadFromFile(path)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeVersionMismatch))
}

func (suite *ConfigTestSuite) TestLoadFromFileErrors() {
	_, err := LoadFromFile(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = LoadFromFile(suite.writeFile("trading_pairs: [eth_mxn\n"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestValidate() {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.ErrorCode
	}{
		{"no pairs", func(c *Config) { c.TradingPairs = nil }, errors.ErrCodeInvalidConfiguration},
		{"malformed pair", func(c *Config) { c.TradingPairs = []string{"ethmxn"} }, errors.ErrCodeInvalidConfiguration},
		{"zero trade amount", func(c *Config) { c.TradeAmount = 0 }, errors.ErrCodeInvalidConfiguration},
		{"stop loss too large", func(c *Config) { c.StopLossPct = 100 }, errors.ErrCodeInvalidConfiguration},
		{"unknown provider", func(c *Config) { c.Exchange.Provider = "kraken" }, errors.ErrCodeInvalidConfiguration},
		{"bad base url", func(c *Config) { c.Exchange.BaseURL = "not a url" }, errors.ErrCodeInvalidConfiguration},
		{"zero interval", func(c *Config) { c.CheckInterval = 0 }, errors.ErrCodeInvalidConfiguration},
		{"fee rate out of range", func(c *Config) { c.Fees.TakerRate = 1.5 }, errors.ErrCodeInvalidConfiguration},
		{"live without secret", func(c *Config) {
			c.DryRun = false
			c.Exchange.APIKey = "k"
		}, errors.ErrCodeMissingCredentials},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			cfg := Default()
			tc.mutate(&cfg)

			err := cfg.Validate()
			suite.Require().Error(err)
			suite.Equal(tc.code, errors.GetCode(err))
		})
	}
}

func (suite *ConfigTestSuite) TestPairsDeduplicates() {
	cfg := Default()
	cfg.TradingPairs = []string{"eth_mxn", "ETH_MXN", "sol_mxn"}

	pairs, err := cfg.Pairs()
	suite.Require().NoError(err)
	suite.Equal([]types.Pair{"eth_mxn", "sol_mxn"}, pairs)
}

func (suite *ConfigTestSuite) TestSchema() {
	schema, err := Schema()
	suite.Require().NoError(err)
	suite.Contains(schema, "trading_pairs")
	suite.Contains(schema, "allocation_strategy")
	suite.Contains(schema, "first_come_first_served")
}
