package exchange

import (
	"testing"

	"github.com/rxtech-lab/argo-bitso/internal/config"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type GatewayTestSuite struct {
	suite.Suite
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewayTestSuite))
}

func (suite *GatewayTestSuite) TestGetSupportedProviders() {
	suite.Equal([]string{"binance", "bitso"}, GetSupportedProviders())
}

func (suite *GatewayTestSuite) TestGetProviderInfo() {
	info, err := GetProviderInfo("bitso")
	suite.Require().NoError(err)
	suite.Equal("Bitso", info.DisplayName)
	suite.Equal(0.0065, info.Fees.TakerRate)

	_, err = GetProviderInfo("kraken")
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeUnsupportedProvider, errors.GetCode(err))
}

func (suite *GatewayTestSuite) TestGetProviderConfigSchema() {
	schema, err := GetProviderConfigSchema("bitso")
	suite.Require().NoError(err)
	suite.Contains(schema, "apiKey")
	suite.Contains(schema, "useStaging")

	schema, err = GetProviderConfigSchema("binance")
	suite.Require().NoError(err)
	suite.Contains(schema, "useTestnet")

	_, err = GetProviderConfigSchema("kraken")
	suite.Require().Error(err)
}

func (suite *GatewayTestSuite) TestNewGateway() {
	log := logger.NewNopLogger()

	gateway, err := NewGateway(config.ExchangeConfig{
		Provider:   "bitso",
		APIKey:     "key",
		APISecret:  "secret",
		UseStaging: true,
	}, log)
	suite.Require().NoError(err)
	suite.IsType(&BitsoGateway{}, gateway)

	gateway, err = NewGateway(config.ExchangeConfig{
		Provider:  "binance",
		APIKey:    "key",
		APISecret: "secret",
	}, log)
	suite.Require().NoError(err)
	suite.IsType(&BinanceGateway{}, gateway)

	_, err = NewGateway(config.ExchangeConfig{Provider: "bitso"}, log)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeMissingCredentials, errors.GetCode(err))

	_, err = NewGateway(config.ExchangeConfig{Provider: "kraken", APIKey: "k", APISecret: "s"}, log)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeUnsupportedProvider, errors.GetCode(err))
}

func (suite *GatewayTestSuite) TestResolveFees() {
	tests := []struct {
		name     string
		provider string
		override config.FeeConfig
		expected FeeSchedule
	}{
		{"bitso defaults", "bitso", config.FeeConfig{}, FeeSchedule{MakerRate: 0.005, TakerRate: 0.0065}},
		{"binance defaults", "binance", config.FeeConfig{}, FeeSchedule{MakerRate: 0.001, TakerRate: 0.001}},
		{"taker override", "bitso", config.FeeConfig{TakerRate: 0.004}, FeeSchedule{MakerRate: 0.005, TakerRate: 0.004}},
		{"unknown provider", "kraken", config.FeeConfig{MakerRate: 0.002}, FeeSchedule{MakerRate: 0.002}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, ResolveFees(tc.provider, tc.override))
		})
	}
}

func (suite *GatewayTestSuite) TestFeeInclusivePrice() {
	fees := FeeSchedule{TakerRate: 0.01}
	suite.InDelta(50500.0, fees.FeeInclusivePrice(50000), 1e-9)
	suite.Equal(100.0, FeeSchedule{}.FeeInclusivePrice(100))
}
