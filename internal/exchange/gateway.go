// Package exchange implements the venue gateways the orchestrator trades
// through: Bitso over its signed REST API and Binance spot through go-binance.
package exchange

import (
	"context"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-bitso/internal/config"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/rxtech-lab/argo-bitso/pkg/utils"
)

// Gateway is the exchange surface used by the trading core.
type Gateway interface {
	// GetTicker returns the last traded price of a pair
	GetTicker(ctx context.Context, pair types.Pair) (types.Ticker, error)
	// GetAccountStatus reports whether the account may trade
	GetAccountStatus(ctx context.Context) (types.AccountStatus, error)
	// GetBalance returns available amounts keyed by upper-case currency
	GetBalance(ctx context.Context) (types.Balances, error)
	// PlaceOrder submits an order. A rejected order returns a result with
	// Success false and an error carrying the exchange message.
	PlaceOrder(ctx context.Context, order types.OrderRequest) (types.OrderResult, error)
}

type ProviderType string

const (
	ProviderBitso   ProviderType = config.ProviderBitso
	ProviderBinance ProviderType = config.ProviderBinance
)

type ProviderInfo struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description"`
	Fees        FeeSchedule `json:"fees"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderBitso: {
		Name:        string(ProviderBitso),
		DisplayName: "Bitso",
		Description: "Bitso REST API v3, staging or production",
		Fees:        FeeSchedule{MakerRate: 0.005, TakerRate: 0.0065},
	},
	ProviderBinance: {
		Name:        string(ProviderBinance),
		DisplayName: "Binance Spot",
		Description: "Binance spot market, testnet or live",
		Fees:        FeeSchedule{MakerRate: 0.001, TakerRate: 0.001},
	},
}

// GetSupportedProviders returns the registered provider names, sorted.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeUnsupportedProvider, "unsupported exchange provider: %s", providerName)
	}

	return info, nil
}

// GetProviderConfigSchema returns the JSON schema of a provider's configuration.
func GetProviderConfigSchema(providerName string) (string, error) {
	switch ProviderType(providerName) {
	case ProviderBitso:
		return utils.GetSchemaFromConfig(BitsoConfig{})
	case ProviderBinance:
		return utils.GetSchemaFromConfig(BinanceConfig{})
	default:
		return "", errors.Newf(errors.ErrCodeUnsupportedProvider, "unsupported exchange provider: %s", providerName)
	}
}

// NewGateway builds the gateway selected by the exchange configuration.
func NewGateway(cfg config.ExchangeConfig, log *logger.Logger) (Gateway, error) {
	switch ProviderType(cfg.Provider) {
	case ProviderBitso:
		return NewBitsoGateway(BitsoConfig{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    cfg.BaseURL,
			UseStaging: cfg.UseStaging,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
		}, log)
	case ProviderBinance:
		return NewBinanceGateway(BinanceConfig{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.APISecret,
			BaseURL:    cfg.BaseURL,
			UseTestnet: cfg.UseStaging,
		}, log)
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedProvider, "unsupported exchange provider: %s", cfg.Provider)
	}
}

func defaultDuration(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}

	return value
}
