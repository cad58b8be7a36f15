package exchange

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
)

// BinanceConfig contains configuration for Binance spot trading.
type BinanceConfig struct {
	APIKey     string `json:"apiKey" jsonschema:"title=API Key,description=Binance API key" validate:"required"`
	APISecret  string `json:"apiSecret" jsonschema:"title=Secret Key,description=Binance API secret key" validate:"required"`
	BaseURL    string `json:"baseUrl" jsonschema:"title=Base URL,description=Overrides the testnet/live endpoint" validate:"omitempty,url"`
	UseTestnet bool   `json:"useTestnet" jsonschema:"title=Use Testnet"`
}

// Validate validates the BinanceConfig struct.
func (c *BinanceConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeMissingCredentials, "invalid binance config", err)
	}

	return nil
}
