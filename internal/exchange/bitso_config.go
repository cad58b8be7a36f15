package exchange

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
)

const (
	BitsoStagingURL    = "https://stage.bitso.com/api/v3"
	BitsoProductionURL = "https://bitso.com/api/v3"

	// bitsoSignaturePrefix is the path prefix covered by request signatures.
	bitsoSignaturePrefix = "/api/v3"

	defaultBitsoTimeout   = 30 * time.Second
	defaultBitsoRateLimit = 100 * time.Millisecond
)

// BitsoConfig contains the credentials and transport settings for Bitso.
type BitsoConfig struct {
	APIKey     string        `json:"apiKey" jsonschema:"title=API Key,description=Bitso API key" validate:"required"`
	APISecret  string        `json:"apiSecret" jsonschema:"title=API Secret,description=Bitso API secret" validate:"required"`
	BaseURL    string        `json:"baseUrl" jsonschema:"title=Base URL,description=Overrides the staging/production endpoint" validate:"omitempty,url"`
	UseStaging bool          `json:"useStaging" jsonschema:"title=Use Staging,default=true"`
	Timeout    time.Duration `json:"timeout" jsonschema:"title=Timeout"`
	RateLimit  time.Duration `json:"rateLimit" jsonschema:"title=Rate Limit,description=Minimum spacing between requests"`
}

// Validate validates the BitsoConfig struct.
func (c *BitsoConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeMissingCredentials, "invalid bitso config", err)
	}

	return nil
}

// Endpoint returns the API root the gateway talks to.
func (c *BitsoConfig) Endpoint() string {
	switch {
	case c.BaseURL != "":
		return c.BaseURL
	case c.UseStaging:
		return BitsoStagingURL
	default:
		return BitsoProductionURL
	}
}
