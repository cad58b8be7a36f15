// Package config holds the trader configuration: defaults, environment and
// YAML file sources, validation and the JSON schema of the file format.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/internal/version"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/rxtech-lab/argo-bitso/pkg/utils"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	ProviderBitso   = "bitso"
	ProviderBinance = "binance"
)

// ExchangeConfig selects and configures the venue gateway.
type ExchangeConfig struct {
	Provider   string        `yaml:"provider" json:"provider" jsonschema:"title=Provider,enum=bitso,enum=binance,default=bitso" validate:"required,oneof=bitso binance"`
	APIKey     string        `yaml:"api_key" json:"api_key" jsonschema:"title=API Key"`
	APISecret  string        `yaml:"api_secret" json:"api_secret" jsonschema:"title=API Secret"`
	UseStaging bool          `yaml:"use_staging" json:"use_staging" jsonschema:"title=Use Staging,default=true"`
	BaseURL    string        `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,description=Overrides the venue endpoint" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" jsonschema:"title=Timeout" validate:"gt=0"`
	RateLimit  time.Duration `yaml:"rate_limit" json:"rate_limit" jsonschema:"title=Rate Limit,description=Minimum spacing between requests" validate:"gte=0"`
}

// FeeConfig overrides the venue fee schedule when non-zero.
type FeeConfig struct {
	MakerRate float64 `yaml:"maker_rate" json:"maker_rate" jsonschema:"title=Maker Rate" validate:"gte=0,lt=1"`
	TakerRate float64 `yaml:"taker_rate" json:"taker_rate" jsonschema:"title=Taker Rate" validate:"gte=0,lt=1"`
}

// Config is the immutable runtime configuration of the trader.
type Config struct {
	Version            string         `yaml:"version" json:"version" jsonschema:"title=Version,description=Binary version the file was written for"`
	TradingPairs       []string       `yaml:"trading_pairs" json:"trading_pairs" jsonschema:"title=Trading Pairs,description=Books such as eth_mxn" validate:"required,min=1,dive,required"`
	TradeAmount        float64        `yaml:"trade_amount" json:"trade_amount" jsonschema:"title=Trade Amount,description=Quote currency spent per buy,default=100" validate:"gt=0"`
	StopLossPct        float64        `yaml:"stop_loss_pct" json:"stop_loss_pct" jsonschema:"title=Stop Loss Percentage,default=5" validate:"gt=0,lt=100"`
	TakeProfitPct      float64        `yaml:"take_profit_pct" json:"take_profit_pct" jsonschema:"title=Take Profit Percentage,default=10" validate:"gt=0"`
	MaxHistoryLength   int            `yaml:"max_history_length" json:"max_history_length" jsonschema:"title=Max History Length,default=1000" validate:"gt=0"`
	MinHistory         int            `yaml:"min_history" json:"min_history" jsonschema:"title=Min History,description=Samples required before strategy evaluation,default=50" validate:"gte=0"`
	AllocationStrategy string         `yaml:"allocation_strategy" json:"allocation_strategy" jsonschema:"title=Allocation Strategy,enum=first_come_first_served,enum=random,enum=equal_split,default=first_come_first_served"`
	Strategy           string         `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy,enum=ma,enum=rsi,enum=combined,default=combined"`
	DryRun             bool           `yaml:"dry_run" json:"dry_run" jsonschema:"title=Dry Run,default=true"`
	CheckInterval      time.Duration  `yaml:"check_interval" json:"check_interval" jsonschema:"title=Check Interval" validate:"gt=0"`
	PersistEvery       int            `yaml:"persist_every" json:"persist_every" jsonschema:"title=Persist Every,description=Persist history every N samples,default=10" validate:"gt=0"`
	MaxTickerAge       time.Duration  `yaml:"max_ticker_age" json:"max_ticker_age" jsonschema:"title=Max Ticker Age,description=Warn on older tickers; 0 disables" validate:"gte=0"`
	DataDir            string         `yaml:"data_dir" json:"data_dir" jsonschema:"title=Data Directory,default=data" validate:"required"`
	JournalDir         string         `yaml:"journal_dir" json:"journal_dir" jsonschema:"title=Journal Directory,description=Run folders with trades and stats; empty disables"`
	Exchange           ExchangeConfig `yaml:"exchange" json:"exchange"`
	Fees               FeeConfig      `yaml:"fees" json:"fees"`
	Log                logger.Config  `yaml:"log" json:"log"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Version:            version.GetVersion(),
		TradingPairs:       []string{"eth_mxn"},
		TradeAmount:        100,
		StopLossPct:        5,
		TakeProfitPct:      10,
		MaxHistoryLength:   1000,
		MinHistory:         50,
		AllocationStrategy: "first_come_first_served",
		Strategy:           "combined",
		DryRun:             true,
		CheckInterval:      5 * time.Minute,
		PersistEvery:       10,
		MaxTickerAge:       0,
		DataDir:            "data",
		JournalDir:         "",
		Exchange: ExchangeConfig{
			Provider:   ProviderBitso,
			APIKey:     "",
			APISecret:  "",
			UseStaging: true,
			BaseURL:    "",
			Timeout:    30 * time.Second,
			RateLimit:  100 * time.Millisecond,
		},
		Fees: FeeConfig{
			MakerRate: 0,
			TakerRate: 0,
		},
		Log: logger.Config{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads `.env` (when present) into the process environment and
// applies the recognized variables on top of Default.
func LoadFromEnv() (Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromFile reads a YAML config file over Default. Environment variables
// are not applied.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	cfg := Default()
	cfg.Version = ""

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	if err := version.CheckConfigCompatibility(version.GetVersion(), cfg.Version); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads path when given, otherwise the environment.
func Load(path string) (Config, error) {
	if path == "" {
		return LoadFromEnv()
	}

	return LoadFromFile(path)
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	if raw, ok := lookup("TRADING_PAIRS"); ok && strings.TrimSpace(raw) != "" {
		c.TradingPairs = splitList(raw)
	} else if raw, ok := lookup("TRADING_PAIR"); ok && strings.TrimSpace(raw) != "" {
		c.TradingPairs = []string{strings.TrimSpace(raw)}
	}

	floats := []struct {
		key    string
		target *float64
	}{
		{"TRADE_AMOUNT", &c.TradeAmount},
		{"STOP_LOSS_PERCENTAGE", &c.StopLossPct},
		{"TAKE_PROFIT_PERCENTAGE", &c.TakeProfitPct},
	}
	for _, f := range floats {
		raw, ok := lookup(f.key)
		if !ok || raw == "" {
			continue
		}

		value, err := cast.ToFloat64E(strings.TrimSpace(raw))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %s", f.key)
		}

		*f.target = value
	}

	bools := []struct {
		key    string
		target *bool
	}{
		{"DRY_RUN", &c.DryRun},
		{"BITSO_USE_STAGING", &c.Exchange.UseStaging},
	}
	for _, b := range bools {
		raw, ok := lookup(b.key)
		if !ok || raw == "" {
			continue
		}

		value, err := cast.ToBoolE(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %s", b.key)
		}

		*b.target = value
	}

	if raw, ok := lookup("CHECK_INTERVAL_MINUTES"); ok && raw != "" {
		minutes, err := cast.ToFloat64E(strings.TrimSpace(raw))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid CHECK_INTERVAL_MINUTES", err)
		}

		c.CheckInterval = time.Duration(minutes * float64(time.Minute))
	}

	strs := []struct {
		key    string
		target *string
	}{
		{"STRATEGY", &c.Strategy},
		{"FUND_ALLOCATION_STRATEGY", &c.AllocationStrategy},
		{"BITSO_API_KEY", &c.Exchange.APIKey},
		{"BITSO_API_SECRET", &c.Exchange.APISecret},
		{"EXCHANGE_PROVIDER", &c.Exchange.Provider},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FILE", &c.Log.File},
		{"DATA_DIR", &c.DataDir},
		{"JOURNAL_DIR", &c.JournalDir},
	}
	for _, s := range strs {
		if raw, ok := lookup(s.key); ok && raw != "" {
			*s.target = strings.TrimSpace(raw)
		}
	}

	c.Strategy = strings.ToLower(c.Strategy)
	c.AllocationStrategy = strings.ToLower(c.AllocationStrategy)
	c.Exchange.Provider = strings.ToLower(c.Exchange.Provider)

	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// Validate checks field constraints and the pair format.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if _, err := c.Pairs(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if !c.DryRun && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return errors.New(errors.ErrCodeMissingCredentials, "live trading requires exchange API credentials")
	}

	return nil
}

// Pairs returns the configured pairs, normalized and in configured order.
func (c Config) Pairs() ([]types.Pair, error) {
	pairs := make([]types.Pair, 0, len(c.TradingPairs))
	seen := make(map[types.Pair]bool, len(c.TradingPairs))

	for _, raw := range c.TradingPairs {
		pair, err := types.ParsePair(raw)
		if err != nil {
			return nil, err
		}

		if seen[pair] {
			continue
		}

		seen[pair] = true
		pairs = append(pairs, pair)
	}

	return pairs, nil
}

// Schema returns the JSON schema of the config file.
func Schema() (string, error) {
	return utils.GetSchemaFromConfig(Config{})
}
