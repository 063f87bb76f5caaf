package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Lookup sources.
const (
	LookupPostgres = "postgres"
	LookupFile     = "file"
)

// Quote providers.
const (
	ProviderYahoo        = "yahoo"
	ProviderAlphaVantage = "alphavantage"
)

// DBConfig holds connection settings for the reference-data database.
type DBConfig struct {
	Host     string `mapstructure:"lookup_db_host"`
	Port     int    `mapstructure:"lookup_db_port"`
	Name     string `mapstructure:"lookup_db_name"`
	User     string `mapstructure:"lookup_db_user"`
	Password string `mapstructure:"lookup_db_password"`
	SSLMode  string `mapstructure:"lookup_db_sslmode"`
}

// FilterConfig holds the instrument selection predicate.
type FilterConfig struct {
	ExcludeTickers []string `mapstructure:"filter_exclude_tickers"`
	DisplayName    string   `mapstructure:"filter_display_name"`
	ListedOnly     bool     `mapstructure:"filter_listed_only"`
}

// Config holds all configuration for the price fetcher.
type Config struct {
	// Instrument lookup
	LookupSource string `mapstructure:"lookup_source"`
	LookupTable  string `mapstructure:"lookup_table"`
	LookupFile   string `mapstructure:"lookup_file"`
	LookupLimit  int    `mapstructure:"lookup_limit"`

	DBConfig     `mapstructure:",squash"`
	FilterConfig `mapstructure:",squash"`

	// Quote provider
	QuoteProvider       string        `mapstructure:"quote_provider"`
	YahooBaseURL        string        `mapstructure:"yahoo_base_url"`
	AlphavantageAPIKey  string        `mapstructure:"alphavantage_api_key"`
	AlphavantageBaseURL string        `mapstructure:"alphavantage_base_url"`
	QuoteRateLimit      float64       `mapstructure:"quote_rate_limit"`
	HTTPTimeout         time.Duration `mapstructure:"http_timeout"`

	// Run
	StartDate        string `mapstructure:"start_date"`
	OutputPath       string `mapstructure:"output_path"`
	FetchConcurrency int    `mapstructure:"fetch_concurrency"`
	LogLevel         string `mapstructure:"log_level"`
}

// keys maps every configuration key to its environment variable.
var keys = map[string]string{
	"lookup_source":          "LOOKUP_SOURCE",
	"lookup_table":           "LOOKUP_TABLE",
	"lookup_file":            "LOOKUP_FILE",
	"lookup_limit":           "LOOKUP_LIMIT",
	"lookup_db_host":         "LOOKUP_DB_HOST",
	"lookup_db_port":         "LOOKUP_DB_PORT",
	"lookup_db_name":         "LOOKUP_DB_NAME",
	"lookup_db_user":         "LOOKUP_DB_USER",
	"lookup_db_password":     "LOOKUP_DB_PASSWORD",
	"lookup_db_sslmode":      "LOOKUP_DB_SSLMODE",
	"filter_exclude_tickers": "FILTER_EXCLUDE_TICKERS",
	"filter_display_name":    "FILTER_DISPLAY_NAME",
	"filter_listed_only":     "FILTER_LISTED_ONLY",
	"quote_provider":         "QUOTE_PROVIDER",
	"yahoo_base_url":         "YAHOO_BASE_URL",
	"alphavantage_api_key":   "ALPHAVANTAGE_API_KEY",
	"alphavantage_base_url":  "ALPHAVANTAGE_BASE_URL",
	"quote_rate_limit":       "QUOTE_RATE_LIMIT",
	"http_timeout":           "HTTP_TIMEOUT",
	"start_date":             "START_DATE",
	"output_path":            "OUTPUT_PATH",
	"fetch_concurrency":      "FETCH_CONCURRENCY",
	"log_level":              "LOG_LEVEL",
}

// Load reads configuration from environment variables and optional config file.
// Environment variables take precedence over config file values.
//
// The lookup database password (LOOKUP_DB_PASSWORD) and user are required
// when LOOKUP_SOURCE is postgres; ALPHAVANTAGE_API_KEY is required when
// QUOTE_PROVIDER is alphavantage. Everything else has a default.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("lookup_source", LookupPostgres)
	v.SetDefault("lookup_table", "instruments")
	v.SetDefault("lookup_file", "instruments.yaml")
	v.SetDefault("lookup_limit", 10)
	v.SetDefault("lookup_db_host", "localhost")
	v.SetDefault("lookup_db_port", 5432)
	v.SetDefault("lookup_db_name", "broker_config")
	v.SetDefault("lookup_db_sslmode", "prefer")
	v.SetDefault("filter_exclude_tickers", []string{"LOCK"})
	v.SetDefault("filter_display_name", "Inc")
	v.SetDefault("filter_listed_only", true)
	v.SetDefault("quote_provider", ProviderYahoo)
	v.SetDefault("yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("alphavantage_base_url", "https://www.alphavantage.co/query")
	v.SetDefault("quote_rate_limit", 0)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("start_date", "2023-10-26")
	v.SetDefault("output_path", "stock_prices_data.csv")
	v.SetDefault("fetch_concurrency", 1)
	v.SetDefault("log_level", "info")

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.pricefetcher")
	_ = v.ReadInConfig()

	// An empty variable is a value: FILTER_DISPLAY_NAME="" disables the filter.
	v.AllowEmptyEnv(true)
	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	var missing []string

	switch c.LookupSource {
	case LookupPostgres:
		if c.DBConfig.User == "" {
			missing = append(missing, "LOOKUP_DB_USER")
		}
		if c.DBConfig.Password == "" {
			missing = append(missing, "LOOKUP_DB_PASSWORD")
		}
	case LookupFile:
		if c.LookupFile == "" {
			missing = append(missing, "LOOKUP_FILE")
		}
	default:
		return fmt.Errorf("unknown lookup source %q", c.LookupSource)
	}

	switch c.QuoteProvider {
	case ProviderYahoo:
	case ProviderAlphaVantage:
		if c.AlphavantageAPIKey == "" {
			missing = append(missing, "ALPHAVANTAGE_API_KEY")
		}
	default:
		return fmt.Errorf("unknown quote provider %q", c.QuoteProvider)
	}

	if c.OutputPath == "" {
		missing = append(missing, "OUTPUT_PATH")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.LookupLimit < 0 {
		return fmt.Errorf("lookup_limit must be >= 0, got %d", c.LookupLimit)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch_concurrency must be >= 1, got %d", c.FetchConcurrency)
	}
	if c.QuoteRateLimit < 0 {
		return fmt.Errorf("quote_rate_limit must be >= 0, got %g", c.QuoteRateLimit)
	}

	return nil
}
