package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Ledger connection
	RPCURL          string
	ChainID         int64
	ConfirmInterval time.Duration
	ConfirmAttempts int
	GasLimitFallback uint64

	// Contract addresses
	ConditionalTokensAddress string
	LMSRFactoryAddress       string

	// Collateral token
	CollateralAddress  string
	CollateralSymbol   string
	CollateralDecimals int

	// Trading
	TradeSlippage float64

	// Collateral breaker guarding trade submission
	BreakerCheckInterval   time.Duration
	BreakerTradeMultiplier float64
	BreakerMinBalance      float64
	BreakerHysteresis      float64

	// Signing identities. Explicit keys win; otherwise accounts are derived
	// deterministically from DevAccountSeed per role+index.
	OperatorKey    string
	OracleKey      string
	TraderKeys     []string
	DevAccountSeed string

	// Market registry storage
	StorageMode    string // "file" or "postgres"
	MarketFilePath string
	PostgresHost   string
	PostgresPort   string
	PostgresUser   string
	PostgresPass   string
	PostgresDB     string
	PostgresSSL    string

	// Price feed
	PriceFeedInterval time.Duration
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		RPCURL:           getEnvOrDefault("LEDGER_RPC_URL", "http://127.0.0.1:8545"),
		ChainID:          int64(getIntOrDefault("LEDGER_CHAIN_ID", 1337)),
		ConfirmInterval:  getDurationOrDefault("LEDGER_CONFIRM_INTERVAL", 2*time.Second),
		ConfirmAttempts:  getIntOrDefault("LEDGER_CONFIRM_ATTEMPTS", 60),
		GasLimitFallback: uint64(getIntOrDefault("LEDGER_GAS_LIMIT_FALLBACK", 500000)),

		ConditionalTokensAddress: getEnvOrDefault("CONDITIONAL_TOKENS_ADDRESS",
			"0xCfEB869F69431e42cdB54A4F4f105C19C080A601"),
		LMSRFactoryAddress: getEnvOrDefault("LMSR_FACTORY_ADDRESS",
			"0x9561C133DD8580860B6b7E504bC5Aa500f0f06a7"),

		CollateralAddress:  os.Getenv("COLLATERAL_TOKEN_ADDRESS"),
		CollateralSymbol:   getEnvOrDefault("COLLATERAL_TOKEN_SYMBOL", "WETH9"),
		CollateralDecimals: getIntOrDefault("COLLATERAL_TOKEN_DECIMALS", 18),

		TradeSlippage: getFloat64OrDefault("TRADE_SLIPPAGE", 0.01),

		BreakerCheckInterval:   getDurationOrDefault("BREAKER_CHECK_INTERVAL", 30*time.Second),
		BreakerTradeMultiplier: getFloat64OrDefault("BREAKER_TRADE_MULTIPLIER", 2.0),
		BreakerMinBalance:      getFloat64OrDefault("BREAKER_MIN_BALANCE", 1.0),
		BreakerHysteresis:      getFloat64OrDefault("BREAKER_HYSTERESIS", 1.5),

		OperatorKey:    os.Getenv("OPERATOR_PRIVATE_KEY"),
		OracleKey:      os.Getenv("ORACLE_PRIVATE_KEY"),
		TraderKeys:     getCSV("TRADER_PRIVATE_KEYS"),
		DevAccountSeed: getEnvOrDefault("DEV_ACCOUNT_SEED", "predmarket-dev-accounts"),

		StorageMode:    getEnvOrDefault("STORAGE_MODE", "file"),
		MarketFilePath: getEnvOrDefault("MARKET_FILE_PATH", "markets.json"),
		PostgresHost:   getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:   getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser:   getEnvOrDefault("POSTGRES_USER", "predmarket"),
		PostgresPass:   getEnvOrDefault("POSTGRES_PASSWORD", "predmarket123"),
		PostgresDB:     getEnvOrDefault("POSTGRES_DB", "predmarket"),
		PostgresSSL:    getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		PriceFeedInterval: getDurationOrDefault("PRICE_FEED_INTERVAL", 5*time.Second),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("LEDGER_RPC_URL cannot be empty")
	}

	if c.ConditionalTokensAddress == "" {
		return fmt.Errorf("CONDITIONAL_TOKENS_ADDRESS cannot be empty")
	}

	if c.LMSRFactoryAddress == "" {
		return fmt.Errorf("LMSR_FACTORY_ADDRESS cannot be empty")
	}

	if c.TradeSlippage < 0 || c.TradeSlippage >= 1.0 {
		return fmt.Errorf("TRADE_SLIPPAGE must be in [0, 1.0), got %f", c.TradeSlippage)
	}

	if c.CollateralDecimals < 0 || c.CollateralDecimals > 36 {
		return fmt.Errorf("COLLATERAL_TOKEN_DECIMALS must be in [0, 36], got %d", c.CollateralDecimals)
	}

	if c.StorageMode != "file" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'file' or 'postgres', got %q", c.StorageMode)
	}

	if c.ConfirmAttempts <= 0 {
		return fmt.Errorf("LEDGER_CONFIRM_ATTEMPTS must be positive, got %d", c.ConfirmAttempts)
	}

	if c.BreakerHysteresis != 0 && c.BreakerHysteresis < 1.0 {
		return fmt.Errorf("BREAKER_HYSTERESIS must be >= 1.0, got %f", c.BreakerHysteresis)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getCSV(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
