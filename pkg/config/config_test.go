package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, int64(1337), cfg.ChainID)
	assert.Equal(t, 2*time.Second, cfg.ConfirmInterval)
	assert.Equal(t, 60, cfg.ConfirmAttempts)
	assert.Equal(t, "WETH9", cfg.CollateralSymbol)
	assert.Equal(t, 18, cfg.CollateralDecimals)
	assert.InDelta(t, 0.01, cfg.TradeSlippage, 1e-9)
	assert.Equal(t, "file", cfg.StorageMode)
	assert.Equal(t, "markets.json", cfg.MarketFilePath)
	assert.Equal(t, 5*time.Second, cfg.PriceFeedInterval)
	assert.Empty(t, cfg.TraderKeys)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LEDGER_CHAIN_ID", "80002")
	t.Setenv("LEDGER_CONFIRM_INTERVAL", "250ms")
	t.Setenv("TRADE_SLIPPAGE", "0.05")
	t.Setenv("STORAGE_MODE", "postgres")
	t.Setenv("TRADER_PRIVATE_KEYS", "0xaa, 0xbb,,0xcc")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(80002), cfg.ChainID)
	assert.Equal(t, 250*time.Millisecond, cfg.ConfirmInterval)
	assert.InDelta(t, 0.05, cfg.TradeSlippage, 1e-9)
	assert.Equal(t, "postgres", cfg.StorageMode)
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, cfg.TraderKeys)
}

func TestLoadFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("LEDGER_CONFIRM_ATTEMPTS", "sixty")
	t.Setenv("TRADE_SLIPPAGE", "one percent")
	t.Setenv("LEDGER_CONFIRM_INTERVAL", "soon")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.ConfirmAttempts)
	assert.InDelta(t, 0.01, cfg.TradeSlippage, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.ConfirmInterval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RPCURL:                   "http://127.0.0.1:8545",
			ConditionalTokensAddress: "0x01",
			LMSRFactoryAddress:       "0x02",
			TradeSlippage:            0.01,
			CollateralDecimals:       18,
			StorageMode:              "file",
			ConfirmAttempts:          10,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing rpc url", mutate: func(c *Config) { c.RPCURL = "" }, wantErr: "LEDGER_RPC_URL"},
		{name: "missing conditional tokens", mutate: func(c *Config) { c.ConditionalTokensAddress = "" }, wantErr: "CONDITIONAL_TOKENS_ADDRESS"},
		{name: "missing factory", mutate: func(c *Config) { c.LMSRFactoryAddress = "" }, wantErr: "LMSR_FACTORY_ADDRESS"},
		{name: "negative slippage", mutate: func(c *Config) { c.TradeSlippage = -0.1 }, wantErr: "TRADE_SLIPPAGE"},
		{name: "slippage at one", mutate: func(c *Config) { c.TradeSlippage = 1.0 }, wantErr: "TRADE_SLIPPAGE"},
		{name: "decimals out of range", mutate: func(c *Config) { c.CollateralDecimals = 40 }, wantErr: "COLLATERAL_TOKEN_DECIMALS"},
		{name: "unknown storage mode", mutate: func(c *Config) { c.StorageMode = "redis" }, wantErr: "STORAGE_MODE"},
		{name: "non-positive confirm attempts", mutate: func(c *Config) { c.ConfirmAttempts = 0 }, wantErr: "LEDGER_CONFIRM_ATTEMPTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
