package testutil

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/internal/lifecycle"
	"github.com/predmarket/predmarket/internal/marketstore"
	"github.com/predmarket/predmarket/internal/positions"
	"github.com/predmarket/predmarket/internal/pricing"
	"github.com/predmarket/predmarket/internal/trading"
	"github.com/predmarket/predmarket/pkg/config"
	"github.com/predmarket/predmarket/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Test-local collateral shape: 6 decimals keeps minor-unit numbers readable.
const (
	TestDecimals = 6
	TestSymbol   = "TWETH"
)

// Stack wires every component against a fake ledger.
type Stack struct {
	Ledger       *FakeLedger
	Config       *config.Config
	Contracts    *chain.Contracts
	Keyring      *chain.Keyring
	Gateway      *chain.Gateway
	Resolver     *positions.Resolver
	Engine       *pricing.Engine
	Orchestrator *trading.Orchestrator
	Controller   *lifecycle.Controller
	Store        marketstore.Store
	Logger       *zap.Logger
}

// NewConfig returns a config pointed at fixed fake contract addresses.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:                 "debug",
		HTTPPort:                 "0",
		RPCURL:                   "fake://ledger",
		ChainID:                  TestChainID,
		ConfirmInterval:          time.Millisecond,
		ConfirmAttempts:          5,
		GasLimitFallback:         500000,
		ConditionalTokensAddress: "0x1000000000000000000000000000000000000001",
		LMSRFactoryAddress:       "0x1000000000000000000000000000000000000002",
		CollateralAddress:        "0x1000000000000000000000000000000000000003",
		CollateralSymbol:         TestSymbol,
		CollateralDecimals:       TestDecimals,
		TradeSlippage:            0.01,
		BreakerCheckInterval:     time.Minute,
		BreakerTradeMultiplier:   2.0,
		BreakerMinBalance:        1.0,
		BreakerHysteresis:        1.5,
		DevAccountSeed:           "test-accounts",
		StorageMode:              "file",
		MarketFilePath:           filepath.Join(t.TempDir(), "markets.json"),
		PriceFeedInterval:        time.Second,
	}
}

// NewStack builds the full component graph on a fake ledger.
func NewStack(t *testing.T) *Stack {
	t.Helper()

	cfg := NewConfig(t)
	logger := zap.NewNop()

	contracts, err := chain.NewContracts(cfg)
	require.NoError(t, err)

	ledger := NewFakeLedger(contracts, cfg.CollateralDecimals, cfg.CollateralSymbol)
	keyring := chain.NewKeyring(cfg)
	gateway := chain.NewGateway(&chain.GatewayConfig{
		Backend:          ledger,
		Keyring:          keyring,
		ChainID:          cfg.ChainID,
		ConfirmInterval:  cfg.ConfirmInterval,
		ConfirmAttempts:  cfg.ConfirmAttempts,
		GasLimitFallback: cfg.GasLimitFallback,
		Logger:           logger,
	})

	resolver := positions.NewResolver(gateway, contracts, nil, logger)
	engine := pricing.NewEngine(gateway, contracts, logger)
	orchestrator := trading.NewOrchestrator(gateway, contracts, engine, keyring, cfg.TradeSlippage, nil, logger)

	store, err := marketstore.NewFileStore(cfg.MarketFilePath, logger)
	require.NoError(t, err)

	controller := lifecycle.NewController(gateway, contracts, engine, resolver, keyring, store, logger)

	return &Stack{
		Ledger:       ledger,
		Config:       cfg,
		Contracts:    contracts,
		Keyring:      keyring,
		Gateway:      gateway,
		Resolver:     resolver,
		Engine:       engine,
		Orchestrator: orchestrator,
		Controller:   controller,
		Store:        store,
		Logger:       logger,
	}
}

// Identity returns the derived identity for a role, failing the test on error.
func (s *Stack) Identity(t *testing.T, role chain.Role, index int) *chain.Identity {
	t.Helper()
	identity, err := s.Keyring.Get(role, index)
	require.NoError(t, err)
	return identity
}

// FundCollateral seeds an account with collateral in decimal units.
func (s *Stack) FundCollateral(t *testing.T, account common.Address, amount float64) {
	t.Helper()
	token := s.collateralToken()
	s.Ledger.SetCollateral(account, token.ToMinor(big.NewFloat(amount)))
}

// CreateMarket creates a binary (or wider) market through the controller.
func (s *Stack) CreateMarket(t *testing.T, question string, outcomes []string, liquidity float64) *types.PredictionMarket {
	t.Helper()
	market, err := s.Controller.CreateMarket(t.Context(), question, outcomes, liquidity, lifecycle.CreateOptions{})
	require.NoError(t, err)
	return market
}

func (s *Stack) collateralToken() types.CollateralToken {
	return types.CollateralToken{
		Address:  common.HexToAddress(s.Config.CollateralAddress),
		Symbol:   s.Config.CollateralSymbol,
		Decimals: uint8(s.Config.CollateralDecimals),
	}
}

// NewMarketFixture builds an unregistered market value without touching the
// ledger. Useful for unit tests of pure validation paths.
func NewMarketFixture(address common.Address, outcomeTitles []string) *types.PredictionMarket {
	outcomes := make([]types.OutcomeToken, len(outcomeTitles))
	for i, title := range outcomeTitles {
		outcomes[i] = types.OutcomeToken{Title: title, TokenIndex: i}
	}
	return &types.PredictionMarket{
		Address:     address,
		Type:        types.MarketTypeLMSR,
		Question:    "fixture",
		QuestionID:  common.HexToHash("0xabc1"),
		ConditionID: common.HexToHash("0xabc2"),
		Outcomes:    outcomes,
		CollateralToken: types.CollateralToken{
			Address:  common.HexToAddress("0x1000000000000000000000000000000000000003"),
			Symbol:   TestSymbol,
			Decimals: uint8(TestDecimals),
		},
		Oracle:    types.Oracle{Type: types.OracleCentralized},
		StartedAt: time.Now(),
	}
}
