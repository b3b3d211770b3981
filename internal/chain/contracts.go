package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/pkg/config"
	"github.com/predmarket/predmarket/pkg/types"
)

// Contracts is the registry of ledger targets this process talks to. The
// market maker contract is a template rebound per market address.
type Contracts struct {
	ConditionalTokens *Contract
	LMSRFactory       *Contract
	Collateral        *Contract

	collateralToken types.CollateralToken
	marketMaker     *Contract
}

// NewContracts builds the registry from configured addresses.
// The collateral contract is left nil when no collateral address is
// configured; market creation rejects that with ErrUnsupportedCollateral.
func NewContracts(cfg *config.Config) (*Contracts, error) {
	ctf, err := NewContract("ConditionalTokens", cfg.ConditionalTokensAddress, conditionalTokensABI)
	if err != nil {
		return nil, fmt.Errorf("conditional tokens contract: %w", err)
	}

	factory, err := NewContract("LMSRMarketMakerFactory", cfg.LMSRFactoryAddress, lmsrFactoryABI)
	if err != nil {
		return nil, fmt.Errorf("lmsr factory contract: %w", err)
	}

	marketMaker, err := NewContract("LMSRMarketMaker", "0x0000000000000000000000000000000000000000", lmsrMarketMakerABI)
	if err != nil {
		return nil, fmt.Errorf("lmsr market maker contract: %w", err)
	}

	c := &Contracts{
		ConditionalTokens: ctf,
		LMSRFactory:       factory,
		marketMaker:       marketMaker,
	}

	if cfg.CollateralAddress != "" {
		collateral, err := NewContract(cfg.CollateralSymbol, cfg.CollateralAddress, collateralTokenABI)
		if err != nil {
			return nil, fmt.Errorf("collateral contract: %w", err)
		}
		c.Collateral = collateral
		c.collateralToken = types.CollateralToken{
			Address:  collateral.Address,
			Symbol:   cfg.CollateralSymbol,
			Decimals: uint8(cfg.CollateralDecimals),
		}
	}

	return c, nil
}

// CollateralToken returns the configured collateral token, or
// ErrUnsupportedCollateral when none is configured.
func (c *Contracts) CollateralToken() (types.CollateralToken, error) {
	if c.Collateral == nil {
		return types.CollateralToken{}, types.ErrUnsupportedCollateral
	}
	return c.collateralToken, nil
}

// MarketMaker binds the AMM interface to a deployed market address.
func (c *Contracts) MarketMaker(address common.Address) *Contract {
	return c.marketMaker.At(address)
}
