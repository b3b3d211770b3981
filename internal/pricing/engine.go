// Package pricing quotes and executes trades against the automated market
// makers. The variant set is closed: LMSR is implemented, fixed-product and
// order-book satisfy the same interface by failing with ErrNotImplemented.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// MarketMaker is the capability every AMM variant exposes. Monetary amounts
// cross this boundary in minor units; decimal conversion happens in callers.
type MarketMaker interface {
	// NetCost quotes the signed cost of an outcome-token delta vector
	// (positive = buy, negative = sell). Pure read, no state mutation.
	NetCost(ctx context.Context, market *types.PredictionMarket, deltas []*big.Int) (*big.Int, error)

	// MarginalPrice reads the current per-outcome marginal price in decimal
	// collateral units.
	MarginalPrice(ctx context.Context, market *types.PredictionMarket, outcomeIndex int) (*big.Float, error)

	// Trade submits the delta vector with a collateral limit, signed by the
	// trader identity.
	Trade(ctx context.Context, market *types.PredictionMarket, deltas []*big.Int, collateralLimit *big.Int, trader *chain.Identity) (*chain.CallResult, error)

	// Close halts trading on the AMM.
	Close(ctx context.Context, market *types.PredictionMarket) (*chain.CallResult, error)

	// Funding reads the AMM's liquidity in decimal collateral units.
	Funding(ctx context.Context, market *types.PredictionMarket) (*big.Float, error)

	// Fee reads the AMM's trade fee factor.
	Fee(ctx context.Context, market *types.PredictionMarket) (*big.Int, error)
}

// Engine dispatches to the market maker variant matching a market's type.
type Engine struct {
	lmsr      MarketMaker
	fpmm      MarketMaker
	orderBook MarketMaker
}

// NewEngine builds the engine with all variants wired.
func NewEngine(gateway *chain.Gateway, contracts *chain.Contracts, logger *zap.Logger) *Engine {
	return &Engine{
		lmsr:      newLMSRMaker(gateway, contracts, logger),
		fpmm:      notImplementedMaker{variant: types.MarketTypeFixedProduct},
		orderBook: notImplementedMaker{variant: types.MarketTypeOrderBook},
	}
}

// ForMarket selects the variant for the market's type.
func (e *Engine) ForMarket(market *types.PredictionMarket) (MarketMaker, error) {
	switch market.Type {
	case types.MarketTypeLMSR:
		return e.lmsr, nil
	case types.MarketTypeFixedProduct:
		return e.fpmm, nil
	case types.MarketTypeOrderBook:
		return e.orderBook, nil
	default:
		return nil, fmt.Errorf("invalid market type %q", market.Type)
	}
}

// NetCost quotes the cost of a delta vector for the market's variant.
func (e *Engine) NetCost(ctx context.Context, market *types.PredictionMarket, deltas []*big.Int) (*big.Int, error) {
	maker, err := e.ForMarket(market)
	if err != nil {
		return nil, err
	}
	return maker.NetCost(ctx, market, deltas)
}

// SingleOutcomeCost builds the all-zero vector with amount at outcomeIndex
// and delegates to NetCost.
func (e *Engine) SingleOutcomeCost(ctx context.Context, market *types.PredictionMarket, outcomeIndex int, amount *big.Int) (*big.Int, error) {
	deltas := SingleOutcomeVector(len(market.Outcomes), outcomeIndex, amount)
	return e.NetCost(ctx, market, deltas)
}

// MarginalPrice reads the marginal price for one outcome.
func (e *Engine) MarginalPrice(ctx context.Context, market *types.PredictionMarket, outcomeIndex int) (*big.Float, error) {
	maker, err := e.ForMarket(market)
	if err != nil {
		return nil, err
	}
	return maker.MarginalPrice(ctx, market, outcomeIndex)
}

// SingleOutcomeVector builds an n-length delta vector that is zero everywhere
// except amount at index.
func SingleOutcomeVector(n, index int, amount *big.Int) []*big.Int {
	deltas := make([]*big.Int, n)
	for i := range deltas {
		if i == index {
			deltas[i] = amount
		} else {
			deltas[i] = big.NewInt(0)
		}
	}
	return deltas
}

// notImplementedMaker keeps the variant set exhaustive without an
// implementation behind it.
type notImplementedMaker struct {
	variant types.MarketType
}

func (m notImplementedMaker) err() error {
	return fmt.Errorf("%w: %s market maker", types.ErrNotImplemented, m.variant)
}

func (m notImplementedMaker) NetCost(context.Context, *types.PredictionMarket, []*big.Int) (*big.Int, error) {
	return nil, m.err()
}

func (m notImplementedMaker) MarginalPrice(context.Context, *types.PredictionMarket, int) (*big.Float, error) {
	return nil, m.err()
}

func (m notImplementedMaker) Trade(context.Context, *types.PredictionMarket, []*big.Int, *big.Int, *chain.Identity) (*chain.CallResult, error) {
	return nil, m.err()
}

func (m notImplementedMaker) Close(context.Context, *types.PredictionMarket) (*chain.CallResult, error) {
	return nil, m.err()
}

func (m notImplementedMaker) Funding(context.Context, *types.PredictionMarket) (*big.Float, error) {
	return nil, m.err()
}

func (m notImplementedMaker) Fee(context.Context, *types.PredictionMarket) (*big.Int, error) {
	return nil, m.err()
}
