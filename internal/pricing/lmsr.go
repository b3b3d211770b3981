package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// lmsrMaker prices outcome baskets with the logarithmic market scoring rule.
// All pricing is delegated to the deployed AMM through read-only calls; this
// type only shapes arguments and converts units.
type lmsrMaker struct {
	gateway   *chain.Gateway
	contracts *chain.Contracts
	logger    *zap.Logger
}

func newLMSRMaker(gateway *chain.Gateway, contracts *chain.Contracts, logger *zap.Logger) *lmsrMaker {
	return &lmsrMaker{
		gateway:   gateway,
		contracts: contracts,
		logger:    logger,
	}
}

func (m *lmsrMaker) NetCost(ctx context.Context, market *types.PredictionMarket, deltas []*big.Int) (*big.Int, error) {
	if len(deltas) != len(market.Outcomes) {
		return nil, fmt.Errorf("delta vector has %d entries, market has %d outcomes", len(deltas), len(market.Outcomes))
	}

	target := m.contracts.MarketMaker(market.Address)
	result, err := m.gateway.Invoke(ctx, target, chain.CallOpts{
		Method:   "calcNetCost",
		ReadOnly: true,
	}, deltas)
	if err != nil {
		return nil, err
	}

	cost, err := result.BigInt(0)
	if err != nil {
		return nil, fmt.Errorf("net cost: %w", err)
	}

	QuotesTotal.Inc()
	return cost, nil
}

func (m *lmsrMaker) MarginalPrice(ctx context.Context, market *types.PredictionMarket, outcomeIndex int) (*big.Float, error) {
	if outcomeIndex < 0 || outcomeIndex >= len(market.Outcomes) {
		return nil, fmt.Errorf("%w: outcome index %d", types.ErrInvalidOutcome, outcomeIndex)
	}

	target := m.contracts.MarketMaker(market.Address)
	result, err := m.gateway.Invoke(ctx, target, chain.CallOpts{
		Method:   "calcMarginalPrice",
		ReadOnly: true,
	}, uint8(outcomeIndex))
	if err != nil {
		return nil, err
	}

	raw, err := result.BigInt(0)
	if err != nil {
		return nil, fmt.Errorf("marginal price: %w", err)
	}

	return market.CollateralToken.FromMinor(raw), nil
}

func (m *lmsrMaker) Trade(ctx context.Context, market *types.PredictionMarket, deltas []*big.Int, collateralLimit *big.Int, trader *chain.Identity) (*chain.CallResult, error) {
	target := m.contracts.MarketMaker(market.Address)
	result, err := m.gateway.Invoke(ctx, target, chain.CallOpts{
		Method:   "trade",
		Identity: trader,
	}, deltas, collateralLimit)
	if err != nil {
		return nil, err
	}

	m.logger.Info("amm-trade-confirmed",
		zap.String("market", market.Address.Hex()),
		zap.String("trader", trader.Address.Hex()),
		zap.String("collateral-limit", collateralLimit.String()),
		zap.String("tx-hash", result.TxHash.Hex()))

	return result, nil
}

func (m *lmsrMaker) Close(ctx context.Context, market *types.PredictionMarket) (*chain.CallResult, error) {
	target := m.contracts.MarketMaker(market.Address)
	return m.gateway.Invoke(ctx, target, chain.CallOpts{Method: "close"})
}

func (m *lmsrMaker) Funding(ctx context.Context, market *types.PredictionMarket) (*big.Float, error) {
	target := m.contracts.MarketMaker(market.Address)
	result, err := m.gateway.Invoke(ctx, target, chain.CallOpts{
		Method:   "funding",
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}

	raw, err := result.BigInt(0)
	if err != nil {
		return nil, fmt.Errorf("funding: %w", err)
	}

	return market.CollateralToken.FromMinor(raw), nil
}

func (m *lmsrMaker) Fee(ctx context.Context, market *types.PredictionMarket) (*big.Int, error) {
	target := m.contracts.MarketMaker(market.Address)
	result, err := m.gateway.Invoke(ctx, target, chain.CallOpts{
		Method:   "fee",
		ReadOnly: true,
	})
	if err != nil {
		return nil, err
	}

	fee, ok := result.Outputs[0].(uint64)
	if !ok {
		return result.BigInt(0)
	}
	return new(big.Int).SetUint64(fee), nil
}
