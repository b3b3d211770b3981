// Package trading sequences buy and sell orders against a market:
// quote → slippage buffer → balance check → top-up → approve → submit.
package trading

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/internal/pricing"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// Request describes one trade. Amounts are per-outcome decimal collateral
// units; the vector length must match the market's outcome count.
type Request struct {
	Market      *types.PredictionMarket
	TraderIndex int
	Amounts     []*big.Float
	IsSelling   bool

	// ManualCollateralLimit caps the collateral committed to the trade, in
	// decimal units. The buy path never exceeds it.
	ManualCollateralLimit *big.Float
}

// ErrTradingHalted is returned while the trade gate is open.
var ErrTradingHalted = errors.New("trading halted by collateral breaker")

// Gate decides whether trades may be submitted and learns from confirmed
// trade sizes. circuitbreaker.CollateralBreaker implements it.
type Gate interface {
	Allow() bool
	RecordTrade(size float64)
}

// Orchestrator executes trades. It holds no per-trade state; each call runs
// the full sequence synchronously. Concurrent trades are not serialized
// here — ordering is the ledger's job, nonce conflicts are the gateway's.
type Orchestrator struct {
	gateway   *chain.Gateway
	contracts *chain.Contracts
	engine    *pricing.Engine
	keyring   *chain.Keyring
	slippage  float64
	gate      Gate
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator with a fixed slippage rate. gate
// may be nil to submit unconditionally.
func NewOrchestrator(gateway *chain.Gateway, contracts *chain.Contracts, engine *pricing.Engine, keyring *chain.Keyring, slippage float64, gate Gate, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		gateway:   gateway,
		contracts: contracts,
		engine:    engine,
		keyring:   keyring,
		slippage:  slippage,
		gate:      gate,
		logger:    logger,
	}
}

// Trade runs the buy or sell sequence and returns the confirmed receipt.
func (o *Orchestrator) Trade(ctx context.Context, req *Request) (*chain.CallResult, error) {
	err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	if o.gate != nil && !o.gate.Allow() {
		TradesHaltedTotal.Inc()
		return nil, ErrTradingHalted
	}

	trader, err := o.keyring.Get(chain.RoleTrader, req.TraderIndex)
	if err != nil {
		return nil, err
	}

	maker, err := o.engine.ForMarket(req.Market)
	if err != nil {
		return nil, err
	}

	token := req.Market.CollateralToken
	deltas := make([]*big.Int, len(req.Amounts))
	for i, amount := range req.Amounts {
		deltas[i] = token.ToMinor(amount)
	}

	var manualLimit *big.Int
	if req.ManualCollateralLimit != nil {
		manualLimit = token.ToMinor(req.ManualCollateralLimit)
	}

	tradeID := uuid.NewString()
	logger := o.logger.With(
		zap.String("trade-id", tradeID),
		zap.String("market", req.Market.Address.Hex()),
		zap.String("trader", trader.Address.Hex()),
		zap.Bool("selling", req.IsSelling))

	start := time.Now()
	var result *chain.CallResult
	if req.IsSelling {
		result, err = o.sell(ctx, req.Market, maker, trader, deltas, manualLimit, logger)
	} else {
		result, err = o.buy(ctx, req.Market, maker, trader, deltas, manualLimit, logger)
	}

	side := "buy"
	if req.IsSelling {
		side = "sell"
	}
	if err != nil {
		TradesTotal.WithLabelValues(side, "failed").Inc()
		return nil, err
	}

	TradesTotal.WithLabelValues(side, "confirmed").Inc()
	TradeDuration.Observe(time.Since(start).Seconds())
	logger.Info("trade-confirmed", zap.String("tx-hash", result.TxHash.Hex()))

	if o.gate != nil {
		o.gate.RecordTrade(requestVolume(req.Amounts))
	}
	return result, nil
}

// requestVolume sums the absolute requested amounts in decimal units.
func requestVolume(amounts []*big.Float) float64 {
	total := new(big.Float)
	for _, amount := range amounts {
		total.Add(total, new(big.Float).Abs(amount))
	}
	volume, _ := total.Float64()
	return volume
}

func validateRequest(req *Request) error {
	if req.Market == nil {
		return errors.New("trade request has no market")
	}
	if len(req.Amounts) == 0 {
		return errors.New("trade request has an empty amount vector")
	}
	if len(req.Amounts) != len(req.Market.Outcomes) {
		return fmt.Errorf("amount vector has %d entries, market has %d outcomes", len(req.Amounts), len(req.Market.Outcomes))
	}

	allZero := true
	for _, amount := range req.Amounts {
		if amount == nil {
			return errors.New("trade request has a nil amount")
		}
		if amount.Sign() != 0 {
			allZero = false
		}
	}
	if allZero {
		return errors.New("trade request is a no-op: all amounts are zero")
	}
	return nil
}

// buy: quote the cost, reserve a slippage buffer on top, make sure the buyer
// can pay (topping up from native balance when short), grant the AMM an
// allowance, then submit with the tighter of the buffered cost and the
// caller's explicit cap.
func (o *Orchestrator) buy(ctx context.Context, market *types.PredictionMarket, maker pricing.MarketMaker, trader *chain.Identity, deltas []*big.Int, manualLimit *big.Int, logger *zap.Logger) (*chain.CallResult, error) {
	cost, err := maker.NetCost(ctx, market, deltas)
	if err != nil {
		return nil, fmt.Errorf("quote buy cost: %w", err)
	}

	costForSure := applySlippage(cost, o.slippage)
	logger.Debug("buy-quoted",
		zap.String("cost", cost.String()),
		zap.String("cost-for-sure", costForSure.String()))

	balance, err := o.collateralBalance(ctx, trader.Address)
	if err != nil {
		return nil, fmt.Errorf("read collateral balance: %w", err)
	}

	if costForSure.Cmp(balance) > 0 {
		shortfall := new(big.Int).Sub(costForSure, balance)
		err = o.topUp(ctx, trader, shortfall)
		if err != nil {
			token := market.CollateralToken
			logger.Warn("buy-top-up-failed", zap.Error(err))
			return nil, &types.InsufficientFundsError{
				Symbol:    token.Symbol,
				Cost:      token.FromMinor(costForSure),
				Balance:   token.FromMinor(balance),
				Shortfall: token.FromMinor(shortfall),
			}
		}
		logger.Info("buy-topped-up", zap.String("shortfall", shortfall.String()))
	}

	_, err = o.gateway.Invoke(ctx, o.contracts.Collateral, chain.CallOpts{
		Method:   "approve",
		Identity: trader,
	}, market.Address, costForSure)
	if err != nil {
		return nil, fmt.Errorf("approve collateral: %w", err)
	}

	// Never exceed the caller's explicit cap.
	limit := costForSure
	if manualLimit != nil && manualLimit.Cmp(costForSure) < 0 {
		limit = manualLimit
	}

	return maker.Trade(ctx, market, deltas, limit, trader)
}

// sell: make sure the AMM holds approval-for-all on the conditional tokens
// (submitted fire-and-forget when missing), negate the requested amounts and
// submit with the negated quote (or manual limit) as the profit floor.
func (o *Orchestrator) sell(ctx context.Context, market *types.PredictionMarket, maker pricing.MarketMaker, trader *chain.Identity, deltas []*big.Int, manualLimit *big.Int, logger *zap.Logger) (*chain.CallResult, error) {
	approved, err := o.isApprovedForAll(ctx, trader, market.Address)
	if err != nil {
		return nil, fmt.Errorf("check approval-for-all: %w", err)
	}

	if !approved {
		_, err = o.gateway.Invoke(ctx, o.contracts.ConditionalTokens, chain.CallOpts{
			Method:           "setApprovalForAll",
			Identity:         trader,
			SkipConfirmation: true,
		}, market.Address, true)
		if err != nil {
			return nil, fmt.Errorf("grant approval-for-all: %w", err)
		}
		logger.Info("sell-approval-submitted")
	}

	sellDeltas := make([]*big.Int, len(deltas))
	for i, delta := range deltas {
		sellDeltas[i] = new(big.Int).Neg(delta)
	}

	var profit *big.Int
	if manualLimit != nil {
		profit = new(big.Int).Neg(manualLimit)
	} else {
		quote, err := maker.NetCost(ctx, market, sellDeltas)
		if err != nil {
			return nil, fmt.Errorf("quote sell profit: %w", err)
		}
		profit = new(big.Int).Neg(quote)
	}

	logger.Debug("sell-quoted", zap.String("profit", profit.String()))

	return maker.Trade(ctx, market, sellDeltas, profit, trader)
}

func (o *Orchestrator) collateralBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	result, err := o.gateway.Invoke(ctx, o.contracts.Collateral, chain.CallOpts{
		Method:   "balanceOf",
		ReadOnly: true,
	}, owner)
	if err != nil {
		return nil, err
	}
	return result.BigInt(0)
}

// topUp converts native balance into collateral for the shortfall.
func (o *Orchestrator) topUp(ctx context.Context, trader *chain.Identity, shortfall *big.Int) error {
	_, err := o.gateway.Invoke(ctx, o.contracts.Collateral, chain.CallOpts{
		Method:   "deposit",
		Identity: trader,
		Value:    shortfall,
	})
	return err
}

func (o *Orchestrator) isApprovedForAll(ctx context.Context, trader *chain.Identity, operator common.Address) (bool, error) {
	result, err := o.gateway.Invoke(ctx, o.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "isApprovedForAll",
		ReadOnly: true,
		Identity: trader,
	}, trader.Address, operator)
	if err != nil {
		return false, err
	}
	return result.Bool(0)
}

// applySlippage adds cost*rate to the quoted cost, rounded to the nearest
// minor unit. rate == 0 returns the quote unchanged.
func applySlippage(cost *big.Int, rate float64) *big.Int {
	if rate == 0 {
		return new(big.Int).Set(cost)
	}

	buffer := new(big.Float).Mul(new(big.Float).SetInt(cost), big.NewFloat(rate))
	half := big.NewFloat(0.5)
	if buffer.Sign() < 0 {
		buffer.Sub(buffer, half)
	} else {
		buffer.Add(buffer, half)
	}
	rounded, _ := buffer.Int(nil)

	return new(big.Int).Add(cost, rounded)
}
