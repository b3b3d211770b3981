// Package lifecycle drives markets through trading → closed → resolved and
// handles per-trader redemption.
package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/internal/marketstore"
	"github.com/predmarket/predmarket/internal/positions"
	"github.com/predmarket/predmarket/internal/pricing"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// Controller creates, closes, resolves and redeems markets.
type Controller struct {
	gateway   *chain.Gateway
	contracts *chain.Contracts
	engine    *pricing.Engine
	resolver  *positions.Resolver
	keyring   *chain.Keyring
	store     marketstore.Store
	logger    *zap.Logger
}

// NewController wires the lifecycle controller.
func NewController(gateway *chain.Gateway, contracts *chain.Contracts, engine *pricing.Engine, resolver *positions.Resolver, keyring *chain.Keyring, store marketstore.Store, logger *zap.Logger) *Controller {
	return &Controller{
		gateway:   gateway,
		contracts: contracts,
		engine:    engine,
		resolver:  resolver,
		keyring:   keyring,
		store:     store,
		logger:    logger,
	}
}

// CreateOptions customizes market creation.
type CreateOptions struct {
	// Oracle overrides the default centralized oracle account.
	Oracle *types.Oracle

	// SubQuestions maps an outcome title to the question of a nested binary
	// market rooted at that outcome. Each sub-question gets its own
	// condition and an independent AMM.
	SubQuestions map[string]string
}

// CreateMarket derives the condition(s), funds and approves the liquidity,
// deploys one AMM per condition and registers the market tree.
func (c *Controller) CreateMarket(ctx context.Context, question string, outcomeTitles []string, initialLiquidity float64, opts CreateOptions) (*types.PredictionMarket, error) {
	if len(outcomeTitles) < 2 {
		return nil, fmt.Errorf("market needs at least 2 outcomes, got %d", len(outcomeTitles))
	}

	collateral, err := c.contracts.CollateralToken()
	if err != nil {
		return nil, err
	}

	oracle := opts.Oracle
	if oracle == nil {
		oracle, err = c.defaultOracle()
		if err != nil {
			return nil, err
		}
	}

	operator, err := c.keyring.Operator()
	if err != nil {
		return nil, err
	}

	funding := collateral.ToMinor(big.NewFloat(initialLiquidity))
	marketCount := int64(len(opts.SubQuestions) + 1)
	totalFunding := new(big.Int).Mul(funding, big.NewInt(marketCount))

	err = c.ensureOperatorCollateral(ctx, operator, totalFunding)
	if err != nil {
		return nil, err
	}

	_, err = c.gateway.Invoke(ctx, c.contracts.Collateral, chain.CallOpts{
		Method: "approve",
	}, c.contracts.LMSRFactory.Address, totalFunding)
	if err != nil {
		return nil, fmt.Errorf("approve factory: %w", err)
	}

	condition, err := c.createCondition(ctx, question, oracle, len(outcomeTitles))
	if err != nil {
		return nil, err
	}

	ammAddress, err := c.deployMarketMaker(ctx, condition.ID, funding)
	if err != nil {
		return nil, err
	}

	outcomes := make([]types.OutcomeToken, len(outcomeTitles))
	for i, title := range outcomeTitles {
		outcomes[i] = types.OutcomeToken{Title: title, TokenIndex: i}
	}

	market := &types.PredictionMarket{
		Address:          ammAddress,
		Type:             types.MarketTypeLMSR,
		Question:         condition.Question,
		QuestionID:       condition.QuestionID,
		ConditionID:      condition.ID,
		Outcomes:         outcomes,
		CollateralToken:  collateral,
		Oracle:           *oracle,
		Creator:          operator.Address,
		InitialLiquidity: initialLiquidity,
		StartedAt:        time.Now(),
	}

	for title, subQuestion := range opts.SubQuestions {
		idx := outcomeIndexByTitle(outcomes, title)
		if idx < 0 {
			return nil, fmt.Errorf("%w: sub-question refers to unknown outcome %q", types.ErrInvalidOutcome, title)
		}

		subMarket, subCondition, err := c.createSubMarket(ctx, subQuestion, oracle, collateral, funding, initialLiquidity, operator.Address)
		if err != nil {
			return nil, fmt.Errorf("create sub-market for outcome %q: %w", title, err)
		}

		if market.SubMarkets == nil {
			market.SubMarkets = make(map[string]*types.PredictionMarket)
			market.SubConditions = make(map[string]types.SubCondition)
		}
		market.SubMarkets[title] = subMarket
		market.SubConditions[title] = subCondition
		market.Outcomes[idx].Sub = subMarket.Outcomes
	}

	valid, err := c.ValidateMarketCreation(ctx, condition.ID, len(outcomeTitles))
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("condition %s reports a different outcome slot count", condition.ID.Hex())
	}

	_, err = c.store.Update(market)
	if err != nil {
		return nil, fmt.Errorf("register market: %w", err)
	}

	MarketsCreatedTotal.Inc()
	c.logger.Info("market-created",
		zap.String("address", market.Address.Hex()),
		zap.String("condition-id", market.ConditionID.Hex()),
		zap.Int("outcomes", len(outcomes)),
		zap.Int("sub-markets", len(market.SubMarkets)))

	return market, nil
}

func (c *Controller) createSubMarket(ctx context.Context, question string, oracle *types.Oracle, collateral types.CollateralToken, funding *big.Int, initialLiquidity float64, creator common.Address) (*types.PredictionMarket, types.SubCondition, error) {
	condition, err := c.createCondition(ctx, question, oracle, 2)
	if err != nil {
		return nil, types.SubCondition{}, err
	}

	ammAddress, err := c.deployMarketMaker(ctx, condition.ID, funding)
	if err != nil {
		return nil, types.SubCondition{}, err
	}

	subMarket := &types.PredictionMarket{
		Address:     ammAddress,
		Type:        types.MarketTypeLMSR,
		Question:    condition.Question,
		QuestionID:  condition.QuestionID,
		ConditionID: condition.ID,
		Outcomes: []types.OutcomeToken{
			{Title: "Yes", TokenIndex: 0},
			{Title: "No", TokenIndex: 1},
		},
		CollateralToken:  collateral,
		Oracle:           *oracle,
		Creator:          creator,
		InitialLiquidity: initialLiquidity,
		StartedAt:        time.Now(),
	}

	subCondition := types.SubCondition{
		ID:         condition.ID,
		Question:   condition.Question,
		QuestionID: condition.QuestionID,
	}
	return subMarket, subCondition, nil
}

// createCondition prepares the condition on the ledger and reads back its
// deterministic id.
func (c *Controller) createCondition(ctx context.Context, question string, oracle *types.Oracle, outcomeCount int) (*types.Condition, error) {
	questionID := common.Hash(crypto.Keccak256Hash([]byte(question)))

	_, err := c.gateway.Invoke(ctx, c.contracts.ConditionalTokens, chain.CallOpts{
		Method: "prepareCondition",
	}, oracle.Address, questionID, big.NewInt(int64(outcomeCount)))
	if err != nil {
		return nil, fmt.Errorf("prepare condition: %w", err)
	}

	result, err := c.gateway.Invoke(ctx, c.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "getConditionId",
		ReadOnly: true,
	}, oracle.Address, questionID, big.NewInt(int64(outcomeCount)))
	if err != nil {
		return nil, fmt.Errorf("get condition id: %w", err)
	}

	conditionID, err := result.Hash(0)
	if err != nil {
		return nil, fmt.Errorf("condition id: %w", err)
	}

	return &types.Condition{
		ID:               conditionID,
		Oracle:           oracle.Address,
		Question:         question,
		QuestionID:       questionID,
		OutcomeSlotCount: outcomeCount,
	}, nil
}

// deployMarketMaker asks the factory for a new AMM and extracts its address
// from the creation event.
func (c *Controller) deployMarketMaker(ctx context.Context, conditionID common.Hash, funding *big.Int) (common.Address, error) {
	result, err := c.gateway.Invoke(ctx, c.contracts.LMSRFactory, chain.CallOpts{
		Method: "createLMSRMarketMaker",
	},
		c.contracts.ConditionalTokens.Address,
		c.contracts.Collateral.Address,
		[]common.Hash{conditionID},
		uint64(0), // market fee
		common.Address{}, // whitelist
		funding,
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("create market maker: %w", err)
	}

	events, err := c.gateway.EventsFromReceipt(result.Receipt, c.contracts.LMSRFactory, "LMSRMarketMakerCreation")
	if err != nil {
		return common.Address{}, fmt.Errorf("read creation event: %w", err)
	}
	if len(events) == 0 {
		return common.Address{}, fmt.Errorf("market maker deployed but creation event missing from receipt %s", result.TxHash.Hex())
	}

	address, ok := events[0].Args["lmsrMarketMaker"].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("creation event carries no market maker address")
	}
	return address, nil
}

// ensureOperatorCollateral tops the operator's collateral balance up to the
// liquidity requirement by converting native balance.
func (c *Controller) ensureOperatorCollateral(ctx context.Context, operator *chain.Identity, required *big.Int) error {
	result, err := c.gateway.Invoke(ctx, c.contracts.Collateral, chain.CallOpts{
		Method:   "balanceOf",
		ReadOnly: true,
	}, operator.Address)
	if err != nil {
		return fmt.Errorf("read operator collateral: %w", err)
	}

	balance, err := result.BigInt(0)
	if err != nil {
		return fmt.Errorf("operator collateral: %w", err)
	}

	if balance.Cmp(required) >= 0 {
		return nil
	}

	shortfall := new(big.Int).Sub(required, balance)
	_, err = c.gateway.Invoke(ctx, c.contracts.Collateral, chain.CallOpts{
		Method: "deposit",
		Value:  shortfall,
	})
	if err != nil {
		return fmt.Errorf("deposit liquidity collateral: %w", err)
	}

	c.logger.Info("operator-collateral-funded", zap.String("amount", shortfall.String()))
	return nil
}

// ValidateMarketCreation confirms the prepared condition reports the expected
// outcome slot count, which is the documented way to validate prepareCondition.
func (c *Controller) ValidateMarketCreation(ctx context.Context, conditionID common.Hash, outcomeCount int) (bool, error) {
	result, err := c.gateway.Invoke(ctx, c.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "getOutcomeSlotCount",
		ReadOnly: true,
	}, conditionID)
	if err != nil {
		return false, err
	}

	count, err := result.BigInt(0)
	if err != nil {
		return false, fmt.Errorf("outcome slot count: %w", err)
	}
	return count.Cmp(big.NewInt(int64(outcomeCount))) == 0, nil
}

func (c *Controller) defaultOracle() (*types.Oracle, error) {
	identity, err := c.keyring.Get(chain.RoleOracle, 0)
	if err != nil {
		return nil, err
	}
	return &types.Oracle{Address: identity.Address, Type: types.OracleCentralized}, nil
}

func outcomeIndexByTitle(outcomes []types.OutcomeToken, title string) int {
	for i, outcome := range outcomes {
		if outcome.Title == title {
			return i
		}
	}
	return -1
}

// CloseMarket halts trading. Closing an already-closed market performs no
// ledger call and leaves closedAt unchanged.
func (c *Controller) CloseMarket(ctx context.Context, market *types.PredictionMarket) (*chain.CallResult, error) {
	if market.IsClosed() {
		c.logger.Debug("close-skipped-already-closed", zap.String("address", market.Address.Hex()))
		return nil, nil
	}

	maker, err := c.engine.ForMarket(market)
	if err != nil {
		return nil, err
	}

	result, err := maker.Close(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("close market: %w", err)
	}

	market.MarkClosed(time.Now())
	_, err = c.store.Update(market)
	if err != nil {
		return nil, fmt.Errorf("record close: %w", err)
	}

	c.logger.Info("market-closed", zap.String("address", market.Address.Hex()))
	return result, nil
}

// ResolveMarket reports the payout vector through the market's oracle. The
// market is auto-closed first when still trading. The vector length must
// equal the condition's outcome slot count.
func (c *Controller) ResolveMarket(ctx context.Context, market *types.PredictionMarket, payouts []uint64) (*chain.CallResult, error) {
	if len(payouts) != len(market.Outcomes) {
		return nil, &types.InvalidTruenessVectorError{Got: len(payouts), Want: len(market.Outcomes)}
	}

	var total uint64
	for _, p := range payouts {
		total += p
	}
	if total == 0 {
		return nil, &types.InvalidTruenessVectorError{
			Got:    len(payouts),
			Want:   len(market.Outcomes),
			Reason: "every payout is zero, at least one outcome must receive a payout",
		}
	}

	if !market.IsClosed() {
		_, err := c.CloseMarket(ctx, market)
		if err != nil {
			return nil, fmt.Errorf("auto-close before resolve: %w", err)
		}
	}

	switch market.Oracle.Type {
	case types.OracleCentralized:
		// report directly with the oracle-held identity
	case types.OracleDecentralized:
		return nil, fmt.Errorf("%w: decentralized oracle resolution", types.ErrNotImplemented)
	default:
		return nil, fmt.Errorf("invalid oracle type %q", market.Oracle.Type)
	}

	oracleIdentity, err := c.keyring.Get(chain.RoleOracle, 0)
	if err != nil {
		return nil, err
	}

	vector := make([]*big.Int, len(payouts))
	for i, p := range payouts {
		vector[i] = new(big.Int).SetUint64(p)
	}

	result, err := c.gateway.Invoke(ctx, c.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "reportPayouts",
		Identity: oracleIdentity,
	}, market.QuestionID, vector)
	if err != nil {
		return nil, fmt.Errorf("report payouts: %w", err)
	}

	for i := range market.Outcomes {
		ratio := float64(payouts[i]) / float64(total)
		market.Outcomes[i].TruenessRatio = &ratio
	}
	market.MarkResolved(time.Now())

	_, err = c.store.Update(market)
	if err != nil {
		return nil, fmt.Errorf("record resolution: %w", err)
	}

	MarketsResolvedTotal.Inc()
	c.logger.Info("market-resolved",
		zap.String("address", market.Address.Hex()),
		zap.Uint64s("payouts", payouts))

	return result, nil
}

// RedemptionResult carries the redemption receipt and the payout decoded
// from the redemption event, in decimal collateral units.
type RedemptionResult struct {
	Receipt  *chain.CallResult
	Redeemed *big.Float
}

// Redeem burns the trader's winning positions in exchange for collateral.
// outcomeIndex selects a single outcome; nil redeems all of them.
func (c *Controller) Redeem(ctx context.Context, traderIndex int, market *types.PredictionMarket, outcomeIndex *int) (*RedemptionResult, error) {
	var indexSets []*big.Int
	if outcomeIndex != nil {
		if *outcomeIndex < 0 || *outcomeIndex >= len(market.Outcomes) {
			return nil, fmt.Errorf("%w: outcome index %d", types.ErrInvalidOutcome, *outcomeIndex)
		}
		indexSets = []*big.Int{positions.OutcomeIndexToIndexSet(*outcomeIndex)}
	} else {
		for _, outcome := range market.Outcomes {
			indexSets = append(indexSets, positions.OutcomeIndexToIndexSet(outcome.TokenIndex))
		}
	}

	trader, err := c.keyring.Get(chain.RoleTrader, traderIndex)
	if err != nil {
		return nil, err
	}

	result, err := c.gateway.Invoke(ctx, c.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "redeemPositions",
		Identity: trader,
	}, market.CollateralToken.Address, positions.RootCollection, market.ConditionID, indexSets)
	if err != nil {
		return nil, fmt.Errorf("redeem positions: %w", err)
	}

	redeemed := new(big.Float)
	events, err := c.gateway.EventsFromReceipt(result.Receipt, c.contracts.ConditionalTokens, "PayoutRedemption")
	if err == nil {
		for _, event := range events {
			payout, ok := event.Args["payout"].(*big.Int)
			if ok {
				redeemed.Add(redeemed, market.CollateralToken.FromMinor(payout))
			}
		}
	}

	c.logger.Info("positions-redeemed",
		zap.String("market", market.Address.Hex()),
		zap.String("trader", trader.Address.Hex()),
		zap.String("redeemed", redeemed.Text('f', 6)))

	return &RedemptionResult{Receipt: result, Redeemed: redeemed}, nil
}

// OutcomePrices quotes every outcome for the given unit amount. Resolved
// markets are priced off their trueness ratios without a ledger call; buy and
// sell prices coincide after resolution.
func (c *Controller) OutcomePrices(ctx context.Context, market *types.PredictionMarket, amount float64) ([]types.PricedOutcome, error) {
	if amount == 0 {
		amount = 1
	}

	if market.IsClosed() {
		if amount < 0 {
			amount = -amount
		}
		priced := make([]types.PricedOutcome, 0, len(market.Outcomes))
		for _, outcome := range market.Outcomes {
			var price *big.Float
			if outcome.TruenessRatio != nil {
				price = new(big.Float).Mul(big.NewFloat(*outcome.TruenessRatio), big.NewFloat(amount))
			}
			priced = append(priced, types.PricedOutcome{
				Outcome: outcome.Title,
				Index:   outcome.TokenIndex,
				Price:   price,
			})
		}
		return priced, nil
	}

	token := market.CollateralToken
	amountMinor := token.ToMinor(big.NewFloat(amount))

	priced := make([]types.PricedOutcome, 0, len(market.Outcomes))
	for _, outcome := range market.Outcomes {
		cost, err := c.engine.SingleOutcomeCost(ctx, market, outcome.TokenIndex, amountMinor)
		if err != nil {
			return nil, fmt.Errorf("price outcome %q: %w", outcome.Title, err)
		}

		priced = append(priced, types.PricedOutcome{
			Outcome: outcome.Title,
			Index:   outcome.TokenIndex,
			Price:   new(big.Float).Abs(token.FromMinor(cost)),
		})
	}
	return priced, nil
}

// MarketFunding reads the AMM's current liquidity in decimal units.
func (c *Controller) MarketFunding(ctx context.Context, market *types.PredictionMarket) (*big.Float, error) {
	maker, err := c.engine.ForMarket(market)
	if err != nil {
		return nil, err
	}
	return maker.Funding(ctx, market)
}

// MarketTradeFee reads the AMM's fee factor.
func (c *Controller) MarketTradeFee(ctx context.Context, market *types.PredictionMarket) (*big.Int, error) {
	maker, err := c.engine.ForMarket(market)
	if err != nil {
		return nil, err
	}
	return maker.Fee(ctx, market)
}
