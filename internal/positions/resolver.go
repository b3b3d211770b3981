// Package positions derives combinatorial position identifiers from outcome
// indices and reads position balances.
//
// Collections form a tree rooted at the null collection (direct collateral
// ownership). Each condition branches the tree by one child per non-empty
// index set; a position is a claim on collateral identified by
// (collateralToken, collectionId).
package positions

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/pkg/cache"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// RootCollection is the null parent collection: ownership of collateral
// directly, with no condition applied.
var RootCollection = common.Hash{}

// OutcomeIndexToIndexSet maps a single 0-based outcome slot to its bitmask.
func OutcomeIndexToIndexSet(index int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(index))
}

// OutcomeIndicesToIndexSet maps a duplicate-free set of outcome slots to the
// union of their bitmasks.
func OutcomeIndicesToIndexSet(indices []int) *big.Int {
	set := new(big.Int)
	for _, index := range indices {
		set.SetBit(set, index, 1)
	}
	return set
}

// IndexSetToOutcomeIndices lists the outcome slots selected by a bitmask, in
// ascending order.
func IndexSetToOutcomeIndices(indexSet *big.Int) []int {
	var indices []int
	for i := 0; i < indexSet.BitLen(); i++ {
		if indexSet.Bit(i) == 1 {
			indices = append(indices, i)
		}
	}
	return indices
}

// CollectionCount is the number of children a condition adds per tree node,
// one per index set including the empty one.
func CollectionCount(outcomeSlots int) int {
	return 1 << uint(outcomeSlots)
}

// Resolver derives collection and position identifiers through read-only
// ledger calls, matching the ledger's own derivation exactly. Results are
// immutable, so they are memoized.
type Resolver struct {
	gateway   *chain.Gateway
	contracts *chain.Contracts
	cache     cache.Cache
	logger    *zap.Logger
}

const idCacheTTL = 24 * time.Hour

// NewResolver creates a resolver. cache may be nil to disable memoization.
func NewResolver(gateway *chain.Gateway, contracts *chain.Contracts, idCache cache.Cache, logger *zap.Logger) *Resolver {
	return &Resolver{
		gateway:   gateway,
		contracts: contracts,
		cache:     idCache,
		logger:    logger,
	}
}

// CollectionID derives hash(parentCollectionId, conditionId, indexSet).
// Pass RootCollection as parent for a top-level position.
func (r *Resolver) CollectionID(ctx context.Context, conditionID common.Hash, indexSet *big.Int, parent common.Hash) (common.Hash, error) {
	cacheKey := fmt.Sprintf("collection:%s:%s:%s", parent.Hex(), conditionID.Hex(), indexSet.String())
	if r.cache != nil {
		if cached, ok := r.cache.Get(cacheKey); ok {
			if id, ok := cached.(common.Hash); ok {
				return id, nil
			}
		}
	}

	result, err := r.gateway.Invoke(ctx, r.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "getCollectionId",
		ReadOnly: true,
	}, parent, conditionID, indexSet)
	if err != nil {
		return common.Hash{}, err
	}

	id, err := result.Hash(0)
	if err != nil {
		return common.Hash{}, fmt.Errorf("collection id: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(cacheKey, id, idCacheTTL)
	}
	return id, nil
}

// CollectionIDForIndices converts outcome indices to an index set first.
func (r *Resolver) CollectionIDForIndices(ctx context.Context, conditionID common.Hash, indices []int, parent common.Hash) (common.Hash, error) {
	return r.CollectionID(ctx, conditionID, OutcomeIndicesToIndexSet(indices), parent)
}

// PositionID derives hash(collateralToken, collectionId), the ERC-1155 token
// id whose balance represents the redeemable claim.
func (r *Resolver) PositionID(ctx context.Context, collateral types.CollateralToken, collectionID common.Hash) (*big.Int, error) {
	cacheKey := fmt.Sprintf("position:%s:%s", collateral.Address.Hex(), collectionID.Hex())
	if r.cache != nil {
		if cached, ok := r.cache.Get(cacheKey); ok {
			if id, ok := cached.(*big.Int); ok {
				return id, nil
			}
		}
	}

	result, err := r.gateway.Invoke(ctx, r.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "getPositionId",
		ReadOnly: true,
	}, collateral.Address, collectionID)
	if err != nil {
		return nil, err
	}

	id, err := result.BigInt(0)
	if err != nil {
		return nil, fmt.Errorf("position id: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(cacheKey, id, idCacheTTL)
	}
	return id, nil
}

// BalanceQuery narrows ConditionalBalance to a nested sub-market outcome:
// SubConditionID selects the child condition, ParentCollectionID the
// parent outcome's collection it is rooted under. Both default to the
// market's own condition at the root collection.
type BalanceQuery struct {
	SubConditionID     common.Hash
	ParentCollectionID common.Hash
}

// ConditionalBalance reads the holder's balance for one outcome position and
// converts it from minor units to a decimal amount.
func (r *Resolver) ConditionalBalance(ctx context.Context, market *types.PredictionMarket, outcomeIndex int, holder common.Address, query BalanceQuery) (*big.Float, error) {
	conditionID := market.ConditionID
	parent := RootCollection
	if query.SubConditionID != (common.Hash{}) {
		conditionID = query.SubConditionID
		parent = query.ParentCollectionID
	}

	collectionID, err := r.CollectionID(ctx, conditionID, OutcomeIndexToIndexSet(outcomeIndex), parent)
	if err != nil {
		return nil, err
	}
	if collectionID == (common.Hash{}) {
		return nil, fmt.Errorf("%w: outcome %d of condition %s", types.ErrInvalidOutcome, outcomeIndex, conditionID.Hex())
	}

	positionID, err := r.PositionID(ctx, market.CollateralToken, collectionID)
	if err != nil {
		return nil, err
	}
	if positionID.Sign() == 0 {
		return nil, fmt.Errorf("%w: empty position for collection %s", types.ErrInvalidOutcome, collectionID.Hex())
	}

	result, err := r.gateway.Invoke(ctx, r.contracts.ConditionalTokens, chain.CallOpts{
		Method:   "balanceOf",
		ReadOnly: true,
	}, holder, positionID)
	if err != nil {
		return nil, err
	}

	raw, err := result.BigInt(0)
	if err != nil {
		return nil, fmt.Errorf("position balance: %w", err)
	}

	return market.CollateralToken.FromMinor(raw), nil
}

// OutcomeShare is one leaf of the market tree with the holder's balance.
type OutcomeShare struct {
	Market  common.Address `json:"market"`
	Outcome string         `json:"outcome"`
	Index   int            `json:"index"`
	Balance *big.Float     `json:"balance"`
}

// SharesInMarket walks the full (sub)market tree once and resolves the
// holder's balance for every (sub)outcome. For each outcome that roots a
// child market, the child's positions are resolved under the parent
// outcome's collection.
func (r *Resolver) SharesInMarket(ctx context.Context, market *types.PredictionMarket, holder common.Address) ([]OutcomeShare, error) {
	return r.sharesUnder(ctx, market, holder, common.Hash{}, RootCollection)
}

func (r *Resolver) sharesUnder(ctx context.Context, market *types.PredictionMarket, holder common.Address, subConditionID common.Hash, parent common.Hash) ([]OutcomeShare, error) {
	conditionID := market.ConditionID
	if subConditionID != (common.Hash{}) {
		conditionID = subConditionID
	}

	var shares []OutcomeShare
	for _, outcome := range market.Outcomes {
		balance, err := r.ConditionalBalance(ctx, market, outcome.TokenIndex, holder, BalanceQuery{
			SubConditionID:     subConditionID,
			ParentCollectionID: parent,
		})
		if err != nil {
			return nil, fmt.Errorf("balance of outcome %q: %w", outcome.Title, err)
		}

		shares = append(shares, OutcomeShare{
			Market:  market.Address,
			Outcome: outcome.Title,
			Index:   outcome.TokenIndex,
			Balance: balance,
		})

		sub, ok := market.SubMarkets[outcome.Title]
		if !ok {
			continue
		}

		outcomeCollection, err := r.CollectionID(ctx, conditionID, OutcomeIndexToIndexSet(outcome.TokenIndex), parent)
		if err != nil {
			return nil, fmt.Errorf("collection of outcome %q: %w", outcome.Title, err)
		}

		subShares, err := r.sharesUnder(ctx, sub, holder, sub.ConditionID, outcomeCollection)
		if err != nil {
			return nil, err
		}
		shares = append(shares, subShares...)
	}

	return shares, nil
}

// MarketShares resolves the AMM's own holdings, which is how remaining
// inventory per outcome is read.
func (r *Resolver) MarketShares(ctx context.Context, market *types.PredictionMarket) ([]OutcomeShare, error) {
	return r.SharesInMarket(ctx, market, market.Address)
}
