package positions_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/internal/chain"
	"github.com/predmarket/predmarket/internal/lifecycle"
	"github.com/predmarket/predmarket/internal/positions"
	"github.com/predmarket/predmarket/internal/testutil"
	"github.com/predmarket/predmarket/internal/trading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionIDDeterministic(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Will it rain tomorrow?", []string{"Yes", "No"}, 10)

	first, err := stack.Resolver.CollectionID(t.Context(), market.ConditionID, positions.OutcomeIndexToIndexSet(0), positions.RootCollection)
	require.NoError(t, err)
	second, err := stack.Resolver.CollectionID(t.Context(), market.ConditionID, positions.OutcomeIndexToIndexSet(0), positions.RootCollection)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, positions.RootCollection)

	other, err := stack.Resolver.CollectionID(t.Context(), market.ConditionID, positions.OutcomeIndexToIndexSet(1), positions.RootCollection)
	require.NoError(t, err)
	assert.NotEqual(t, first, other, "distinct index sets map to distinct collections")
}

func TestCollectionIDForIndices(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Coalition outcome?", []string{"A", "B", "C"}, 10)

	union, err := stack.Resolver.CollectionIDForIndices(t.Context(), market.ConditionID, []int{0, 2}, positions.RootCollection)
	require.NoError(t, err)

	direct, err := stack.Resolver.CollectionID(t.Context(), market.ConditionID, big.NewInt(5), positions.RootCollection)
	require.NoError(t, err)
	assert.Equal(t, direct, union)
}

func TestConditionalBalanceAfterBuy(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Will the launch succeed?", []string{"Yes", "No"}, 10)

	trader := stack.Identity(t, chain.RoleTrader, 0)
	stack.FundCollateral(t, trader.Address, 100)

	_, err := stack.Orchestrator.Trade(t.Context(), &trading.Request{
		Market:  market,
		Amounts: []*big.Float{big.NewFloat(2), big.NewFloat(0)},
	})
	require.NoError(t, err)

	balance, err := stack.Resolver.ConditionalBalance(t.Context(), market, 0, trader.Address, positions.BalanceQuery{})
	require.NoError(t, err)
	got, _ := balance.Float64()
	assert.InDelta(t, 2.0, got, 1e-9)

	other, err := stack.Resolver.ConditionalBalance(t.Context(), market, 1, trader.Address, positions.BalanceQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, other.Sign())
}

func TestSharesInMarketWalksEveryOutcome(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Which team wins?", []string{"Home", "Away", "Draw"}, 10)

	trader := stack.Identity(t, chain.RoleTrader, 1)
	stack.FundCollateral(t, trader.Address, 100)

	_, err := stack.Orchestrator.Trade(t.Context(), &trading.Request{
		Market:      market,
		TraderIndex: 1,
		Amounts:     []*big.Float{big.NewFloat(0), big.NewFloat(3), big.NewFloat(0)},
	})
	require.NoError(t, err)

	shares, err := stack.Resolver.SharesInMarket(t.Context(), market, trader.Address)
	require.NoError(t, err)
	require.Len(t, shares, 3)

	for _, share := range shares {
		got, _ := share.Balance.Float64()
		if share.Index == 1 {
			assert.InDelta(t, 3.0, got, 1e-9)
		} else {
			assert.Zero(t, got)
		}
		assert.Equal(t, market.Address, share.Market)
	}
}

func TestSharesInMarketTraversesSubMarkets(t *testing.T) {
	stack := testutil.NewStack(t)

	market, err := stack.Controller.CreateMarket(t.Context(),
		"Who wins the final?", []string{"Team A", "Team B"}, 10, lifecycle.CreateOptions{
			SubQuestions: map[string]string{"Team A": "By more than 10 points?"},
		})
	require.NoError(t, err)
	sub := market.SubMarkets["Team A"]
	require.NotNil(t, sub)

	trader := stack.Identity(t, chain.RoleTrader, 0)
	stack.FundCollateral(t, trader.Address, 100)

	_, err = stack.Orchestrator.Trade(t.Context(), &trading.Request{
		Market:  market,
		Amounts: []*big.Float{big.NewFloat(2), big.NewFloat(0)},
	})
	require.NoError(t, err)

	// Plant a nested holding: sub outcome 1, rooted under the "Team A"
	// collection of the parent condition.
	parentCollection, err := stack.Resolver.CollectionID(t.Context(), market.ConditionID,
		positions.OutcomeIndexToIndexSet(0), positions.RootCollection)
	require.NoError(t, err)
	nestedCollection, err := stack.Resolver.CollectionID(t.Context(), sub.ConditionID,
		positions.OutcomeIndexToIndexSet(1), parentCollection)
	require.NoError(t, err)
	nestedPosition, err := stack.Resolver.PositionID(t.Context(), market.CollateralToken, nestedCollection)
	require.NoError(t, err)
	stack.Ledger.SetPosition(nestedPosition, trader.Address, market.CollateralToken.ToMinor(big.NewFloat(5)))

	shares, err := stack.Resolver.SharesInMarket(t.Context(), market, trader.Address)
	require.NoError(t, err)
	require.Len(t, shares, 4, "two parent outcomes plus two nested outcomes")

	perMarket := make(map[common.Address]int)
	byKey := make(map[string]float64)
	for _, share := range shares {
		perMarket[share.Market]++
		got, _ := share.Balance.Float64()
		byKey[share.Market.Hex()+"/"+share.Outcome] = got
	}
	assert.Equal(t, 2, perMarket[market.Address])
	assert.Equal(t, 2, perMarket[sub.Address])
	assert.InDelta(t, 2.0, byKey[market.Address.Hex()+"/Team A"], 1e-9)
	assert.Zero(t, byKey[market.Address.Hex()+"/Team B"])
	assert.InDelta(t, 5.0, byKey[sub.Address.Hex()+"/No"], 1e-9)
	assert.Zero(t, byKey[sub.Address.Hex()+"/Yes"])
}

func TestConditionalBalanceNestedQuery(t *testing.T) {
	stack := testutil.NewStack(t)

	market, err := stack.Controller.CreateMarket(t.Context(),
		"Who takes the seat?", []string{"Incumbent", "Challenger"}, 10, lifecycle.CreateOptions{
			SubQuestions: map[string]string{"Challenger": "With an outright majority?"},
		})
	require.NoError(t, err)
	sub := market.SubMarkets["Challenger"]
	require.NotNil(t, sub)

	holder := stack.Identity(t, chain.RoleTrader, 1)

	parentCollection, err := stack.Resolver.CollectionID(t.Context(), market.ConditionID,
		positions.OutcomeIndexToIndexSet(1), positions.RootCollection)
	require.NoError(t, err)
	query := positions.BalanceQuery{
		SubConditionID:     sub.ConditionID,
		ParentCollectionID: parentCollection,
	}

	balance, err := stack.Resolver.ConditionalBalance(t.Context(), market, 0, holder.Address, query)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Sign())

	nestedCollection, err := stack.Resolver.CollectionID(t.Context(), sub.ConditionID,
		positions.OutcomeIndexToIndexSet(0), parentCollection)
	require.NoError(t, err)
	nestedPosition, err := stack.Resolver.PositionID(t.Context(), market.CollateralToken, nestedCollection)
	require.NoError(t, err)
	stack.Ledger.SetPosition(nestedPosition, holder.Address, market.CollateralToken.ToMinor(big.NewFloat(3)))

	balance, err = stack.Resolver.ConditionalBalance(t.Context(), market, 0, holder.Address, query)
	require.NoError(t, err)
	got, _ := balance.Float64()
	assert.InDelta(t, 3.0, got, 1e-9)

	// The same outcome index at the root is a different position entirely.
	root, err := stack.Resolver.ConditionalBalance(t.Context(), market, 0, holder.Address, positions.BalanceQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, root.Sign())
}
