package pricing_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/internal/testutil"
	"github.com/predmarket/predmarket/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForMarketVariants(t *testing.T) {
	stack := testutil.NewStack(t)

	tests := []struct {
		name       string
		marketType types.MarketType
		wantErr    bool
	}{
		{name: "lmsr", marketType: types.MarketTypeLMSR},
		{name: "fixed product", marketType: types.MarketTypeFixedProduct},
		{name: "order book", marketType: types.MarketTypeOrderBook},
		{name: "unknown", marketType: types.MarketType("parimutuel"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := testutil.NewMarketFixture(common.HexToAddress("0x42"), []string{"Yes", "No"})
			market.Type = tt.marketType

			maker, err := stack.Engine.ForMarket(market)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, maker)
		})
	}
}

func TestUnimplementedVariantsFailClosed(t *testing.T) {
	stack := testutil.NewStack(t)

	for _, marketType := range []types.MarketType{types.MarketTypeFixedProduct, types.MarketTypeOrderBook} {
		market := testutil.NewMarketFixture(common.HexToAddress("0x42"), []string{"Yes", "No"})
		market.Type = marketType

		_, err := stack.Engine.NetCost(t.Context(), market, []*big.Int{big.NewInt(1), big.NewInt(0)})
		assert.ErrorIs(t, err, types.ErrNotImplemented, string(marketType))

		_, err = stack.Engine.MarginalPrice(t.Context(), market, 0)
		assert.ErrorIs(t, err, types.ErrNotImplemented, string(marketType))
	}
}

func TestNetCostBuyIsPositive(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Net cost sign?", []string{"Yes", "No"}, 10)

	amount := market.CollateralToken.ToMinor(big.NewFloat(1))
	cost, err := stack.Engine.SingleOutcomeCost(t.Context(), market, 0, amount)
	require.NoError(t, err)
	assert.Positive(t, cost.Sign(), "buying shares must cost collateral")

	sellCost, err := stack.Engine.SingleOutcomeCost(t.Context(), market, 0, new(big.Int).Neg(amount))
	require.NoError(t, err)
	assert.True(t, sellCost.Sign() <= 0, "selling into a balanced book never costs collateral")
}

func TestNetCostRejectsShortVector(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Vector length?", []string{"Yes", "No", "Maybe"}, 10)

	_, err := stack.Engine.NetCost(t.Context(), market, []*big.Int{big.NewInt(1)})
	require.Error(t, err)
}

func TestMarginalPricesOfFreshMarketAreUniform(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Uniform start?", []string{"Yes", "No"}, 10)

	for i := range market.Outcomes {
		price, err := stack.Engine.MarginalPrice(t.Context(), market, i)
		require.NoError(t, err)
		got, _ := price.Float64()
		assert.InDelta(t, 0.5, got, 1e-6)
	}
}

func TestMarginalPriceRejectsBadIndex(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Bad index?", []string{"Yes", "No"}, 10)

	_, err := stack.Engine.MarginalPrice(t.Context(), market, 5)
	assert.ErrorIs(t, err, types.ErrInvalidOutcome)

	_, err = stack.Engine.MarginalPrice(t.Context(), market, -1)
	assert.ErrorIs(t, err, types.ErrInvalidOutcome)
}

func TestFundingAndFeeViews(t *testing.T) {
	stack := testutil.NewStack(t)
	market := stack.CreateMarket(t, "Funding view?", []string{"Yes", "No"}, 25)

	funding, err := stack.Controller.MarketFunding(t.Context(), market)
	require.NoError(t, err)
	got, _ := funding.Float64()
	assert.InDelta(t, 25.0, got, 1e-6)

	fee, err := stack.Controller.MarketTradeFee(t.Context(), market)
	require.NoError(t, err)
	assert.Equal(t, 0, fee.Sign())
}
