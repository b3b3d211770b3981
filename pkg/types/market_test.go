package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorRounding(t *testing.T) {
	token := CollateralToken{Symbol: "WETH", Decimals: 6}

	tests := []struct {
		name   string
		amount float64
		want   int64
	}{
		{name: "whole", amount: 1, want: 1_000_000},
		{name: "fraction", amount: 12.5, want: 12_500_000},
		{name: "rounds up", amount: 0.0000006, want: 1},
		{name: "rounds down", amount: 0.0000004, want: 0},
		{name: "negative rounds away from zero", amount: -0.0000006, want: -1},
		{name: "zero", amount: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := token.ToMinor(big.NewFloat(tt.amount))
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestFromMinorInvertsToMinor(t *testing.T) {
	token := CollateralToken{Symbol: "WETH", Decimals: 18}

	amount := big.NewFloat(3.25)
	back := token.FromMinor(token.ToMinor(amount))

	got, _ := back.Float64()
	assert.InDelta(t, 3.25, got, 1e-12)
}

func TestMarketStatusTransitions(t *testing.T) {
	market := &PredictionMarket{StartedAt: time.Now()}
	assert.Equal(t, MarketOngoing, market.Status())
	assert.False(t, market.IsClosed())
	assert.False(t, market.IsResolved())

	// Resolving an open market is not allowed.
	assert.False(t, market.MarkResolved(time.Now()))
	assert.Equal(t, MarketOngoing, market.Status())

	closedAt := time.Now()
	require.True(t, market.MarkClosed(closedAt))
	assert.Equal(t, MarketClosed, market.Status())

	// A second close keeps the original timestamp.
	assert.False(t, market.MarkClosed(closedAt.Add(time.Hour)))
	assert.Equal(t, closedAt, *market.ClosedAt)

	require.True(t, market.MarkResolved(time.Now()))
	assert.Equal(t, MarketResolved, market.Status())

	assert.False(t, market.MarkResolved(time.Now()), "resolution is final")
}

func TestInsufficientFundsErrorMessage(t *testing.T) {
	err := &InsufficientFundsError{
		Symbol:    "WETH",
		Cost:      big.NewFloat(10.5),
		Balance:   big.NewFloat(4),
		Shortfall: big.NewFloat(6.5),
	}

	msg := err.Error()
	assert.Contains(t, msg, "insufficient funds")
	assert.Contains(t, msg, "10.500 WETH")
	assert.Contains(t, msg, "6.500")
	assert.Contains(t, msg, "4.000")
}

func TestInvalidTruenessVectorErrorMessage(t *testing.T) {
	err := &InvalidTruenessVectorError{Got: 3, Want: 2}
	assert.Contains(t, err.Error(), "got 3 payouts")
	assert.Contains(t, err.Error(), "2 outcome slots")

	zero := &InvalidTruenessVectorError{Got: 2, Want: 2, Reason: "every payout is zero"}
	assert.Contains(t, zero.Error(), "every payout is zero")
	assert.NotContains(t, zero.Error(), "outcome slots")
}

func TestLedgerCallErrorUnwraps(t *testing.T) {
	cause := ErrSequencingConflict
	err := &LedgerCallError{Target: "collateral", Method: "deposit", Err: cause}

	assert.ErrorIs(t, err, ErrSequencingConflict)
	assert.Contains(t, err.Error(), "collateral.deposit")
}
