package trading

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predmarket/predmarket/pkg/types"
)

func TestApplySlippage(t *testing.T) {
	tests := []struct {
		name string
		cost int64
		rate float64
		want int64
	}{
		{name: "zero rate returns quote", cost: 1000, rate: 0, want: 1000},
		{name: "one percent", cost: 1000, rate: 0.01, want: 1010},
		{name: "rounds half up", cost: 50, rate: 0.01, want: 51},
		{name: "rounds down below half", cost: 40, rate: 0.01, want: 40},
		{name: "zero cost", cost: 0, rate: 0.05, want: 0},
		{name: "large cost", cost: 1_000_000_000, rate: 0.025, want: 1_025_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applySlippage(big.NewInt(tt.cost), tt.rate)
			assert.Equal(t, big.NewInt(tt.want), got)
		})
	}
}

func TestApplySlippageNeverBelowQuote(t *testing.T) {
	for _, cost := range []int64{1, 7, 99, 12345, 1_000_000} {
		quote := big.NewInt(cost)
		buffered := applySlippage(quote, 0.01)
		assert.True(t, buffered.Cmp(quote) >= 0, "buffered cost %s below quote %s", buffered, quote)
	}
}

func TestValidateRequest(t *testing.T) {
	market := &types.PredictionMarket{
		Outcomes: []types.OutcomeToken{
			{Title: "Yes", TokenIndex: 0},
			{Title: "No", TokenIndex: 1},
		},
	}

	tests := []struct {
		name    string
		req     *Request
		wantErr string
	}{
		{
			name:    "no market",
			req:     &Request{Amounts: []*big.Float{big.NewFloat(1)}},
			wantErr: "no market",
		},
		{
			name:    "empty amounts",
			req:     &Request{Market: market},
			wantErr: "empty amount vector",
		},
		{
			name:    "length mismatch",
			req:     &Request{Market: market, Amounts: []*big.Float{big.NewFloat(1)}},
			wantErr: "market has 2 outcomes",
		},
		{
			name:    "nil amount",
			req:     &Request{Market: market, Amounts: []*big.Float{big.NewFloat(1), nil}},
			wantErr: "nil amount",
		},
		{
			name:    "all zero",
			req:     &Request{Market: market, Amounts: []*big.Float{new(big.Float), new(big.Float)}},
			wantErr: "no-op",
		},
		{
			name: "valid",
			req:  &Request{Market: market, Amounts: []*big.Float{big.NewFloat(1), new(big.Float)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
