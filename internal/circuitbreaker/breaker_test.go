package circuitbreaker

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubBalance struct {
	mu      sync.Mutex
	balance float64
}

func (s *stubBalance) set(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = v
}

func (s *stubBalance) fetch(context.Context) (*big.Float, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return big.NewFloat(s.balance), nil
}

func newTestBreaker(t *testing.T, stub *stubBalance) *CollateralBreaker {
	t.Helper()
	breaker, err := New(&Config{
		CheckInterval:   time.Minute,
		TradeMultiplier: 2.0,
		MinAbsolute:     10.0,
		HysteresisRatio: 1.5,
		FetchBalance:    stub.fetch,
		Logger:          zap.NewNop(),
	})
	require.NoError(t, err)
	return breaker
}

func TestNewValidatesConfig(t *testing.T) {
	stub := &stubBalance{balance: 100}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "nil fetcher", mutate: func(c *Config) { c.FetchBalance = nil }},
		{name: "nil logger", mutate: func(c *Config) { c.Logger = nil }},
		{name: "zero interval", mutate: func(c *Config) { c.CheckInterval = 0 }},
		{name: "zero multiplier", mutate: func(c *Config) { c.TradeMultiplier = 0 }},
		{name: "zero min absolute", mutate: func(c *Config) { c.MinAbsolute = 0 }},
		{name: "hysteresis below one", mutate: func(c *Config) { c.HysteresisRatio = 0.9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				CheckInterval:   time.Minute,
				TradeMultiplier: 2.0,
				MinAbsolute:     10.0,
				HysteresisRatio: 1.5,
				FetchBalance:    stub.fetch,
				Logger:          zap.NewNop(),
			}
			tt.mutate(cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	_, err := New(nil)
	assert.Error(t, err)
}

func TestBreakerStartsAllowed(t *testing.T) {
	breaker := newTestBreaker(t, &stubBalance{balance: 100})
	assert.True(t, breaker.Allow())
}

func TestBreakerOpensBelowThreshold(t *testing.T) {
	stub := &stubBalance{balance: 100}
	breaker := newTestBreaker(t, stub)

	require.NoError(t, breaker.CheckBalance(t.Context()))
	assert.True(t, breaker.Allow())

	stub.set(5) // below the 10.0 floor
	require.NoError(t, breaker.CheckBalance(t.Context()))
	assert.False(t, breaker.Allow())
}

func TestBreakerHysteresisOnReopen(t *testing.T) {
	stub := &stubBalance{balance: 5}
	breaker := newTestBreaker(t, stub)

	require.NoError(t, breaker.CheckBalance(t.Context()))
	require.False(t, breaker.Allow())

	// Above the disable threshold but below enable (10 * 1.5): stays open.
	stub.set(12)
	require.NoError(t, breaker.CheckBalance(t.Context()))
	assert.False(t, breaker.Allow())

	stub.set(20)
	require.NoError(t, breaker.CheckBalance(t.Context()))
	assert.True(t, breaker.Allow())
}

func TestRecordTradeRaisesThreshold(t *testing.T) {
	stub := &stubBalance{balance: 100}
	breaker := newTestBreaker(t, stub)

	// Average trade of 30 with multiplier 2 lifts the floor to 60.
	breaker.RecordTrade(30)
	breaker.RecordTrade(30)

	status := breaker.GetStatus()
	assert.InDelta(t, 30.0, status.AvgTradeSize, 1e-9)
	assert.InDelta(t, 60.0, status.DisableThreshold, 1e-9)
	assert.InDelta(t, 90.0, status.EnableThreshold, 1e-9)

	stub.set(50)
	require.NoError(t, breaker.CheckBalance(t.Context()))
	assert.False(t, breaker.Allow())
}

func TestRecordTradeIgnoresNonPositive(t *testing.T) {
	breaker := newTestBreaker(t, &stubBalance{balance: 100})

	breaker.RecordTrade(0)
	breaker.RecordTrade(-4)

	assert.Zero(t, breaker.GetStatus().RecentTradeCount)
}

func TestRecordTradeWindowIsBounded(t *testing.T) {
	breaker := newTestBreaker(t, &stubBalance{balance: 100})

	for i := 0; i < tradeWindow+10; i++ {
		breaker.RecordTrade(1)
	}
	assert.Equal(t, tradeWindow, breaker.GetStatus().RecentTradeCount)
}
