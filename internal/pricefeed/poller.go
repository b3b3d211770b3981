package pricefeed

import (
	"context"
	"time"

	"github.com/predmarket/predmarket/internal/lifecycle"
	"github.com/predmarket/predmarket/internal/marketstore"
	"go.uber.org/zap"
)

// Poller periodically quotes every registered market and publishes the
// snapshots to the hub.
type Poller struct {
	hub        *Hub
	controller *lifecycle.Controller
	store      marketstore.Store
	interval   time.Duration
	logger     *zap.Logger
}

// NewPoller wires a poller; call Run to start it.
func NewPoller(hub *Hub, controller *lifecycle.Controller, store marketstore.Store, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Poller{
		hub:        hub,
		controller: controller,
		store:      store,
		interval:   interval,
		logger:     logger,
	}
}

// Run quotes markets on the configured interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.publishAll(ctx)
		}
	}
}

func (p *Poller) publishAll(ctx context.Context) {
	markets, err := p.store.FindAll()
	if err != nil {
		p.logger.Error("pricefeed-store-read-failed", zap.Error(err))
		return
	}

	for _, market := range markets {
		priced, err := p.controller.OutcomePrices(ctx, market, 1)
		if err != nil {
			p.logger.Warn("pricefeed-quote-failed",
				zap.String("market", market.Address.Hex()),
				zap.Error(err))
			continue
		}

		prices := make(map[string]string, len(priced))
		for _, outcome := range priced {
			if outcome.Price == nil {
				continue
			}
			prices[outcome.Outcome] = outcome.Price.Text('f', 6)
		}

		p.hub.Publish(Snapshot{
			Market:    market.Address.Hex(),
			Question:  market.Question,
			Status:    string(market.Status()),
			Prices:    prices,
			Timestamp: time.Now().UTC(),
		})
	}
}
