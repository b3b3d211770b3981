// Package marketstore persists the market registry: the catalog of deployed
// markets with their lifecycle timestamps and nested sub-market trees.
package marketstore

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/pkg/types"
)

// ErrNotFound is returned when no market matches the requested address.
var ErrNotFound = errors.New("market not found")

// Store is the market registry interface.
type Store interface {
	// FindAll returns every stored market, oldest first.
	FindAll() ([]*types.PredictionMarket, error)

	// Find returns the market deployed at the given address.
	Find(address common.Address) (*types.PredictionMarket, error)

	// Update inserts or replaces a market keyed by its address and returns
	// the full registry.
	Update(market *types.PredictionMarket) ([]*types.PredictionMarket, error)

	// GetRecent returns the most recently stored market, or nil when the
	// registry is empty.
	GetRecent() (*types.PredictionMarket, error)

	// DeleteOld trims the registry down to at most max markets, dropping the
	// oldest first.
	DeleteOld(max int) error

	// Close releases the underlying resources.
	Close() error
}
