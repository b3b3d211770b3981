package types

import (
	"errors"
	"fmt"
	"math/big"
)

// Sentinel errors shared across packages.
var (
	// ErrNotImplemented marks market-maker variants and oracle types that are
	// declared but not implemented (fixed-product, order-book, decentralized oracle).
	ErrNotImplemented = errors.New("not implemented")

	// ErrEventNotFound is returned when a contract ABI exposes no event with
	// the requested name.
	ErrEventNotFound = errors.New("event not found in contract ABI")

	// ErrInvalidOutcome is returned when collection or position resolution
	// yields an empty identifier for the requested outcome.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrUnsupportedCollateral is returned when the configured collateral
	// token exposes no contract interface.
	ErrUnsupportedCollateral = errors.New("unsupported collateral token")

	// ErrSequencingConflict classifies nonce-mismatch / underpriced
	// transaction failures. Recovered internally by the gateway's single
	// retry; only surfaced when the retry fails too.
	ErrSequencingConflict = errors.New("transaction sequencing conflict")
)

// InsufficientFundsError is returned when a buyer's collateral balance cannot
// cover the slippage-buffered cost and the top-up path is unavailable.
// Amounts are in decimal units of the collateral token so the trader can act
// on them directly.
type InsufficientFundsError struct {
	Symbol    string
	Cost      *big.Float
	Balance   *big.Float
	Shortfall *big.Float
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: purchase may cost %s %s, need %s more than the current balance of %s",
		e.Cost.Text('f', 3), e.Symbol, e.Shortfall.Text('f', 3), e.Balance.Text('f', 3))
}

// InvalidTruenessVectorError is returned when a payout vector cannot resolve
// a condition: wrong length, or no non-zero payout. Reason overrides the
// default length message when set.
type InvalidTruenessVectorError struct {
	Got    int
	Want   int
	Reason string
}

func (e *InvalidTruenessVectorError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid trueness vector: %s", e.Reason)
	}
	return fmt.Sprintf("invalid trueness vector: got %d payouts, condition has %d outcome slots", e.Got, e.Want)
}

// LedgerCallError wraps a failed ledger call with enough context to reproduce
// it: the target contract, the function, and the underlying cause.
type LedgerCallError struct {
	Target string
	Method string
	Err    error
}

func (e *LedgerCallError) Error() string {
	return fmt.Sprintf("ledger call %s.%s failed: %v", e.Target, e.Method, e.Err)
}

func (e *LedgerCallError) Unwrap() error {
	return e.Err
}
