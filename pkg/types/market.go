package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketType identifies the automated market maker variant backing a market.
type MarketType string

const (
	MarketTypeLMSR         MarketType = "lmsr"
	MarketTypeFixedProduct MarketType = "fpmm"
	MarketTypeOrderBook    MarketType = "orderbook"
)

// OracleType identifies how a market's condition gets resolved.
type OracleType string

const (
	OracleCentralized   OracleType = "centralized"
	OracleDecentralized OracleType = "decentralized"
)

// Oracle is the account entitled to report the payout vector for a condition.
type Oracle struct {
	Address common.Address `json:"address"`
	Type    OracleType     `json:"type"`
}

// CollateralToken is the fungible asset backing all positions in a market tree.
type CollateralToken struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// ToMinor converts a decimal amount to the token's minor-unit representation.
// The result is rounded to the nearest integral minor unit.
func (t CollateralToken) ToMinor(amount *big.Float) *big.Int {
	scaled := new(big.Float).Mul(amount, pow10(int(t.Decimals)))
	return roundToInt(scaled)
}

// FromMinor converts a minor-unit amount to a decimal amount.
func (t CollateralToken) FromMinor(amount *big.Int) *big.Float {
	return new(big.Float).Quo(new(big.Float).SetInt(amount), pow10(int(t.Decimals)))
}

func pow10(n int) *big.Float {
	return new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil))
}

// roundToInt rounds a big.Float to the nearest integer, away from zero at .5.
func roundToInt(f *big.Float) *big.Int {
	half := big.NewFloat(0.5)
	adjusted := new(big.Float)
	if f.Sign() < 0 {
		adjusted.Sub(f, half)
	} else {
		adjusted.Add(f, half)
	}
	i, _ := adjusted.Int(nil)
	return i
}

// Condition is a question with a fixed number of mutually exclusive outcome
// slots, resolved by a designated oracle. Its id is a deterministic function
// of (oracle, questionID, outcomeSlotCount), computed by the ledger.
type Condition struct {
	ID               common.Hash    `json:"id"`
	Oracle           common.Address `json:"oracle"`
	Question         string         `json:"question"`
	QuestionID       common.Hash    `json:"questionId"`
	OutcomeSlotCount int            `json:"outcomeSlotCount"`
}

// OutcomeToken is a 0-based slot in its condition. TruenessRatio is populated
// only after resolution; the ratios across a condition's slots sum to 1.
// Sub links to the outcomes of a child condition nested under this slot.
type OutcomeToken struct {
	Title         string         `json:"title"`
	TokenIndex    int            `json:"tokenIndex"`
	TruenessRatio *float64       `json:"truenessRatio,omitempty"`
	Sub           []OutcomeToken `json:"sub,omitempty"`
}

// SubCondition describes a nested binary condition rooted at a parent outcome.
type SubCondition struct {
	ID         common.Hash `json:"id"`
	Question   string      `json:"question"`
	QuestionID common.Hash `json:"questionId"`
}

// PredictionMarket is a deployed AMM instance for one condition. SubMarkets
// maps an outcome title to a fully independent child market whose condition is
// nested under the parent outcome's collection.
type PredictionMarket struct {
	Address          common.Address               `json:"address"`
	Type             MarketType                   `json:"type"`
	Question         string                       `json:"question"`
	QuestionID       common.Hash                  `json:"questionId"`
	ConditionID      common.Hash                  `json:"conditionId"`
	Outcomes         []OutcomeToken               `json:"outcomes"`
	SubConditions    map[string]SubCondition      `json:"subConditions,omitempty"`
	SubMarkets       map[string]*PredictionMarket `json:"subMarkets,omitempty"`
	CollateralToken  CollateralToken              `json:"collateralToken"`
	Oracle           Oracle                       `json:"oracle"`
	Creator          common.Address               `json:"creator"`
	InitialLiquidity float64                      `json:"initialLiquidity"`
	StartedAt        time.Time                    `json:"startedAt"`
	ClosedAt         *time.Time                   `json:"closedAt,omitempty"`
	ResolvedAt       *time.Time                   `json:"resolvedAt,omitempty"`
}

// MarketStatus is derived from the market's timestamp transitions.
type MarketStatus string

const (
	MarketOngoing  MarketStatus = "ongoing"
	MarketClosed   MarketStatus = "closed"
	MarketResolved MarketStatus = "resolved"
)

func (m *PredictionMarket) Status() MarketStatus {
	switch {
	case m.ResolvedAt != nil:
		return MarketResolved
	case m.ClosedAt != nil:
		return MarketClosed
	default:
		return MarketOngoing
	}
}

func (m *PredictionMarket) IsClosed() bool   { return m.ClosedAt != nil }
func (m *PredictionMarket) IsResolved() bool { return m.ResolvedAt != nil }

// MarkClosed sets closedAt once. Returns false when the market was already
// closed, in which case the timestamp is left unchanged.
func (m *PredictionMarket) MarkClosed(at time.Time) bool {
	if m.ClosedAt != nil {
		return false
	}
	m.ClosedAt = &at
	return true
}

// MarkResolved sets resolvedAt once. It requires closedAt to be set first.
func (m *PredictionMarket) MarkResolved(at time.Time) bool {
	if m.ClosedAt == nil || m.ResolvedAt != nil {
		return false
	}
	m.ResolvedAt = &at
	return true
}

// PricedOutcome pairs an outcome with its quoted price in decimal collateral
// units.
type PricedOutcome struct {
	Outcome string     `json:"outcome"`
	Index   int        `json:"index"`
	Price   *big.Float `json:"price"`
}
