package models

import (
	"fmt"
	"time"
)

// StrategyConfig holds the strategy parameters for one pair. Values are
// plain data; build per-pair variants with ForPair rather than mutating.
type StrategyConfig struct {
	AccountSize       float64
	SpotTargetPct     float64
	FuturesTargetPct  float64
	FundingCostAnnual float64
	Leverage          float64
	ContractSize      float64 // underlying units per futures contract
	MinMonthlyBasis   float64
}

// DefaultStrategyConfig mirrors the documented strategy defaults.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		AccountSize:       200_000,
		SpotTargetPct:     0.50,
		FuturesTargetPct:  0.50,
		FundingCostAnnual: 0.05,
		Leverage:          1.0,
		ContractSize:      5.0,
		MinMonthlyBasis:   0.005,
	}
}

// SpotTargetAmount is the informational spot-leg target. Actual sizing is
// anchored on the futures leg.
func (c StrategyConfig) SpotTargetAmount() float64 {
	return c.AccountSize * c.SpotTargetPct
}

// FuturesTargetAmount is the notional target for the futures leg.
func (c StrategyConfig) FuturesTargetAmount() float64 {
	return c.AccountSize * c.FuturesTargetPct
}

// Validate checks the invariants sizing depends on.
func (c StrategyConfig) Validate() error {
	if c.AccountSize <= 0 {
		return fmt.Errorf("account_size must be positive, got %v", c.AccountSize)
	}
	if c.ContractSize <= 0 {
		return fmt.Errorf("contract_size must be positive, got %v", c.ContractSize)
	}
	return nil
}

// ForPair derives a new config scoped to one pair: the pair's allocation
// fraction replaces both target percentages and its contract size replaces
// the global one. The receiver is not modified.
func (c StrategyConfig) ForPair(pair PairConfig) StrategyConfig {
	out := c
	if pair.Allocation > 0 {
		out.SpotTargetPct = pair.Allocation
		out.FuturesTargetPct = pair.Allocation
	}
	if pair.ContractSize > 0 {
		out.ContractSize = pair.ContractSize
	}
	return out
}

// PairConfig identifies one monitored asset pair and its instrument
// symbols.
type PairConfig struct {
	ID            string
	SpotSymbol    string // ETF ticker for the spot leg
	FuturesSymbol string
	CryptoSymbol  string // spot-price fallback symbol, empty for non-crypto pairs
	Allocation    float64
	ContractSize  float64
	Enabled       bool
}

// ExecutionConfig controls whether and how signals become orders.
type ExecutionConfig struct {
	Enabled             bool
	AutoTrade           bool
	DryRun              bool
	OrderType           OrderType
	LimitOffsetPct      float64
	MaxETFShares        int
	MaxFuturesContracts int
	OrderTimeout        time.Duration
	FillPollInterval    time.Duration
	StateDir            string
}

// DefaultExecutionConfig is safe: execution disabled, dry-run on.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		Enabled:             false,
		AutoTrade:           false,
		DryRun:              true,
		OrderType:           OrderTypeLimit,
		LimitOffsetPct:      0.001,
		MaxETFShares:        10000,
		MaxFuturesContracts: 50,
		OrderTimeout:        30 * time.Second,
		FillPollInterval:    500 * time.Millisecond,
		StateDir:            "output/execution",
	}
}
