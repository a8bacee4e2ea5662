// Package strategy turns market snapshots into trading decisions: signal
// generation, risk classification, and delta-neutral position sizing. The
// functions are pure so the live monitor and the backtester behave
// identically on identical inputs.
package strategy

import (
	"fmt"

	"github.com/gregtusar/carry/pkg/basis"
	"github.com/gregtusar/carry/pkg/models"
)

// Fixed strategy thresholds (monthly basis, as fractions). Only the entry
// floor is configurable; these are load-bearing for parity between live
// trading and backtests.
const (
	stopLossCompressed = 0.002
	etfDiscountLimit   = -0.01
	fullExitBasis      = 0.035
	partialExitBasis   = 0.025
	strongEntryBasis   = 0.01
	highSentiment      = 0.8
)

// GenerateSignal evaluates one snapshot against the strategy rules in
// fixed priority order: stop-loss conditions first, then take-profit,
// then entries.
func GenerateSignal(snap models.MarketSnapshot, cfg models.StrategyConfig) (models.Signal, string) {
	monthly := snap.MonthlyBasis()

	if monthly < 0 {
		return models.SignalStopLoss, "Backwardation detected - basis negative"
	}
	if monthly < stopLossCompressed {
		return models.SignalStopLoss, "Basis compressed below 0.2% monthly"
	}

	monthlyFunding := cfg.FundingCostAnnual / 12
	if monthly < monthlyFunding {
		return models.SignalStopLoss,
			fmt.Sprintf("Basis below funding cost (%.2f%% monthly)", monthlyFunding*100)
	}

	if disc, ok := snap.ETFDiscountPremium(); ok && disc < etfDiscountLimit {
		return models.SignalStopLoss, "ETF discount > 1% - liquidity stress"
	}

	if monthly > fullExitBasis {
		return models.SignalFullExit, "Basis at peak levels (>3.5% monthly) - take profit"
	}
	if monthly > partialExitBasis {
		return models.SignalPartialExit, "Elevated basis (>2.5% monthly) - partial exit"
	}

	if monthly > strongEntryBasis {
		if snap.SentimentIndex > highSentiment {
			return models.SignalStrongEntry, "Strong basis + high Fear & Greed - optimal entry"
		}
		return models.SignalStrongEntry, "Strong basis >1.0% monthly"
	}

	if monthly > cfg.MinMonthlyBasis {
		return models.SignalAcceptableEntry,
			fmt.Sprintf("Acceptable basis %.1f-1.0%% monthly", cfg.MinMonthlyBasis*100)
	}

	return models.SignalNoEntry,
		fmt.Sprintf("Basis too low (%.2f%% monthly, min %.1f%%)", monthly*100, cfg.MinMonthlyBasis*100)
}

// CalculateReturns derives the carry returns for a snapshot under the
// pair's config. All-zero at or past expiry.
func CalculateReturns(snap models.MarketSnapshot, cfg models.StrategyConfig) basis.Returns {
	return basis.NetReturn(snap.BasisPercent(), snap.DaysToExpiry(), cfg.FundingCostAnnual, cfg.Leverage)
}
