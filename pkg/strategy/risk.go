package strategy

import (
	"math"

	"github.com/gregtusar/carry/pkg/models"
)

// RiskLevel is an ordinal severity bucket used by monitor alerting. It
// feeds alerts only, never the signal itself.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Risk pairs a severity with a short explanation.
type Risk struct {
	Level  RiskLevel
	Detail string
}

// Open-interest crowding thresholds, in contracts.
const (
	crowdedOpenInterest = 40000
	risingOpenInterest  = 30000
)

// AssessRisk classifies the independent risk factors of the carry trade.
// Keys: funding, basis, liquidity, crowding, operational.
func AssessRisk(snap models.MarketSnapshot, cfg models.StrategyConfig) map[string]Risk {
	risks := make(map[string]Risk, 5)

	if cfg.FundingCostAnnual > 0.06 {
		risks["funding"] = Risk{RiskHigh, "Funding cost elevated (>6%)"}
	} else {
		risks["funding"] = Risk{RiskModerate, "Normal funding environment"}
	}

	monthly := snap.MonthlyBasis()
	switch {
	case monthly < 0:
		risks["basis"] = Risk{RiskCritical, "Backwardation (negative carry)"}
	case monthly < cfg.MinMonthlyBasis:
		risks["basis"] = Risk{RiskHigh, "Basis near zero"}
	default:
		risks["basis"] = Risk{RiskLow, "Positive contango"}
	}

	disc, hasDisc := snap.ETFDiscountPremium()
	switch {
	case hasDisc && disc < etfDiscountLimit:
		risks["liquidity"] = Risk{RiskHigh, "ETF trading at discount >1%"}
	case hasDisc && math.Abs(disc) < 0.002:
		risks["liquidity"] = Risk{RiskLow, "ETF tracking NAV closely"}
	default:
		risks["liquidity"] = Risk{RiskModerate, "Normal ETF tracking"}
	}

	switch {
	case snap.OpenInterest > crowdedOpenInterest:
		risks["crowding"] = Risk{RiskHigh, "Open interest >40k contracts (crowded)"}
	case snap.OpenInterest > risingOpenInterest:
		risks["crowding"] = Risk{RiskModerate, "Open interest rising"}
	default:
		risks["crowding"] = Risk{RiskLow, "Healthy OI levels"}
	}

	if snap.DaysToExpiry() < 7 {
		risks["operational"] = Risk{RiskHigh, "Near expiry (rollover soon)"}
	} else {
		risks["operational"] = Risk{RiskLow, "Sufficient time to expiry"}
	}

	return risks
}

// OverallRisk collapses individual assessments into one headline level.
func OverallRisk(risks map[string]Risk) RiskLevel {
	elevated := 0
	for _, r := range risks {
		if r.Level == RiskHigh || r.Level == RiskCritical {
			elevated++
		}
	}
	switch {
	case elevated >= 3:
		return RiskHigh
	case elevated >= 1:
		return RiskModerate
	default:
		return RiskLow
	}
}
