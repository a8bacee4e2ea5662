package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gregtusar/carry/pkg/models"
)

var asOf = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC) // a Monday

// snapWithMonthlyBasis builds a 30-day-expiry snapshot whose monthly basis
// equals the given fraction exactly.
func snapWithMonthlyBasis(monthly float64) models.MarketSnapshot {
	spot := 100000.0
	return models.MarketSnapshot{
		SpotPrice:     spot,
		FuturesPrice:  spot * (1 + monthly),
		FuturesExpiry: asOf.AddDate(0, 0, 30),
		AsOf:          asOf,
	}
}

func TestGenerateSignal_BackwardationStopLoss(t *testing.T) {
	sig, reason := GenerateSignal(snapWithMonthlyBasis(-0.0001), models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalStopLoss, sig)
	assert.Contains(t, reason, "Backwardation")
}

func TestGenerateSignal_CompressedStopLoss(t *testing.T) {
	sig, reason := GenerateSignal(snapWithMonthlyBasis(0.001), models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalStopLoss, sig)
	assert.Contains(t, reason, "compressed")
}

func TestGenerateSignal_BelowFundingStopLoss(t *testing.T) {
	// 0.3% monthly clears the compression floor but not 5%/12 funding.
	sig, reason := GenerateSignal(snapWithMonthlyBasis(0.003), models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalStopLoss, sig)
	assert.Contains(t, reason, "funding cost")
}

func TestGenerateSignal_ETFDiscountStopLoss(t *testing.T) {
	snap := snapWithMonthlyBasis(0.02)
	snap.ETFPrice = 49.0
	snap.ETFNAV = 50.0 // 2% discount
	sig, reason := GenerateSignal(snap, models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalStopLoss, sig)
	assert.Contains(t, reason, "liquidity stress")
}

func TestGenerateSignal_ETFPremiumIsFine(t *testing.T) {
	snap := snapWithMonthlyBasis(0.02)
	snap.ETFPrice = 50.5
	snap.ETFNAV = 50.0
	sig, _ := GenerateSignal(snap, models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalStrongEntry, sig)
}

func TestGenerateSignal_FullExit(t *testing.T) {
	sig, reason := GenerateSignal(snapWithMonthlyBasis(0.04), models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalFullExit, sig)
	assert.Contains(t, reason, "take profit")
}

func TestGenerateSignal_PartialExit(t *testing.T) {
	sig, _ := GenerateSignal(snapWithMonthlyBasis(0.03), models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalPartialExit, sig)
}

func TestGenerateSignal_StrongEntryAtTwoPercent(t *testing.T) {
	// Reference scenario: spot 100000, futures 102000, 30 days out.
	snap := models.MarketSnapshot{
		SpotPrice:     100000,
		FuturesPrice:  102000,
		FuturesExpiry: asOf.AddDate(0, 0, 30),
		AsOf:          asOf,
	}
	sig, reason := GenerateSignal(snap, models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalStrongEntry, sig)
	assert.Contains(t, reason, "Strong basis")
}

func TestGenerateSignal_StrongEntryHighSentiment(t *testing.T) {
	snap := snapWithMonthlyBasis(0.02)
	snap.SentimentIndex = 0.85
	sig, reason := GenerateSignal(snap, models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalStrongEntry, sig)
	assert.Contains(t, reason, "optimal entry")
}

func TestGenerateSignal_AcceptableEntry(t *testing.T) {
	sig, _ := GenerateSignal(snapWithMonthlyBasis(0.008), models.DefaultStrategyConfig())
	assert.Equal(t, models.SignalAcceptableEntry, sig)
}

func TestGenerateSignal_NoEntry(t *testing.T) {
	cfg := models.DefaultStrategyConfig()
	cfg.FundingCostAnnual = 0.02 // monthly funding 0.167%, below the test basis
	sig, _ := GenerateSignal(snapWithMonthlyBasis(0.0045), cfg)
	assert.Equal(t, models.SignalNoEntry, sig)
}

func TestGenerateSignal_MinBasisOverride(t *testing.T) {
	cfg := models.DefaultStrategyConfig()
	cfg.FundingCostAnnual = 0.02
	cfg.MinMonthlyBasis = 0.004
	sig, _ := GenerateSignal(snapWithMonthlyBasis(0.0045), cfg)
	assert.Equal(t, models.SignalAcceptableEntry, sig)
}

func TestGenerateSignal_Deterministic(t *testing.T) {
	snap := snapWithMonthlyBasis(0.0199)
	cfg := models.DefaultStrategyConfig()
	sig1, reason1 := GenerateSignal(snap, cfg)
	for i := 0; i < 10; i++ {
		sig, reason := GenerateSignal(snap, cfg)
		assert.Equal(t, sig1, sig)
		assert.Equal(t, reason1, reason)
	}
	assert.Equal(t, models.SignalStrongEntry, sig1)
}

func TestCalculateReturns_AtExpiry(t *testing.T) {
	snap := models.MarketSnapshot{
		SpotPrice:     100000,
		FuturesPrice:  102000,
		FuturesExpiry: asOf,
		AsOf:          asOf,
	}
	r := CalculateReturns(snap, models.DefaultStrategyConfig())
	assert.Equal(t, 0.0, r.GrossAnnualized)
	assert.Equal(t, 0.0, r.NetAnnualized)
	assert.Equal(t, 0.0, r.Leveraged)
}

func TestCalculateReturns(t *testing.T) {
	snap := snapWithMonthlyBasis(0.02)
	r := CalculateReturns(snap, models.DefaultStrategyConfig())
	assert.InDelta(t, 0.02*365/30, r.GrossAnnualized, 1e-9)
	assert.InDelta(t, 0.02*365/30-0.05, r.NetAnnualized, 1e-9)
}
