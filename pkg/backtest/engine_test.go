package backtest

import (
	"io"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/carry/pkg/models"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var testStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// constantBasisSeries holds spot flat and keeps the monthly basis pinned
// at the given level by letting the futures premium decay into expiry.
func constantBasisSeries(days int, monthly float64) []PricePoint {
	expiry := testStart.AddDate(0, 0, 120)
	points := make([]PricePoint, 0, days)
	for i := 0; i < days; i++ {
		date := testStart.AddDate(0, 0, i)
		daysToExpiry := float64(120 - i)
		points = append(points, PricePoint{
			Date:          date,
			SpotPrice:     50_000,
			FuturesPrice:  50_000 * (1 + monthly*daysToExpiry/30),
			FuturesExpiry: expiry,
		})
	}
	return points
}

func TestConstantBasisHeldToForcedClose(t *testing.T) {
	points := constantBasisSeries(90, 0.02)
	engine := NewEngine(DefaultConfig(), discardLogger())

	res, err := engine.Run(points)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, TradeForcedClose, trade.Status)
	assert.Equal(t, models.SignalStrongEntry, trade.EntrySignal)
	assert.Equal(t, testStart, trade.EntryDate)
	assert.Equal(t, 89, trade.HoldingDays())
	assert.InDelta(t, 0.02, trade.EntryBasis, 1e-9)

	// flat spot: P&L is the futures premium decay minus accrued funding
	futuresGain := points[0].FuturesPrice - points[89].FuturesPrice
	funding := (0.05 / 365) * 89 * 50_000
	assert.InDelta(t, futuresGain-funding, trade.PnL, 1e-6)

	assert.InDelta(t, res.InitialCapital+trade.PnL, res.FinalCapital, 1e-6)
	assert.Equal(t, 1.0, res.WinRate)
	assert.True(t, math.IsInf(res.ProfitFactor, 1))
}

func TestStopLossOnBackwardation(t *testing.T) {
	points := constantBasisSeries(5, 0.02)
	points[3].FuturesPrice = points[3].SpotPrice - 200
	points[4].FuturesPrice = points[4].SpotPrice - 200

	res, err := NewEngine(DefaultConfig(), discardLogger()).Run(points)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, TradeStoppedOut, trade.Status)
	assert.Equal(t, points[3].Date, trade.ExitDate)
	assert.Negative(t, trade.ExitBasis)
}

func TestFullExitTakesProfit(t *testing.T) {
	points := constantBasisSeries(5, 0.02)
	// spike the basis past the take-profit level on day 3
	points[2].FuturesPrice = points[2].SpotPrice * (1 + 0.04*118.0/30)

	res, err := NewEngine(DefaultConfig(), discardLogger()).Run(points)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, TradeClosed, trade.Status)
	assert.Equal(t, points[2].Date, trade.ExitDate)
	assert.Contains(t, trade.ExitReason, "take profit")
}

func TestMaxHoldingPeriodClosesAndReenters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHoldingDays = 10

	res, err := NewEngine(cfg, discardLogger()).Run(constantBasisSeries(30, 0.02))
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.Trades), 2)
	first := res.Trades[0]
	assert.Equal(t, TradeClosed, first.Status)
	assert.Equal(t, 10, first.HoldingDays())
	assert.Contains(t, first.ExitReason, "max holding")

	// next entry happens on the step after the close, never the same one
	second := res.Trades[1]
	assert.True(t, second.EntryDate.After(first.ExitDate))
}

func TestNoTradesBelowMinimumBasis(t *testing.T) {
	res, err := NewEngine(DefaultConfig(), discardLogger()).Run(constantBasisSeries(30, 0.003))
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, res.InitialCapital, res.FinalCapital)
	assert.Zero(t, res.MaxDrawdown)
}

func TestRunRejectsEmptySeries(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), discardLogger()).Run(nil)
	assert.Error(t, err)
}

func TestMaxDrawdownKnownCurve(t *testing.T) {
	curve := []float64{100_000, 105_000, 95_000, 110_000, 108_000}
	// peak 105000 to trough 95000
	assert.InDelta(t, 10_000.0/105_000.0, MaxDrawdown(curve), 1e-9)

	assert.Zero(t, MaxDrawdown([]float64{100_000, 110_000, 120_000}))
	assert.Zero(t, MaxDrawdown([]float64{100_000}))
}

func TestSharpeRatioKnownCurve(t *testing.T) {
	curve := []float64{100_000, 105_000, 95_000, 110_000, 108_000}
	assert.InDelta(t, 4.2017, SharpeRatio(curve), 0.001)
}

func TestSharpeRatioNeedsTwoReturns(t *testing.T) {
	assert.Zero(t, SharpeRatio([]float64{100_000, 105_000}))
	assert.Zero(t, SharpeRatio(nil))
}

func TestGenerateSampleDeterministic(t *testing.T) {
	a := GenerateSample(testStart, 60, 42)
	b := GenerateSample(testStart, 60, 42)
	require.Equal(t, a, b)

	require.Len(t, a, 60)
	for _, p := range a {
		assert.Positive(t, p.SpotPrice)
		assert.True(t, p.FuturesExpiry.After(p.Date))
	}
}

func TestCSVRoundTrip(t *testing.T) {
	points := constantBasisSeries(10, 0.02)
	path := filepath.Join(t.TempDir(), "history.csv")

	require.NoError(t, WriteCSV(path, points))

	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, loaded, 10)
	assert.Equal(t, points[0].Date, loaded[0].Date)
	assert.InDelta(t, points[0].FuturesPrice, loaded[0].FuturesPrice, 0.01)
	assert.Equal(t, points[0].FuturesExpiry, loaded[0].FuturesExpiry)
}

func TestLoadCSVRejectsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	points := constantBasisSeries(3, 0.02)
	require.NoError(t, WriteCSV(path, points))

	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
