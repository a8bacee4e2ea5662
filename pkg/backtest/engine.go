package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/strategy"
)

// PricePoint is one row of a historical series.
type PricePoint struct {
	Date          time.Time
	SpotPrice     float64
	FuturesPrice  float64
	FuturesExpiry time.Time
}

// Snapshot converts the row into the shape the signal engine consumes.
func (p PricePoint) Snapshot(pairID string) models.MarketSnapshot {
	return models.MarketSnapshot{
		PairID:        pairID,
		SpotPrice:     p.SpotPrice,
		FuturesPrice:  p.FuturesPrice,
		FuturesExpiry: p.FuturesExpiry,
		AsOf:          p.Date,
	}
}

// Config holds the simulation parameters. MaxHoldingDays of zero means
// positions are only closed by signal or end of data.
type Config struct {
	PairID         string
	InitialCapital float64
	PositionSize   float64 // underlying units per trade
	MaxHoldingDays int
	Strategy       models.StrategyConfig
}

func DefaultConfig() Config {
	return Config{
		PairID:         "BTC",
		InitialCapital: 100_000,
		PositionSize:   1.0,
		MaxHoldingDays: 0,
		Strategy:       models.DefaultStrategyConfig(),
	}
}

// Engine drives one backtest run. It reuses the exact live decision
// functions, so a strategy change moves live and simulated behavior
// together.
type Engine struct {
	cfg    Config
	logger *logrus.Logger
}

func NewEngine(cfg Config, logger *logrus.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Run replays the series chronologically. Exactly one trade can be open
// at a time; exit conditions are evaluated before new entries, and a
// closed trade cannot reopen on the same data point.
func (e *Engine) Run(points []PricePoint) (*Result, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no price points to backtest")
	}

	var (
		trades []Trade
		open   *Trade
	)

	for _, p := range points {
		snap := p.Snapshot(e.cfg.PairID)
		sig, reason := strategy.GenerateSignal(snap, e.cfg.Strategy)

		if open != nil {
			if closed, done := e.checkExit(open, p, snap, sig, reason); done {
				trades = append(trades, closed)
				open = nil
			}
			continue
		}

		if sig.IsEntry() {
			t := Trade{
				EntryDate:    p.Date,
				EntrySpot:    p.SpotPrice,
				EntryFutures: p.FuturesPrice,
				EntryBasis:   snap.MonthlyBasis(),
				EntrySignal:  sig,
				Size:         e.cfg.PositionSize,
				Status:       TradeOpen,
			}
			open = &t
			e.logger.WithFields(logrus.Fields{
				"date":   p.Date.Format("2006-01-02"),
				"signal": sig,
				"spot":   p.SpotPrice,
			}).Debug("Backtest entry")
		}
	}

	if open != nil {
		last := points[len(points)-1]
		e.closeTrade(open, last, last.Snapshot(e.cfg.PairID), TradeForcedClose, "end of data")
		trades = append(trades, *open)
	}

	res := e.aggregate(trades, points)
	return res, nil
}

// checkExit closes the open trade when an exit signal fires or the
// holding limit is hit. Returns the finished trade and whether it closed.
func (e *Engine) checkExit(open *Trade, p PricePoint, snap models.MarketSnapshot, sig models.Signal, reason string) (Trade, bool) {
	holdingDays := int(p.Date.Sub(open.EntryDate).Hours() / 24)

	switch {
	case sig == models.SignalStopLoss:
		e.closeTrade(open, p, snap, TradeStoppedOut, reason)
	case sig == models.SignalFullExit:
		e.closeTrade(open, p, snap, TradeClosed, reason)
	case e.cfg.MaxHoldingDays > 0 && holdingDays >= e.cfg.MaxHoldingDays:
		e.closeTrade(open, p, snap, TradeClosed, fmt.Sprintf("max holding period (%d days)", e.cfg.MaxHoldingDays))
	default:
		return Trade{}, false
	}
	return *open, true
}

// closeTrade realizes P&L: spot leg gain plus futures short gain minus
// funding accrued over the holding period on entry notional.
func (e *Engine) closeTrade(t *Trade, p PricePoint, snap models.MarketSnapshot, status TradeStatus, reason string) {
	t.ExitDate = p.Date
	t.ExitSpot = p.SpotPrice
	t.ExitFutures = p.FuturesPrice
	t.ExitBasis = snap.MonthlyBasis()
	t.ExitReason = reason
	t.Status = status

	spotPnL := (t.ExitSpot - t.EntrySpot) * t.Size
	futuresPnL := (t.EntryFutures - t.ExitFutures) * t.Size
	fundingCost := (e.cfg.Strategy.FundingCostAnnual / 365) * float64(t.HoldingDays()) * t.Notional()
	t.PnL = spotPnL + futuresPnL - fundingCost

	e.logger.WithFields(logrus.Fields{
		"date":   p.Date.Format("2006-01-02"),
		"status": status,
		"pnl":    t.PnL,
		"reason": reason,
	}).Debug("Backtest exit")
}

func (e *Engine) aggregate(trades []Trade, points []PricePoint) *Result {
	res := &Result{
		Trades:         trades,
		StartDate:      points[0].Date,
		EndDate:        points[len(points)-1].Date,
		InitialCapital: e.cfg.InitialCapital,
		EquityCurve:    []float64{e.cfg.InitialCapital},
	}

	var winSum, lossSum float64
	var wins, losses int
	equity := e.cfg.InitialCapital

	for _, t := range trades {
		res.TotalPnL += t.PnL
		if t.PnL > 0 {
			wins++
			winSum += t.PnL
		} else {
			losses++
			lossSum += t.PnL
		}
		equity += t.PnL
		res.EquityCurve = append(res.EquityCurve, equity)
	}

	res.FinalCapital = equity
	if res.InitialCapital > 0 {
		res.TotalReturnPct = res.TotalPnL / res.InitialCapital
	}

	if len(trades) > 0 {
		res.WinRate = float64(wins) / float64(len(trades))
	}
	if wins > 0 {
		res.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		res.AvgLoss = lossSum / float64(losses)
	}
	if math.Abs(res.AvgLoss) < 0.0001 {
		if wins > 0 {
			res.ProfitFactor = math.Inf(1)
		}
	} else {
		res.ProfitFactor = math.Abs(res.AvgWin / res.AvgLoss)
	}

	res.MaxDrawdown = MaxDrawdown(res.EquityCurve)
	res.SharpeRatio = SharpeRatio(res.EquityCurve)
	return res
}

// MaxDrawdown is the largest peak-to-trough fractional drop of an equity
// curve. Zero for monotonic or short curves.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	peak := equity[0]
	var maxDD float64
	for _, v := range equity[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeRatio annualizes mean over sample standard deviation of the
// step returns of an equity curve. Needs at least two returns.
func SharpeRatio(equity []float64) float64 {
	if len(equity) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	stdev := math.Sqrt(ss / float64(len(returns)-1))
	if stdev == 0 {
		return 0
	}

	return mean / stdev * math.Sqrt(365)
}
