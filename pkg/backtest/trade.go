// Package backtest replays the live signal logic over a historical price
// series and reports the trades it would have taken.
package backtest

import (
	"time"

	"github.com/gregtusar/carry/pkg/models"
)

// TradeStatus is the terminal-state tag of a simulated trade. A trade is
// created open and closes exactly once.
type TradeStatus string

const (
	TradeOpen        TradeStatus = "open"
	TradeClosed      TradeStatus = "closed"
	TradeStoppedOut  TradeStatus = "stopped_out"
	TradeForcedClose TradeStatus = "forced_close"
)

// Trade is one simulated position: entry and exit snapshots plus the
// realized outcome. Basis fields hold the monthly basis at that moment.
type Trade struct {
	EntryDate    time.Time     `json:"entry_date"`
	EntrySpot    float64       `json:"entry_spot"`
	EntryFutures float64       `json:"entry_futures"`
	EntryBasis   float64       `json:"entry_basis"`
	EntrySignal  models.Signal `json:"entry_signal"`

	ExitDate    time.Time `json:"exit_date,omitempty"`
	ExitSpot    float64   `json:"exit_spot,omitempty"`
	ExitFutures float64   `json:"exit_futures,omitempty"`
	ExitBasis   float64   `json:"exit_basis,omitempty"`
	ExitReason  string    `json:"exit_reason,omitempty"`

	Size   float64     `json:"size"`
	PnL    float64     `json:"pnl"`
	Status TradeStatus `json:"status"`
}

// HoldingDays is the whole-day holding period, zero for same-day exits.
func (t Trade) HoldingDays() int {
	end := t.ExitDate
	if end.IsZero() {
		return 0
	}
	return int(end.Sub(t.EntryDate).Hours() / 24)
}

// Notional is the entry-spot exposure of the trade.
func (t Trade) Notional() float64 {
	return t.EntrySpot * t.Size
}

// ReturnPct is realized P&L over entry notional.
func (t Trade) ReturnPct() float64 {
	if t.Notional() == 0 {
		return 0
	}
	return t.PnL / t.Notional()
}

// AnnualizedReturn scales the holding-period return to a yearly figure.
func (t Trade) AnnualizedReturn() float64 {
	days := t.HoldingDays()
	if days <= 0 {
		return 0
	}
	return t.ReturnPct() * 365 / float64(days)
}

// Result aggregates a completed backtest run.
type Result struct {
	Trades []Trade `json:"trades"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`

	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`

	EquityCurve []float64 `json:"equity_curve"`
}
