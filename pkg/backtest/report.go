package backtest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/olekukonko/tablewriter"
)

// reportSummary is the stable JSON summary block of a backtest run.
type reportSummary struct {
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	ProfitFactor   string  `json:"profit_factor"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

type reportTrade struct {
	EntryDate  string  `json:"entry_date"`
	ExitDate   string  `json:"exit_date"`
	EntryBasis float64 `json:"entry_basis"`
	ExitBasis  float64 `json:"exit_basis"`
	PnL        float64 `json:"pnl"`
	ReturnPct  float64 `json:"return_pct"`
	Status     string  `json:"status"`
}

type report struct {
	Summary reportSummary `json:"summary"`
	Trades  []reportTrade `json:"trades"`
}

// WriteJSON emits the machine-readable report.
func WriteJSON(w io.Writer, res *Result) error {
	out := report{
		Summary: reportSummary{
			StartDate:      res.StartDate.Format(dateLayout),
			EndDate:        res.EndDate.Format(dateLayout),
			InitialCapital: res.InitialCapital,
			FinalCapital:   res.FinalCapital,
			TotalPnL:       res.TotalPnL,
			TotalReturnPct: res.TotalReturnPct,
			TotalTrades:    len(res.Trades),
			WinRate:        res.WinRate,
			AvgWin:         res.AvgWin,
			AvgLoss:        res.AvgLoss,
			ProfitFactor:   profitFactorLabel(res.ProfitFactor),
			MaxDrawdown:    res.MaxDrawdown,
			SharpeRatio:    res.SharpeRatio,
		},
		Trades: make([]reportTrade, 0, len(res.Trades)),
	}

	for _, t := range res.Trades {
		out.Trades = append(out.Trades, reportTrade{
			EntryDate:  t.EntryDate.Format(dateLayout),
			ExitDate:   t.ExitDate.Format(dateLayout),
			EntryBasis: t.EntryBasis,
			ExitBasis:  t.ExitBasis,
			PnL:        t.PnL,
			ReturnPct:  t.ReturnPct(),
			Status:     string(t.Status),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// RenderTable prints the human-readable report: a summary block followed
// by one row per trade.
func RenderTable(w io.Writer, res *Result) {
	fmt.Fprintf(w, "Period:         %s to %s\n", res.StartDate.Format(dateLayout), res.EndDate.Format(dateLayout))
	fmt.Fprintf(w, "Capital:        $%.2f -> $%.2f (%+.2f%%)\n", res.InitialCapital, res.FinalCapital, res.TotalReturnPct*100)
	fmt.Fprintf(w, "Trades:         %d (win rate %.1f%%)\n", len(res.Trades), res.WinRate*100)
	fmt.Fprintf(w, "Avg win/loss:   $%.2f / $%.2f\n", res.AvgWin, res.AvgLoss)
	fmt.Fprintf(w, "Profit factor:  %s\n", profitFactorLabel(res.ProfitFactor))
	fmt.Fprintf(w, "Max drawdown:   %.2f%%\n", res.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe ratio:   %.2f\n", res.SharpeRatio)
	fmt.Fprintln(w)

	if len(res.Trades) == 0 {
		fmt.Fprintln(w, "No trades taken.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Entry", "Exit", "Days", "Entry Basis", "Exit Basis", "PnL", "Return", "Status")
	for _, t := range res.Trades {
		table.Append(
			t.EntryDate.Format(dateLayout),
			t.ExitDate.Format(dateLayout),
			fmt.Sprintf("%d", t.HoldingDays()),
			fmt.Sprintf("%.2f%%", t.EntryBasis*100),
			fmt.Sprintf("%.2f%%", t.ExitBasis*100),
			fmt.Sprintf("$%.2f", t.PnL),
			fmt.Sprintf("%.2f%%", t.ReturnPct()*100),
			string(t.Status),
		)
	}
	table.Render()
}

func profitFactorLabel(pf float64) string {
	if math.IsInf(pf, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", pf)
}
