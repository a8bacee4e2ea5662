package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gregtusar/carry/pkg/monitor"
	"github.com/gregtusar/carry/pkg/strategy"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		pairID  string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Evaluate the basis once and print the full breakdown",
		Run: func(cmd *cobra.Command, args []string) {
			runAnalyze(pairID, offline)
		},
	}

	cmd.Flags().StringVar(&pairID, "pair", "", "analyze only this pair id")
	cmd.Flags().BoolVar(&offline, "offline", false, "use sample market data instead of live sources")
	return cmd
}

func runAnalyze(pairID string, offline bool) {
	cfg := loadConfig()
	pairs := cfg.PairModels()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	source := buildSource(ctx, cfg, pairs, offline)

	analyzed := 0
	for _, pair := range pairs {
		if !pair.Enabled || (pairID != "" && pair.ID != pairID) {
			continue
		}

		snap, err := source.Snapshot(ctx, pair)
		if err != nil {
			logger.WithError(err).WithField("pair", pair.ID).Error("No market data")
			continue
		}
		analyzed++

		pairCfg := cfg.StrategyModel().ForPair(pair)
		entry, risks, returns, sizing := monitor.Analyze(snap, pairCfg)

		fmt.Printf("\n=== %s ===\n", pair.ID)
		fmt.Printf("Spot:              $%.2f (%s)\n", snap.SpotPrice, pair.SpotSymbol)
		fmt.Printf("Futures:           $%.2f (%s, expires %s)\n", snap.FuturesPrice, pair.FuturesSymbol, snap.FuturesExpiry.Format("2006-01-02"))
		fmt.Printf("Days to expiry:    %d\n", snap.DaysToExpiry())
		fmt.Printf("Monthly basis:     %.2f%%\n", entry.MonthlyBasis*100)
		fmt.Printf("Annualized basis:  %.2f%%\n", snap.AnnualizedBasis()*100)
		fmt.Printf("Net return:        %.2f%% (leveraged %.2f%%)\n", returns.NetAnnualized*100, returns.Leveraged*100)
		fmt.Printf("Signal:            %s\n", entry.Signal)
		fmt.Printf("Reason:            %s\n", entry.Reason)
		fmt.Println()

		fmt.Println("Suggested sizing:")
		fmt.Printf("  SELL %d futures contracts (~$%.2f)\n", sizing.FuturesContracts, sizing.FuturesValue)
		if sizing.ETFShares > 0 {
			fmt.Printf("  BUY  %d ETF shares (~$%.2f)\n", sizing.ETFShares, sizing.ETFValue)
		}
		fmt.Printf("  Delta neutral: %v\n", sizing.DeltaNeutral)
		fmt.Println()

		printRisks(risks)
	}

	if analyzed == 0 {
		logger.Fatal("No pairs analyzed")
	}
}

func printRisks(risks map[string]strategy.Risk) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Risk", "Level", "Detail")
	for _, name := range []string{"funding", "basis", "liquidity", "crowding", "operational"} {
		r, ok := risks[name]
		if !ok {
			continue
		}
		table.Append(name, string(r.Level), r.Detail)
	}
	table.Render()
	fmt.Printf("Overall: %s\n", strategy.OverallRisk(risks))
}
