package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/gregtusar/carry/pkg/execution"
)

func newPositionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Show tracked positions",
		Run: func(cmd *cobra.Command, args []string) {
			runPositionShow()
		},
	}

	var pairID string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the tracked position for a pair",
		Run: func(cmd *cobra.Command, args []string) {
			runPositionClear(pairID)
		},
	}
	clearCmd.Flags().StringVar(&pairID, "pair", "", "pair id to clear (required)")
	clearCmd.MarkFlagRequired("pair")

	cmd.AddCommand(clearCmd)
	return cmd
}

func runPositionShow() {
	cfg := loadConfig()
	stateDir := cfg.Execution.StateDir

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Pair", "ETF", "Shares", "Entry", "Futures", "Contracts", "Entry", "Expiry", "Opened")

	openCount := 0
	for _, pair := range cfg.PairModels() {
		store := execution.NewFileStore(filepath.Join(stateDir, fmt.Sprintf("position_%s.json", pair.ID)))
		pos, err := store.Load()
		if err != nil {
			logger.WithError(err).WithField("pair", pair.ID).Warn("Unreadable position state")
			continue
		}
		if !pos.IsOpen() {
			continue
		}
		openCount++

		table.Append(
			pair.ID,
			pos.ETFSymbol,
			fmt.Sprintf("%d", pos.ETFShares),
			fmt.Sprintf("$%.2f", pos.ETFEntryPrice),
			pos.FuturesSymbol,
			fmt.Sprintf("%d", pos.FuturesContracts),
			fmt.Sprintf("$%.2f", pos.FuturesEntryPrice),
			pos.FuturesExpiry,
			pos.OpenedAt,
		)
	}

	if openCount == 0 {
		fmt.Println("No open positions.")
		return
	}
	table.Render()
}

func runPositionClear(pairID string) {
	cfg := loadConfig()

	store := execution.NewFileStore(filepath.Join(cfg.Execution.StateDir, fmt.Sprintf("position_%s.json", pairID)))
	tracker := execution.NewTracker(store, logger)

	if !tracker.Position().IsOpen() {
		fmt.Printf("No open position for %s.\n", pairID)
		return
	}

	if err := tracker.Clear(); err != nil {
		logger.WithError(err).Fatal("Failed to clear position")
	}
	fmt.Printf("Position for %s cleared.\n", pairID)
}
