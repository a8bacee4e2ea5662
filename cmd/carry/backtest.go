package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregtusar/carry/pkg/backtest"
)

func newBacktestCmd() *cobra.Command {
	var (
		csvPath  string
		jsonPath string
		days     int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the strategy over historical or synthetic data",
		Run: func(cmd *cobra.Command, args []string) {
			runBacktest(csvPath, jsonPath, days, seed)
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "historical data file (date,spot_price,futures_price,futures_expiry)")
	cmd.Flags().StringVar(&jsonPath, "json", "", "write the full report as JSON to this file")
	cmd.Flags().IntVar(&days, "days", 365, "days of synthetic data when no CSV is given")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for synthetic data generation")
	return cmd
}

func runBacktest(csvPath, jsonPath string, days int, seed int64) {
	cfg := loadConfig()

	var (
		points []backtest.PricePoint
		err    error
	)
	if csvPath != "" {
		points, err = backtest.LoadCSV(csvPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load historical data")
		}
		logger.WithField("points", len(points)).Info("Loaded historical data")
	} else {
		start := time.Now().AddDate(0, 0, -days)
		points = backtest.GenerateSample(start, days, seed)
		logger.WithField("points", len(points)).Info("Generated synthetic data")
	}

	engineCfg := backtest.Config{
		PairID:         "BTC",
		InitialCapital: cfg.Backtest.InitialCapital,
		PositionSize:   cfg.Backtest.PositionSize,
		MaxHoldingDays: cfg.Backtest.MaxHoldingDays,
		Strategy:       cfg.StrategyModel(),
	}

	result, err := backtest.NewEngine(engineCfg, logger).Run(points)
	if err != nil {
		logger.WithError(err).Fatal("Backtest failed")
	}

	backtest.RenderTable(os.Stdout, result)

	if jsonPath != "" {
		f, err := os.Create(jsonPath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create JSON report")
		}
		defer f.Close()

		if err := backtest.WriteJSON(f, result); err != nil {
			logger.WithError(err).Fatal("Failed to write JSON report")
		}
		logger.WithField("path", jsonPath).Info("Report written")
	}
}
