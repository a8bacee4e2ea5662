package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregtusar/carry/api"
	"github.com/gregtusar/carry/internal/config"
	"github.com/gregtusar/carry/pkg/broker"
	"github.com/gregtusar/carry/pkg/execution"
	"github.com/gregtusar/carry/pkg/marketdata"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/monitor"
)

func newMonitorCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Continuously monitor the basis and act on signals",
		Run: func(cmd *cobra.Command, args []string) {
			runMonitor(offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "use sample market data instead of live sources")
	return cmd
}

func runMonitor(offline bool) {
	cfg := loadConfig()
	pairs := cfg.PairModels()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := buildSource(ctx, cfg, pairs, offline)

	var (
		managers map[string]*execution.Manager
		journal  *execution.Journal
	)
	if cfg.Execution.Enabled {
		managers, journal = buildManagers(cfg, pairs)
	}

	mon := monitor.New(
		monitor.Config{Interval: cfg.MonitorInterval(), HistoryDir: cfg.Monitor.HistoryDir},
		cfg.StrategyModel(),
		pairs,
		source,
		managers,
		logger,
	)

	if err := mon.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start monitor")
	}

	if cfg.Server.Enabled {
		apiServer := api.NewServer(mon, logger, cfg.Server.Port)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.WithError(err).Fatal("Failed to start API server")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Monitoring basis. Press Ctrl+C to stop.")
	<-sigChan
	logger.Info("Received shutdown signal")

	mon.Stop()
	if journal != nil {
		if err := journal.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close journal")
		}
	}
	cancel()

	logger.Info("Monitor stopped")
}

// buildSource assembles the fallback chain: streamed quotes when enabled,
// then polled spot with an estimated curve, then nothing. Offline mode
// serves fixed sample data instead.
func buildSource(ctx context.Context, cfg *config.Config, pairs []models.PairConfig, offline bool) marketdata.Source {
	if offline {
		return sampleSource(pairs)
	}

	spot := marketdata.NewSpotClient(cfg.MarketData.SpotURL, logger)
	sentiment := marketdata.NewSentimentClient(cfg.MarketData.SentimentURL)
	estimated := marketdata.NewEstimatedSource(spot, sentiment, cfg.MarketData.AssumedMonthly, logger)

	if !cfg.MarketData.UseFeed {
		return marketdata.NewChain(logger, estimated)
	}

	feed := marketdata.NewFeed(cfg.MarketData.FeedURL, logger)
	products := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		if !p.Enabled {
			continue
		}
		if p.CryptoSymbol != "" {
			products = append(products, p.CryptoSymbol)
		}
		if p.FuturesSymbol != "" {
			products = append(products, p.FuturesSymbol)
		}
	}
	if err := feed.Connect(ctx, products); err != nil {
		logger.WithError(err).Warn("Ticker feed unavailable, falling back to polling")
		return marketdata.NewChain(logger, estimated)
	}

	return marketdata.NewChain(logger, marketdata.NewFeedSource(feed, time.Minute), estimated)
}

func sampleSource(pairs []models.PairConfig) marketdata.Source {
	static := marketdata.NewStaticSource()
	now := time.Now()
	for _, p := range pairs {
		static.Set(p.ID, models.MarketSnapshot{
			SpotSymbol:     p.SpotSymbol,
			FuturesSymbol:  p.FuturesSymbol,
			SpotPrice:      50_000,
			FuturesPrice:   51_000,
			FuturesExpiry:  marketdata.NextQuarterlyExpiry(now),
			SentimentIndex: 0.55,
			AsOf:           now,
		})
	}
	return static
}

func buildManagers(cfg *config.Config, pairs []models.PairConfig) (map[string]*execution.Manager, *execution.Journal) {
	execCfg := cfg.ExecutionModel()
	stateDir := execCfg.StateDir

	journal := execution.NewJournal(filepath.Join(stateDir, "journal.ndjson"))

	var confirm execution.ConfirmFunc
	if !execCfg.AutoTrade {
		confirm = promptConfirm
	}

	managers := make(map[string]*execution.Manager, len(pairs))
	for _, pair := range pairs {
		if !pair.Enabled {
			continue
		}

		b := broker.NewPaperBroker(logger)
		store := execution.NewFileStore(filepath.Join(stateDir, fmt.Sprintf("position_%s.json", pair.ID)))
		tracker := execution.NewTracker(store, logger)

		managers[pair.ID] = execution.NewManager(
			execCfg,
			cfg.StrategyModel().ForPair(pair),
			pair,
			b,
			tracker,
			journal,
			logger,
			confirm,
		)
	}
	return managers, journal
}

// promptConfirm asks on stdin before a live trade goes out.
func promptConfirm(summary string) bool {
	fmt.Println("\n=== Trade confirmation ===")
	fmt.Print(summary)
	fmt.Print("Proceed? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
