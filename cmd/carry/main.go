package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gregtusar/carry/internal/config"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	// .env is optional; real deployments use config.yaml or CARRY_* vars
	_ = godotenv.Load()

	logger = logrus.New()

	rootCmd := &cobra.Command{
		Use:   "carry",
		Short: "Cash-and-carry basis trading engine",
		Long:  `Monitors the spot/futures basis across configured pairs, generates entry and exit signals, and optionally executes the two-leg trade.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newPositionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogger(cfg)
	return cfg
}

func configureLogger(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.WithError(err).Error("Failed to open log file, logging to stderr")
			return
		}
		logger.SetOutput(f)
	}
}
