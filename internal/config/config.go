// Package config loads the application configuration from YAML, with
// environment overrides under the CARRY prefix.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/gregtusar/carry/pkg/models"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Pairs      []PairConfig     `mapstructure:"pairs"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	MarketData MarketDataConfig `mapstructure:"marketdata"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type StrategyConfig struct {
	AccountSize       float64 `mapstructure:"account_size"`
	SpotTargetPct     float64 `mapstructure:"spot_target_pct"`
	FuturesTargetPct  float64 `mapstructure:"futures_target_pct"`
	FundingCostAnnual float64 `mapstructure:"funding_cost_annual"`
	Leverage          float64 `mapstructure:"leverage"`
	ContractSize      float64 `mapstructure:"contract_size"`
	MinMonthlyBasis   float64 `mapstructure:"min_monthly_basis"`
}

type PairConfig struct {
	ID            string  `mapstructure:"id"`
	SpotSymbol    string  `mapstructure:"spot_symbol"`
	FuturesSymbol string  `mapstructure:"futures_symbol"`
	CryptoSymbol  string  `mapstructure:"crypto_symbol"`
	Allocation    float64 `mapstructure:"allocation"`
	ContractSize  float64 `mapstructure:"contract_size"`
	Enabled       bool    `mapstructure:"enabled"`
}

type ExecutionConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	AutoTrade           bool    `mapstructure:"auto_trade"`
	DryRun              bool    `mapstructure:"dry_run"`
	OrderType           string  `mapstructure:"order_type"`
	LimitOffsetPct      float64 `mapstructure:"limit_offset_pct"`
	MaxETFShares        int     `mapstructure:"max_etf_shares"`
	MaxFuturesContracts int     `mapstructure:"max_futures_contracts"`
	OrderTimeoutSec     int     `mapstructure:"order_timeout_sec"`
	FillPollMs          int     `mapstructure:"fill_poll_ms"`
	StateDir            string  `mapstructure:"state_dir"`
}

type MonitorConfig struct {
	IntervalSec int    `mapstructure:"interval_sec"`
	HistoryDir  string `mapstructure:"history_dir"`
}

type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	PositionSize   float64 `mapstructure:"position_size"`
	MaxHoldingDays int     `mapstructure:"max_holding_days"`
}

type MarketDataConfig struct {
	SpotURL        string  `mapstructure:"spot_url"`
	SentimentURL   string  `mapstructure:"sentiment_url"`
	FeedURL        string  `mapstructure:"feed_url"`
	UseFeed        bool    `mapstructure:"use_feed"`
	AssumedMonthly float64 `mapstructure:"assumed_monthly_basis"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/carry")
	}

	v.SetEnvPrefix("CARRY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file: defaults plus environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	v.SetDefault("strategy.account_size", 200000.0)
	v.SetDefault("strategy.spot_target_pct", 0.5)
	v.SetDefault("strategy.futures_target_pct", 0.5)
	v.SetDefault("strategy.funding_cost_annual", 0.05)
	v.SetDefault("strategy.leverage", 1.0)
	v.SetDefault("strategy.contract_size", 5.0)
	v.SetDefault("strategy.min_monthly_basis", 0.005)

	v.SetDefault("execution.enabled", false)
	v.SetDefault("execution.auto_trade", false)
	v.SetDefault("execution.dry_run", true)
	v.SetDefault("execution.order_type", "LIMIT")
	v.SetDefault("execution.limit_offset_pct", 0.001)
	v.SetDefault("execution.max_etf_shares", 10000)
	v.SetDefault("execution.max_futures_contracts", 50)
	v.SetDefault("execution.order_timeout_sec", 30)
	v.SetDefault("execution.fill_poll_ms", 500)
	v.SetDefault("execution.state_dir", "output/execution")

	v.SetDefault("monitor.interval_sec", 60)
	v.SetDefault("monitor.history_dir", "output/history")

	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.position_size", 1.0)
	v.SetDefault("backtest.max_holding_days", 0)

	v.SetDefault("marketdata.spot_url", "https://api.exchange.coinbase.com")
	v.SetDefault("marketdata.sentiment_url", "https://api.alternative.me/fng/")
	v.SetDefault("marketdata.feed_url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("marketdata.use_feed", false)
	v.SetDefault("marketdata.assumed_monthly_basis", 0.015)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if err := c.StrategyModel().Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, p := range c.Pairs {
		if p.ID == "" {
			return fmt.Errorf("pair with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate pair id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Enabled && p.SpotSymbol == "" && p.CryptoSymbol == "" {
			return fmt.Errorf("pair %s: needs a spot_symbol or crypto_symbol", p.ID)
		}
	}

	switch c.Execution.OrderType {
	case "LIMIT", "MARKET":
	default:
		return fmt.Errorf("execution.order_type must be LIMIT or MARKET, got %q", c.Execution.OrderType)
	}
	return nil
}

// StrategyModel converts to the engine's strategy parameters.
func (c *Config) StrategyModel() models.StrategyConfig {
	return models.StrategyConfig{
		AccountSize:       c.Strategy.AccountSize,
		SpotTargetPct:     c.Strategy.SpotTargetPct,
		FuturesTargetPct:  c.Strategy.FuturesTargetPct,
		FundingCostAnnual: c.Strategy.FundingCostAnnual,
		Leverage:          c.Strategy.Leverage,
		ContractSize:      c.Strategy.ContractSize,
		MinMonthlyBasis:   c.Strategy.MinMonthlyBasis,
	}
}

// ExecutionModel converts to the execution engine's parameters.
func (c *Config) ExecutionModel() models.ExecutionConfig {
	return models.ExecutionConfig{
		Enabled:             c.Execution.Enabled,
		AutoTrade:           c.Execution.AutoTrade,
		DryRun:              c.Execution.DryRun,
		OrderType:           models.OrderType(c.Execution.OrderType),
		LimitOffsetPct:      c.Execution.LimitOffsetPct,
		MaxETFShares:        c.Execution.MaxETFShares,
		MaxFuturesContracts: c.Execution.MaxFuturesContracts,
		OrderTimeout:        time.Duration(c.Execution.OrderTimeoutSec) * time.Second,
		FillPollInterval:    time.Duration(c.Execution.FillPollMs) * time.Millisecond,
		StateDir:            c.Execution.StateDir,
	}
}

// PairModels converts the configured pairs.
func (c *Config) PairModels() []models.PairConfig {
	out := make([]models.PairConfig, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		out = append(out, models.PairConfig{
			ID:            p.ID,
			SpotSymbol:    p.SpotSymbol,
			FuturesSymbol: p.FuturesSymbol,
			CryptoSymbol:  p.CryptoSymbol,
			Allocation:    p.Allocation,
			ContractSize:  p.ContractSize,
			Enabled:       p.Enabled,
		})
	}
	return out
}

// MonitorInterval is the polling cadence.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSec) * time.Second
}
