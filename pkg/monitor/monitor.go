// Package monitor runs the polling loops: one goroutine per enabled
// pair, each tick fetching a snapshot, evaluating the signal, and
// optionally driving execution.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/basis"
	"github.com/gregtusar/carry/pkg/execution"
	"github.com/gregtusar/carry/pkg/marketdata"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/strategy"
)

// maxHistoryPerPair caps in-memory history so a long-running monitor
// does not grow without bound.
const maxHistoryPerPair = 1000

// Entry is one evaluated tick for a pair.
type Entry struct {
	Time         time.Time          `json:"time"`
	SpotPrice    float64            `json:"spot_price"`
	FuturesPrice float64            `json:"futures_price"`
	MonthlyBasis float64            `json:"monthly_basis"`
	NetReturn    float64            `json:"net_return"`
	Signal       models.Signal      `json:"signal"`
	Reason       string             `json:"reason"`
	RiskLevel    strategy.RiskLevel `json:"risk_level"`
}

// Alert records a signal transition worth the operator's attention.
type Alert struct {
	Time     time.Time     `json:"time"`
	PairID   string        `json:"pair_id"`
	Previous models.Signal `json:"previous"`
	Signal   models.Signal `json:"signal"`
	Reason   string        `json:"reason"`
}

// Config tunes the polling loops.
type Config struct {
	Interval   time.Duration
	HistoryDir string
}

func DefaultConfig() Config {
	return Config{
		Interval:   60 * time.Second,
		HistoryDir: "output/history",
	}
}

// Monitor owns the per-pair loops. Managers are pair-scoped and never
// shared; the monitor's own maps are the only cross-pair state.
type Monitor struct {
	cfg      Config
	strat    models.StrategyConfig
	pairs    []models.PairConfig
	source   marketdata.Source
	managers map[string]*execution.Manager
	logger   *logrus.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu         sync.RWMutex
	history    map[string][]Entry
	latest     map[string]Entry
	lastSignal map[string]models.Signal
	alerts     []Alert
}

func New(cfg Config, strat models.StrategyConfig, pairs []models.PairConfig, source marketdata.Source, managers map[string]*execution.Manager, logger *logrus.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if managers == nil {
		managers = make(map[string]*execution.Manager)
	}
	return &Monitor{
		cfg:        cfg,
		strat:      strat,
		pairs:      pairs,
		source:     source,
		managers:   managers,
		logger:     logger,
		stopCh:     make(chan struct{}),
		history:    make(map[string][]Entry),
		latest:     make(map[string]Entry),
		lastSignal: make(map[string]models.Signal),
	}
}

// Start launches one loop per enabled pair and returns immediately.
func (m *Monitor) Start(ctx context.Context) error {
	started := 0
	for _, pair := range m.pairs {
		if !pair.Enabled {
			continue
		}
		started++
		m.wg.Add(1)
		go m.run(ctx, pair)
	}
	if started == 0 {
		return fmt.Errorf("no enabled pairs to monitor")
	}

	m.logger.WithFields(logrus.Fields{
		"pairs":    started,
		"interval": m.cfg.Interval,
	}).Info("Monitor started")
	return nil
}

// Stop shuts the loops down, flushes history to disk, and disconnects
// any broker sessions.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()

	if err := m.saveHistory(); err != nil {
		m.logger.WithError(err).Warn("Failed to save monitor history")
	}
	for _, mgr := range m.managers {
		mgr.Disconnect()
	}
	m.logger.Info("Monitor stopped")
}

func (m *Monitor) run(ctx context.Context, pair models.PairConfig) {
	defer m.wg.Done()

	// evaluate immediately, then on the interval
	m.checkPair(ctx, pair)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkPair(ctx, pair)
		}
	}
}

func (m *Monitor) checkPair(ctx context.Context, pair models.PairConfig) {
	snap, err := m.source.Snapshot(ctx, pair)
	if err != nil {
		m.logger.WithError(err).WithField("pair", pair.ID).Warn("Snapshot unavailable, skipping tick")
		return
	}

	cfg := m.strat.ForPair(pair)
	sig, reason := strategy.GenerateSignal(snap, cfg)
	risks := strategy.AssessRisk(snap, cfg)
	returns := strategy.CalculateReturns(snap, cfg)

	entry := Entry{
		Time:         snap.ReferenceTime(),
		SpotPrice:    snap.SpotPrice,
		FuturesPrice: snap.FuturesPrice,
		MonthlyBasis: snap.MonthlyBasis(),
		NetReturn:    returns.NetAnnualized,
		Signal:       sig,
		Reason:       reason,
		RiskLevel:    strategy.OverallRisk(risks),
	}
	m.record(pair.ID, entry)

	m.logger.WithFields(logrus.Fields{
		"pair":          pair.ID,
		"spot":          snap.SpotPrice,
		"futures":       snap.FuturesPrice,
		"monthly_basis": fmt.Sprintf("%.2f%%", entry.MonthlyBasis*100),
		"signal":        sig,
		"risk":          entry.RiskLevel,
	}).Info("Tick")

	if mgr, ok := m.managers[pair.ID]; ok {
		mgr.HandleSignal(ctx, sig, reason, snap)
	}
}

// record appends to history, trims to the cap, and raises an alert when
// the signal changed since the previous tick.
func (m *Monitor) record(pairID string, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := append(m.history[pairID], entry)
	if len(h) > maxHistoryPerPair {
		h = h[len(h)-maxHistoryPerPair:]
	}
	m.history[pairID] = h
	m.latest[pairID] = entry

	prev, seen := m.lastSignal[pairID]
	m.lastSignal[pairID] = entry.Signal
	if !seen || prev == entry.Signal {
		return
	}

	alert := Alert{
		Time:     entry.Time,
		PairID:   pairID,
		Previous: prev,
		Signal:   entry.Signal,
		Reason:   entry.Reason,
	}
	m.alerts = append(m.alerts, alert)

	m.logger.WithFields(logrus.Fields{
		"pair":     pairID,
		"previous": prev,
		"signal":   entry.Signal,
		"reason":   entry.Reason,
	}).Warn("Signal changed")
}

// Latest returns the most recent entry per pair.
func (m *Monitor) Latest() map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Entry, len(m.latest))
	for k, v := range m.latest {
		out[k] = v
	}
	return out
}

// History returns a copy of the recorded entries for one pair.
func (m *Monitor) History(pairID string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.history[pairID]
	out := make([]Entry, len(h))
	copy(out, h)
	return out
}

// Alerts returns all signal-transition alerts so far.
func (m *Monitor) Alerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Positions reports the tracked position per pair with a manager.
func (m *Monitor) Positions() map[string]models.Position {
	out := make(map[string]models.Position, len(m.managers))
	for id, mgr := range m.managers {
		out[id] = mgr.Tracker().Position()
	}
	return out
}

// saveHistory writes one JSON file per pair so a later session can
// inspect what the monitor saw.
func (m *Monitor) saveHistory() error {
	if m.cfg.HistoryDir == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return nil
	}
	if err := os.MkdirAll(m.cfg.HistoryDir, 0o755); err != nil {
		return err
	}

	for pairID, entries := range m.history {
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		path := filepath.Join(m.cfg.HistoryDir, fmt.Sprintf("history_%s.json", pairID))
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Analyze evaluates a single snapshot the way a tick would, without
// recording or executing. Used by the one-shot analyze command.
func Analyze(snap models.MarketSnapshot, cfg models.StrategyConfig) (Entry, map[string]strategy.Risk, basis.Returns, strategy.Sizing) {
	sig, reason := strategy.GenerateSignal(snap, cfg)
	risks := strategy.AssessRisk(snap, cfg)
	returns := strategy.CalculateReturns(snap, cfg)
	sizing := strategy.CalculateSizing(snap, cfg)

	entry := Entry{
		Time:         snap.ReferenceTime(),
		SpotPrice:    snap.SpotPrice,
		FuturesPrice: snap.FuturesPrice,
		MonthlyBasis: snap.MonthlyBasis(),
		NetReturn:    returns.NetAnnualized,
		Signal:       sig,
		Reason:       reason,
		RiskLevel:    strategy.OverallRisk(risks),
	}
	return entry, risks, returns, sizing
}
