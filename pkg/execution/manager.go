package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/broker"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/strategy"
)

// ConfirmFunc asks the operator to approve a trade. It is only consulted
// when auto-trade is off.
type ConfirmFunc func(summary string) bool

// Manager is the per-pair state machine from (signal, position) to orders.
// Safety checks run before anything touches the broker, and every decision
// lands in the journal. A mutex serializes order sequences: no two
// sequences for the same pair ever run concurrently.
type Manager struct {
	cfg      models.ExecutionConfig
	strat    models.StrategyConfig
	pair     models.PairConfig
	broker   broker.Broker
	tracker  *Tracker
	executor *Executor
	journal  *Journal
	logger   *logrus.Logger
	confirm  ConfirmFunc

	mu  sync.Mutex
	now func() time.Time
}

func NewManager(
	cfg models.ExecutionConfig,
	strat models.StrategyConfig,
	pair models.PairConfig,
	b broker.Broker,
	tracker *Tracker,
	journal *Journal,
	logger *logrus.Logger,
	confirm ConfirmFunc,
) *Manager {
	return &Manager{
		cfg:      cfg,
		strat:    strat,
		pair:     pair,
		broker:   b,
		tracker:  tracker,
		executor: NewExecutor(cfg, pair, b, tracker, logger),
		journal:  journal,
		logger:   logger,
		confirm:  confirm,
		now:      time.Now,
	}
}

// Tracker exposes the pair's position tracker.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Disconnect releases the broker session.
func (m *Manager) Disconnect() {
	if m.broker.Connected() {
		m.broker.Disconnect()
	}
}

// DetermineAction maps a signal to a trade action given position state.
// Entries only apply when flat; exits and reductions only when open.
func (m *Manager) DetermineAction(sig models.Signal) models.TradeAction {
	open := m.tracker.Position().IsOpen()

	switch {
	case sig.IsEntry():
		if !open {
			return models.ActionOpen
		}
	case sig.IsExit():
		if open {
			return models.ActionClose
		}
	case sig == models.SignalPartialExit:
		if open {
			return models.ActionReduce
		}
	}
	return models.ActionNone
}

// safetyCheck returns a rejection reason, or "" when all checks pass.
func (m *Manager) safetyCheck(action models.TradeAction, sizing strategy.Sizing, snap models.MarketSnapshot) string {
	if action == models.ActionOpen {
		if sizing.ETFShares > m.cfg.MaxETFShares {
			return fmt.Sprintf("ETF shares (%d) exceeds limit (%d)", sizing.ETFShares, m.cfg.MaxETFShares)
		}
		if sizing.FuturesContracts > m.cfg.MaxFuturesContracts {
			return fmt.Sprintf("futures contracts (%d) exceeds limit (%d)", sizing.FuturesContracts, m.cfg.MaxFuturesContracts)
		}
	}

	if wd := m.now().Weekday(); wd == time.Saturday || wd == time.Sunday {
		return fmt.Sprintf("weekend detected (%s) - markets closed", wd)
	}

	if action == models.ActionOpen && snap.MonthlyBasis() < 0 {
		return "backwardation - refusing to open new position"
	}

	return ""
}

// HandleSignal runs the full decision pipeline for one signal and returns
// the action it resolved to (including NONE for rejected or skipped
// signals, so callers can assert the table without parsing the journal).
func (m *Manager) HandleSignal(ctx context.Context, sig models.Signal, reason string, snap models.MarketSnapshot) models.TradeAction {
	m.mu.Lock()
	defer m.mu.Unlock()

	action := m.DetermineAction(sig)
	if action == models.ActionNone {
		m.logger.WithFields(logrus.Fields{
			"signal":        sig,
			"position_open": m.tracker.Position().IsOpen(),
		}).Debug("Signal requires no action")
		return models.ActionNone
	}

	m.logger.WithFields(logrus.Fields{
		"pair":   m.pair.ID,
		"signal": sig,
		"action": action,
		"reason": reason,
	}).Info("Signal triggered action")

	sizing := strategy.CalculateSizing(snap, m.strat)

	if rejection := m.safetyCheck(action, sizing, snap); rejection != "" {
		m.logger.WithField("reason", rejection).Warn("Safety check failed")
		m.journalEvent(EventRejected, map[string]any{
			"signal": string(sig),
			"action": string(action),
			"reason": rejection,
		})
		return models.ActionNone
	}

	if !m.cfg.AutoTrade {
		if m.confirm == nil || !m.confirm(m.buildSummary(action, sig, reason, sizing, snap)) {
			m.logger.Info("Trade rejected by user")
			m.journalEvent(EventUserRejected, map[string]any{
				"signal": string(sig),
				"action": string(action),
			})
			return models.ActionNone
		}
	}

	if !m.cfg.DryRun && !m.broker.Connected() {
		if err := m.broker.Connect(ctx); err != nil {
			m.logger.WithError(err).Error("Broker connection failed")
			m.journalEvent(EventConnectionFailed, map[string]any{
				"signal": string(sig),
				"action": string(action),
				"error":  err.Error(),
			})
			return models.ActionNone
		}
	}

	m.journalEvent(EventExecuting, map[string]any{
		"signal":  string(sig),
		"action":  string(action),
		"sizing":  sizingFields(sizing),
		"dry_run": m.cfg.DryRun,
	})

	switch action {
	case models.ActionOpen:
		etf, fut := m.executor.ExecuteEntryPair(ctx, sizing, snap)
		m.journalLegs(EventEntryResult, etf, fut)
	case models.ActionClose:
		etf, fut := m.executor.ExecuteExitPair(ctx)
		m.journalLegs(EventExitResult, etf, fut)
	case models.ActionReduce:
		etf, fut := m.executor.ExecutePartialExit(ctx, 0.5)
		m.journalLegs(EventReduceResult, etf, fut)
	}

	return action
}

func (m *Manager) journalEvent(event string, payload map[string]any) {
	// A journal write failure must not abandon an order already in flight.
	if err := m.journal.Append(event, m.pair.ID, payload); err != nil {
		m.logger.WithError(err).Error("Journal write failed")
	}
}

func (m *Manager) journalLegs(event string, etf models.OrderResult, futures *models.OrderResult) {
	payload := map[string]any{"etf": etf.JournalFields()}
	if futures != nil {
		payload["futures"] = futures.JournalFields()
	}
	m.journalEvent(event, payload)

	m.logger.WithField("status", etf.Status).Info(event + " ETF leg")
	if futures != nil {
		m.logger.WithField("status", futures.Status).Info(event + " futures leg")
	}
}

func sizingFields(s strategy.Sizing) map[string]any {
	return map[string]any{
		"etf_shares":        s.ETFShares,
		"etf_value":         s.ETFValue,
		"futures_contracts": s.FuturesContracts,
		"futures_value":     s.FuturesValue,
		"delta_neutral":     s.DeltaNeutral,
	}
}

func (m *Manager) buildSummary(action models.TradeAction, sig models.Signal, reason string, sizing strategy.Sizing, snap models.MarketSnapshot) string {
	mode := "DRY RUN"
	if !m.cfg.DryRun {
		mode = "LIVE"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pair:          %s\n", m.pair.ID)
	fmt.Fprintf(&b, "Signal:        %s\n", sig)
	fmt.Fprintf(&b, "Reason:        %s\n", reason)
	fmt.Fprintf(&b, "Action:        %s (%s)\n", action, mode)
	fmt.Fprintf(&b, "Spot:          $%.2f\n", snap.SpotPrice)
	fmt.Fprintf(&b, "Futures:       $%.2f\n", snap.FuturesPrice)
	fmt.Fprintf(&b, "Monthly Basis: %.2f%%\n", snap.MonthlyBasis()*100)

	pos := m.tracker.Position()
	switch action {
	case models.ActionOpen:
		fmt.Fprintf(&b, "BUY  %d %s (~$%.2f)\n", sizing.ETFShares, m.pair.SpotSymbol, sizing.ETFValue)
		fmt.Fprintf(&b, "SELL %d %s contracts (~$%.2f)\n", sizing.FuturesContracts, m.pair.FuturesSymbol, sizing.FuturesValue)
	case models.ActionClose:
		fmt.Fprintf(&b, "SELL %d %s\n", pos.ETFShares, pos.ETFSymbol)
		fmt.Fprintf(&b, "BUY  %d %s contracts\n", pos.FuturesContracts, pos.FuturesSymbol)
	case models.ActionReduce:
		fmt.Fprintf(&b, "Reducing position by 50%%\n")
	}
	return b.String()
}
