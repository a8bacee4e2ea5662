package execution

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/broker"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/strategy"
)

// Executor places two-leg order pairs against the broker with fill-timeout
// handling. The spot leg always goes first on entry so a leg-1 failure
// never leaves an unhedged futures short.
type Executor struct {
	cfg     models.ExecutionConfig
	pair    models.PairConfig
	broker  broker.Broker
	tracker *Tracker
	logger  *logrus.Logger
}

func NewExecutor(cfg models.ExecutionConfig, pair models.PairConfig, b broker.Broker, tracker *Tracker, logger *logrus.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		pair:    pair,
		broker:  b,
		tracker: tracker,
		logger:  logger,
	}
}

// ExecuteOrder submits a single order and waits for its outcome. Under
// dry-run it returns PENDING with an explanatory error and touches no
// network.
func (e *Executor) ExecuteOrder(ctx context.Context, req models.OrderRequest) models.OrderResult {
	if e.cfg.DryRun {
		e.logger.WithField("order", req.Describe()).Info("[DRY RUN] Would execute order")
		return models.OrderResult{
			Status:    models.OrderStatusPending,
			Request:   req,
			Error:     "dry run - order not submitted",
			Timestamp: time.Now(),
		}
	}

	if !e.broker.Connected() {
		return models.OrderResult{
			Status:    models.OrderStatusFailed,
			Request:   req,
			Error:     "not connected to broker",
			Timestamp: time.Now(),
		}
	}

	orderID, err := e.broker.PlaceOrder(ctx, req)
	if err != nil {
		e.logger.WithError(err).WithField("order", req.Describe()).Error("Order placement failed")
		return models.OrderResult{
			Status:    models.OrderStatusFailed,
			Request:   req,
			Error:     err.Error(),
			Timestamp: time.Now(),
		}
	}

	return e.waitForFill(ctx, orderID, req)
}

// waitForFill polls order status at a short cadence until the order is
// terminal or the timeout elapses, then cancels. A partial fill before the
// timeout is reported as PARTIALLY_FILLED with the filled quantity.
func (e *Executor) waitForFill(ctx context.Context, orderID string, req models.OrderRequest) models.OrderResult {
	poll := e.cfg.FillPollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	deadline := time.Now().Add(e.cfg.OrderTimeout)

	for {
		res, err := e.broker.OrderStatus(ctx, orderID)
		if err != nil {
			return models.OrderResult{
				Status:    models.OrderStatusFailed,
				Request:   req,
				Error:     err.Error(),
				Timestamp: time.Now(),
			}
		}

		switch res.Status {
		case models.OrderStatusFilled, models.OrderStatusCancelled, models.OrderStatusFailed:
			return res
		}

		if time.Now().After(deadline) {
			break
		}

		// Shutdown must not tighten the poll cadence: a cancelled
		// context still sleeps the full interval so the order runs to
		// its own timeout and cancel below.
		time.Sleep(poll)
	}

	e.logger.WithField("order_id", orderID).Warn("Order timeout - cancelling")
	if err := e.broker.CancelOrder(ctx, orderID); err != nil {
		e.logger.WithError(err).Warn("Cancel after timeout failed")
	}

	res, err := e.broker.OrderStatus(ctx, orderID)
	if err != nil {
		return models.OrderResult{
			Status:    models.OrderStatusFailed,
			Request:   req,
			Error:     err.Error(),
			Timestamp: time.Now(),
		}
	}
	if res.Status == models.OrderStatusFilled {
		return res
	}
	if res.FilledQty > 0 {
		res.Status = models.OrderStatusPartiallyFilled
		res.Error = "partial fill before timeout"
		return res
	}
	res.Status = models.OrderStatusCancelled
	res.Error = "order cancelled due to timeout"
	return res
}

// legOK reports whether an entry leg allows the sequence to continue:
// FILLED live, or PENDING under dry-run.
func legOK(res models.OrderResult) bool {
	return res.Status == models.OrderStatusFilled || res.Status == models.OrderStatusPending
}

// ExecuteEntryPair opens the position: BUY the ETF leg, then SELL futures.
// The futures leg is never submitted when the spot leg did not go through.
func (e *Executor) ExecuteEntryPair(ctx context.Context, sizing strategy.Sizing, snap models.MarketSnapshot) (models.OrderResult, *models.OrderResult) {
	orderType := e.cfg.OrderType

	var etfLimit, futuresLimit float64
	if orderType == models.OrderTypeLimit {
		if snap.ETFPrice > 0 {
			etfLimit = round2(snap.ETFPrice * (1 + e.cfg.LimitOffsetPct))
		}
		if snap.FuturesPrice > 0 {
			futuresLimit = round2(snap.FuturesPrice * (1 - e.cfg.LimitOffsetPct))
		}
	}

	etfReq := models.OrderRequest{
		Side:       models.OrderSideBuy,
		Symbol:     e.pair.SpotSymbol,
		Quantity:   float64(sizing.ETFShares),
		Type:       orderType,
		LimitPrice: etfLimit,
		Signal:     "ENTRY",
		Reason:     "Basis trade entry - spot leg",
		CreatedAt:  time.Now(),
	}
	e.logger.WithField("order", etfReq.Describe()).Info("[1/2] ETF entry")
	etfRes := e.ExecuteOrder(ctx, etfReq)

	if !legOK(etfRes) {
		e.logger.WithField("error", etfRes.Error).Error("ETF leg failed - aborting futures leg")
		return etfRes, nil
	}

	futuresReq := models.OrderRequest{
		Side:       models.OrderSideSell,
		Symbol:     e.pair.FuturesSymbol,
		Quantity:   float64(sizing.FuturesContracts),
		Type:       orderType,
		LimitPrice: futuresLimit,
		Signal:     "ENTRY",
		Reason:     "Basis trade entry - futures leg",
		CreatedAt:  time.Now(),
	}
	e.logger.WithField("order", futuresReq.Describe()).Info("[2/2] Futures entry")
	futuresRes := e.ExecuteOrder(ctx, futuresReq)

	bothFilled := etfRes.Status == models.OrderStatusFilled && futuresRes.Status == models.OrderStatusFilled
	if bothFilled || (e.cfg.DryRun && legOK(futuresRes)) {
		pos := models.Position{
			ETFShares:         fillQtyOr(etfRes, sizing.ETFShares),
			ETFSymbol:         e.pair.SpotSymbol,
			ETFEntryPrice:     fillPriceOr(etfRes, snap.ETFPrice),
			FuturesContracts:  fillQtyOr(futuresRes, sizing.FuturesContracts),
			FuturesSymbol:     e.pair.FuturesSymbol,
			FuturesEntryPrice: fillPriceOr(futuresRes, snap.FuturesPrice),
		}
		if !snap.FuturesExpiry.IsZero() {
			pos.FuturesExpiry = snap.FuturesExpiry.Format("2006-01-02")
		}
		if err := e.tracker.UpdateOnEntry(pos); err != nil {
			e.logger.WithError(err).Error("Failed to persist entry position")
		}
	}

	return etfRes, &futuresRes
}

// ExecuteExitPair closes the full position from tracked state: SELL the
// ETF leg, then BUY back the entire futures short.
func (e *Executor) ExecuteExitPair(ctx context.Context) (models.OrderResult, *models.OrderResult) {
	pos := e.tracker.Position()
	if !pos.IsOpen() {
		e.logger.Warn("No open position to exit")
		return noPositionResult(), nil
	}

	etfReq := models.OrderRequest{
		Side:      models.OrderSideSell,
		Symbol:    pos.ETFSymbol,
		Quantity:  float64(pos.ETFShares),
		Type:      e.cfg.OrderType,
		Signal:    "EXIT",
		Reason:    "Basis trade exit - spot leg",
		CreatedAt: time.Now(),
	}
	e.logger.WithField("order", etfReq.Describe()).Info("[1/2] ETF exit")
	etfRes := e.ExecuteOrder(ctx, etfReq)

	futuresReq := models.OrderRequest{
		Side:      models.OrderSideBuy,
		Symbol:    pos.FuturesSymbol,
		Quantity:  float64(pos.FuturesContracts),
		Type:      e.cfg.OrderType,
		Signal:    "EXIT",
		Reason:    "Basis trade exit - futures leg",
		CreatedAt: time.Now(),
	}
	e.logger.WithField("order", futuresReq.Describe()).Info("[2/2] Futures exit")
	futuresRes := e.ExecuteOrder(ctx, futuresReq)

	bothFilled := etfRes.Status == models.OrderStatusFilled && futuresRes.Status == models.OrderStatusFilled
	if bothFilled || e.cfg.DryRun {
		if err := e.tracker.Clear(); err != nil {
			e.logger.WithError(err).Error("Failed to clear position state")
		}
	}

	return etfRes, &futuresRes
}

// ExecutePartialExit reduces both legs by the same proportion, floored at
// one unit each so a reduction always does something.
func (e *Executor) ExecutePartialExit(ctx context.Context, exitPct float64) (models.OrderResult, *models.OrderResult) {
	pos := e.tracker.Position()
	if !pos.IsOpen() {
		e.logger.Warn("No open position to reduce")
		return noPositionResult(), nil
	}

	etfToSell := int(float64(pos.ETFShares) * exitPct)
	if etfToSell < 1 {
		etfToSell = 1
	}
	contractsToClose := int(float64(pos.FuturesContracts) * exitPct)
	if contractsToClose < 1 {
		contractsToClose = 1
	}

	etfReq := models.OrderRequest{
		Side:      models.OrderSideSell,
		Symbol:    pos.ETFSymbol,
		Quantity:  float64(etfToSell),
		Type:      e.cfg.OrderType,
		Signal:    "PARTIAL_EXIT",
		Reason:    "Partial exit - spot leg",
		CreatedAt: time.Now(),
	}
	e.logger.WithField("order", etfReq.Describe()).Info("[1/2] Partial ETF exit")
	etfRes := e.ExecuteOrder(ctx, etfReq)

	futuresReq := models.OrderRequest{
		Side:      models.OrderSideBuy,
		Symbol:    pos.FuturesSymbol,
		Quantity:  float64(contractsToClose),
		Type:      e.cfg.OrderType,
		Signal:    "PARTIAL_EXIT",
		Reason:    "Partial exit - futures leg",
		CreatedAt: time.Now(),
	}
	e.logger.WithField("order", futuresReq.Describe()).Info("[2/2] Partial futures exit")
	futuresRes := e.ExecuteOrder(ctx, futuresReq)

	bothFilled := etfRes.Status == models.OrderStatusFilled && futuresRes.Status == models.OrderStatusFilled
	if bothFilled {
		err := e.tracker.UpdateOnPartialExit(fillQtyOr(etfRes, etfToSell), fillQtyOr(futuresRes, contractsToClose))
		if err != nil {
			e.logger.WithError(err).Error("Failed to persist partial exit")
		}
	} else if e.cfg.DryRun {
		if err := e.tracker.UpdateOnPartialExit(etfToSell, contractsToClose); err != nil {
			e.logger.WithError(err).Error("Failed to persist partial exit")
		}
	}

	return etfRes, &futuresRes
}

func noPositionResult() models.OrderResult {
	return models.OrderResult{
		Status:    models.OrderStatusFailed,
		Request:   models.OrderRequest{Side: models.OrderSideSell, Symbol: "NONE"},
		Error:     "no open position",
		Timestamp: time.Now(),
	}
}

func fillQtyOr(res models.OrderResult, requested int) int {
	if res.FilledQty > 0 {
		return int(res.FilledQty)
	}
	return requested
}

func fillPriceOr(res models.OrderResult, fallback float64) float64 {
	if res.FillPrice > 0 {
		return res.FillPrice
	}
	return fallback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
