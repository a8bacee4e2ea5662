package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/models"
)

// PaperBroker simulates a venue in memory: orders fill at the limit price
// (or the configured quote for market orders) after FillAfter polls. It is
// the default broker when execution is enabled without real connectivity.
type PaperBroker struct {
	mu        sync.Mutex
	connected bool
	quotes    map[string]float64
	orders    map[string]*paperOrder
	logger    *logrus.Logger

	// FillAfter is how many status polls an order stays SUBMITTED before
	// filling. Zero fills on the first poll.
	FillAfter int

	// Commission charged per fill, flat per order.
	Commission float64
}

type paperOrder struct {
	req    models.OrderRequest
	status models.OrderStatus
	fill   float64
	polls  int
	placed time.Time
}

func NewPaperBroker(logger *logrus.Logger) *PaperBroker {
	return &PaperBroker{
		quotes: make(map[string]float64),
		orders: make(map[string]*paperOrder),
		logger: logger,
	}
}

// SetQuote sets the price market orders fill at for a symbol.
func (b *PaperBroker) SetQuote(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = price
}

func (b *PaperBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	b.logger.Info("Paper broker connected")
	return nil
}

func (b *PaperBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	b.logger.Info("Paper broker disconnected")
}

func (b *PaperBroker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return "", ErrNotConnected
	}

	fill := req.LimitPrice
	if fill <= 0 {
		fill = b.quotes[req.Symbol]
	}
	if fill <= 0 {
		return "", fmt.Errorf("paper broker: no quote for %s", req.Symbol)
	}

	id := uuid.NewString()
	b.orders[id] = &paperOrder{
		req:    req,
		status: models.OrderStatusSubmitted,
		fill:   fill,
		placed: time.Now(),
	}

	b.logger.WithFields(logrus.Fields{
		"order_id": id,
		"order":    req.Describe(),
	}).Info("Paper order placed")
	return id, nil
}

func (b *PaperBroker) OrderStatus(ctx context.Context, orderID string) (models.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return models.OrderResult{}, fmt.Errorf("paper broker: unknown order %s", orderID)
	}

	if o.status == models.OrderStatusSubmitted {
		o.polls++
		if o.polls > b.FillAfter {
			o.status = models.OrderStatusFilled
		}
	}

	res := models.OrderResult{
		Status:    o.status,
		Request:   o.req,
		Timestamp: time.Now(),
	}
	if o.status == models.OrderStatusFilled {
		res.FillPrice = o.fill
		res.FilledQty = o.req.Quantity
		res.Commission = b.Commission
	}
	return res, nil
}

func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("paper broker: unknown order %s", orderID)
	}
	if o.status == models.OrderStatusSubmitted {
		o.status = models.OrderStatusCancelled
	}
	return nil
}
