// Package broker defines the ordering interface the execution engine
// depends on, plus a paper implementation for offline and simulated use.
// Real venue connectivity lives behind this interface and is not part of
// the core.
package broker

import (
	"context"
	"errors"

	"github.com/gregtusar/carry/pkg/models"
)

// ErrNotConnected is returned by order operations before Connect succeeds.
var ErrNotConnected = errors.New("broker: not connected")

// Broker places and tracks orders at a venue. Implementations are expected
// to be non-blocking: PlaceOrder returns an order id immediately and the
// caller polls OrderStatus until the order reaches a terminal state or the
// caller cancels it.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool

	// PlaceOrder submits the order and returns a broker-assigned id.
	PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error)

	// OrderStatus reports the current state of a previously placed order.
	OrderStatus(ctx context.Context, orderID string) (models.OrderResult, error)

	// CancelOrder cancels a pending order. Cancelling an already-terminal
	// order is a no-op.
	CancelOrder(ctx context.Context, orderID string) error
}
