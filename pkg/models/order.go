package models

import (
	"fmt"
	"time"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// OrderRequest describes a proposed order for one leg of the trade.
type OrderRequest struct {
	Side       OrderSide
	Symbol     string
	Quantity   float64
	Type       OrderType
	LimitPrice float64 // 0 for market orders
	Signal     string  // signal tag the order came from
	Reason     string
	CreatedAt  time.Time
}

// Describe returns a short human-readable order summary for logs and
// confirmation prompts.
func (r OrderRequest) Describe() string {
	price := ""
	if r.LimitPrice > 0 {
		price = fmt.Sprintf(" @ $%.2f", r.LimitPrice)
	}
	return fmt.Sprintf("%s %.0f %s (%s%s)", r.Side, r.Quantity, r.Symbol, r.Type, price)
}

// OrderResult is the outcome of submitting an OrderRequest.
type OrderResult struct {
	Status     OrderStatus
	Request    OrderRequest
	FillPrice  float64
	FilledQty  float64
	Commission float64
	Error      string
	Timestamp  time.Time
}

// JournalFields flattens the result for the execution journal.
func (r OrderResult) JournalFields() map[string]any {
	return map[string]any{
		"status":        string(r.Status),
		"side":          string(r.Request.Side),
		"symbol":        r.Request.Symbol,
		"requested_qty": r.Request.Quantity,
		"order_type":    string(r.Request.Type),
		"limit_price":   r.Request.LimitPrice,
		"fill_price":    r.FillPrice,
		"filled_qty":    r.FilledQty,
		"commission":    r.Commission,
		"error":         r.Error,
		"signal":        r.Request.Signal,
		"timestamp":     r.Timestamp.Format(time.RFC3339),
	}
}
