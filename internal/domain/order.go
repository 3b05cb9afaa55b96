package domain

import "time"

// OrderType indicates how an order executes.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus tracks the resting-order lifecycle. Once an order leaves the
// open state it is terminal and never re-evaluated.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a resting limit order waiting for price to reach its limit.
// Filled and cancelled orders are retained for history display.
type Order struct {
	ID           string
	Pair         string
	Type         OrderType
	PositionType PositionType
	Price        float64
	Size         float64
	Leverage     float64
	StopLoss     *float64
	TakeProfit   *float64
	Filled       float64
	Status       OrderStatus
	CreatedAt    time.Time
	FilledAt     *time.Time
	CancelledAt  *time.Time
}

// Fillable reports whether the mark price satisfies the order's limit: a
// long fills at or below the limit price, a short at or above it.
func (o Order) Fillable(markPrice float64) bool {
	if o.Status != OrderStatusOpen {
		return false
	}
	if o.PositionType == PositionTypeShort {
		return markPrice >= o.Price
	}
	return markPrice <= o.Price
}
