package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nexustrade/perpsim/internal/domain"
)

// orderLedger owns resting limit orders. Orders are never deleted; filled
// and cancelled orders stay in the ledger for history display.
type orderLedger struct {
	orders []domain.Order
}

// place validates the request and adds a new open limit order.
func (l *orderLedger) place(req domain.TradeRequest, ts time.Time) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("engine: place order: %w", err)
	}

	order := domain.Order{
		ID:           uuid.NewString(),
		Pair:         req.Pair,
		Type:         domain.OrderTypeLimit,
		PositionType: req.Type,
		Price:        req.Price,
		Size:         req.Size,
		Leverage:     req.Leverage,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Status:       domain.OrderStatusOpen,
		CreatedAt:    ts,
	}

	l.orders = append(l.orders, order)
	return order, nil
}

// sweepFills marks every open order whose limit the mark price has crossed
// as filled and returns them. Only open orders are evaluated; terminal
// orders are never re-examined.
func (l *orderLedger) sweepFills(markPrice float64, ts time.Time) []domain.Order {
	var filled []domain.Order
	for i := range l.orders {
		if !l.orders[i].Fillable(markPrice) {
			continue
		}
		t := ts
		l.orders[i].Status = domain.OrderStatusFilled
		l.orders[i].Filled = l.orders[i].Size
		l.orders[i].FilledAt = &t
		filled = append(filled, l.orders[i])
	}
	return filled
}

// cancel transitions an open order to cancelled. It returns
// domain.ErrNotFound for unknown ids and domain.ErrInvalidState when the
// order is already filled or cancelled; a terminal order is never touched.
func (l *orderLedger) cancel(id string, ts time.Time) (domain.Order, error) {
	for i := range l.orders {
		if l.orders[i].ID != id {
			continue
		}
		if l.orders[i].Status != domain.OrderStatusOpen {
			return domain.Order{}, fmt.Errorf("engine: cancel order %q in status %s: %w",
				id, l.orders[i].Status, domain.ErrInvalidState)
		}
		t := ts
		l.orders[i].Status = domain.OrderStatusCancelled
		l.orders[i].CancelledAt = &t
		return l.orders[i], nil
	}
	return domain.Order{}, fmt.Errorf("engine: cancel order %q: %w", id, domain.ErrNotFound)
}

// list returns a copy of all orders, open and terminal.
func (l *orderLedger) list() []domain.Order {
	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}
