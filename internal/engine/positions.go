package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nexustrade/perpsim/internal/domain"
)

// positionLedger owns the set of open positions. It is not safe for
// concurrent use; the engine serializes all access behind its mutex.
type positionLedger struct {
	positions []domain.Position
}

// open validates the request and creates a new position at the given entry
// price. Margin and liquidation price are derived here; PnL starts at zero.
func (l *positionLedger) open(req domain.TradeRequest, entryPrice float64, ts time.Time) (domain.Position, error) {
	if err := req.Validate(); err != nil {
		return domain.Position{}, fmt.Errorf("engine: open position: %w", err)
	}
	if entryPrice <= 0 {
		return domain.Position{}, fmt.Errorf("engine: open position: %w", domain.ErrInvalidTrade)
	}

	pos := domain.Position{
		ID:               uuid.NewString(),
		Pair:             req.Pair,
		Type:             req.Type,
		EntryPrice:       entryPrice,
		Leverage:         req.Leverage,
		Size:             req.Size,
		Margin:           req.Size / req.Leverage,
		LiquidationPrice: domain.LiquidationPriceFor(req.Type, entryPrice, req.Leverage),
		StopLoss:         req.StopLoss,
		TakeProfit:       req.TakeProfit,
		OpenedAt:         ts,
	}

	l.positions = append(l.positions, pos)
	return pos, nil
}

// revalue recomputes PnL for every open position against the mark price.
func (l *positionLedger) revalue(markPrice float64) {
	for i := range l.positions {
		l.positions[i].Revalue(markPrice)
	}
}

// closedPosition pairs a removed position with the reason it was closed.
type closedPosition struct {
	position domain.Position
	reason   string
}

// sweepTriggers removes every position whose stop-loss or take-profit has
// been crossed by the mark price and returns them with their close reason.
// Stop-loss is checked before take-profit, so on a pathological tie the
// recorded reason is "Stop Loss". Positions must already be revalued.
func (l *positionLedger) sweepTriggers(markPrice float64) []closedPosition {
	var closed []closedPosition
	remaining := l.positions[:0]

	for _, pos := range l.positions {
		switch {
		case pos.StopLossTriggered(markPrice):
			closed = append(closed, closedPosition{position: pos, reason: domain.ReasonStopLoss})
		case pos.TakeProfitTriggered(markPrice):
			closed = append(closed, closedPosition{position: pos, reason: domain.ReasonTakeProfit})
		default:
			remaining = append(remaining, pos)
		}
	}

	l.positions = remaining
	return closed
}

// close removes the position with the given id, revaluing it against the
// mark price first so the realized PnL reflects the close price. It returns
// domain.ErrNotFound for unknown ids.
func (l *positionLedger) close(id string, markPrice float64) (domain.Position, error) {
	for i, pos := range l.positions {
		if pos.ID != id {
			continue
		}
		pos.Revalue(markPrice)
		l.positions = append(l.positions[:i], l.positions[i+1:]...)
		return pos, nil
	}
	return domain.Position{}, fmt.Errorf("engine: close position %q: %w", id, domain.ErrNotFound)
}

// list returns a copy of the open positions.
func (l *positionLedger) list() []domain.Position {
	out := make([]domain.Position, len(l.positions))
	copy(out, l.positions)
	return out
}
