package domain

import "time"

// PositionType indicates the direction of a leveraged position.
type PositionType string

const (
	PositionTypeLong  PositionType = "long"
	PositionTypeShort PositionType = "short"
)

// Leverage bounds accepted when opening a position.
const (
	MinLeverage float64 = 1
	MaxLeverage float64 = 10
)

// LiquidationBuffer is the fraction of margin consumed at the liquidation
// price: liquidation = entry * (1 -/+ LiquidationBuffer/leverage).
const LiquidationBuffer = 0.9

// Position is an open leveraged position. PnL and PnLPercentage are
// recomputed on every price tick; the rest of the fields are fixed at open.
type Position struct {
	ID               string
	Pair             string
	Type             PositionType
	EntryPrice       float64
	Leverage         float64
	Size             float64
	Margin           float64
	LiquidationPrice float64
	StopLoss         *float64
	TakeProfit       *float64
	PnL              float64
	PnLPercentage    float64
	OpenedAt         time.Time
}

// LiquidationPriceFor computes the price at which a position's margin is
// considered exhausted, using the fixed 90%-of-margin buffer model.
func LiquidationPriceFor(t PositionType, entryPrice, leverage float64) float64 {
	if t == PositionTypeShort {
		return entryPrice * (1 + LiquidationBuffer/leverage)
	}
	return entryPrice * (1 - LiquidationBuffer/leverage)
}

// Revalue recomputes PnLPercentage and PnL against the given mark price.
func (p *Position) Revalue(markPrice float64) {
	var pct float64
	switch p.Type {
	case PositionTypeShort:
		pct = ((p.EntryPrice - markPrice) / p.EntryPrice) * 100 * p.Leverage
	default:
		pct = ((markPrice - p.EntryPrice) / p.EntryPrice) * 100 * p.Leverage
	}
	p.PnLPercentage = pct
	p.PnL = p.Size * pct / 100
}

// StopLossTriggered reports whether the mark price has crossed the
// position's stop-loss level.
func (p Position) StopLossTriggered(markPrice float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Type == PositionTypeShort {
		return markPrice >= *p.StopLoss
	}
	return markPrice <= *p.StopLoss
}

// TakeProfitTriggered reports whether the mark price has reached the
// position's take-profit level.
func (p Position) TakeProfitTriggered(markPrice float64) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Type == PositionTypeShort {
		return markPrice <= *p.TakeProfit
	}
	return markPrice >= *p.TakeProfit
}
