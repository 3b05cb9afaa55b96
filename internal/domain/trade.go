package domain

import "time"

// FeeRate is the flat taker fee charged on every open and close, 6 bps.
const FeeRate = 0.0006

// TradeAction distinguishes journal entries for position opens and closes.
type TradeAction string

const (
	TradeActionOpen  TradeAction = "open"
	TradeActionClose TradeAction = "close"
)

// Close reasons recorded in the trade journal.
const (
	ReasonStopLoss    = "Stop Loss"
	ReasonTakeProfit  = "Take Profit"
	ReasonManualClose = "Manual Close"
	ReasonLimitFilled = "Limit Order Filled"
)

// TradeEvent is a single append-only journal entry: one per position open
// or close, and one per limit-order fill. Existing entries are never
// mutated or deleted.
type TradeEvent struct {
	ID        string
	Pair      string
	Type      PositionType
	Action    TradeAction
	Price     float64
	Size      float64
	Fee       float64
	PnL       *float64
	Reason    string
	Timestamp time.Time
}

// TradeRequest is the input to the trading facade's ExecuteTrade: a market
// request opens a position immediately at the mark price, a limit request
// places a resting order.
type TradeRequest struct {
	Pair       string
	Type       PositionType
	OrderType  OrderType
	Size       float64
	Leverage   float64
	Price      float64 // limit price; ignored for market orders
	StopLoss   *float64
	TakeProfit *float64
}

// Validate checks the request bounds common to market and limit orders.
func (r TradeRequest) Validate() error {
	if r.Type != PositionTypeLong && r.Type != PositionTypeShort {
		return ErrInvalidTrade
	}
	if r.Size <= 0 {
		return ErrInvalidTrade
	}
	if r.Leverage < MinLeverage || r.Leverage > MaxLeverage {
		return ErrInvalidTrade
	}
	if r.OrderType == OrderTypeLimit && r.Price <= 0 {
		return ErrInvalidTrade
	}
	return nil
}
