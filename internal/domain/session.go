package domain

import "time"

// Session is an explicit wallet session bound to the trading facade.
// Mutating operations require a connected session; there is no ambient
// global wallet state.
type Session struct {
	Wallet      string
	ConnectedAt time.Time
}

// Snapshot is the consistent aggregate state the facade republishes after
// every tick and after every successful mutation. Readers only ever observe
// whole snapshots; a tick is all-or-nothing.
type Snapshot struct {
	Pair         string
	CurrentPrice float64
	Candles      []Candle
	OrderBook    OrderBook
	Positions    []Position
	Orders       []Order
	TradeHistory []TradeEvent
	Timestamp    time.Time
}
