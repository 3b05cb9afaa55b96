package domain

import "time"

// BookLevel is a single price level with aggregate resting size.
type BookLevel struct {
	Price float64
	Total float64
}

// OrderBook is an illustrative market-depth snapshot around the current
// price. It is regenerated wholesale on every tick; there is no incremental
// diffing. Asks are sorted ascending by price, bids descending.
type OrderBook struct {
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// BestBid returns the highest bid price, or 0 when the book side is empty.
func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 when the book side is empty.
func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}
