package market

import (
	"math/rand"
	"time"

	"github.com/nexustrade/perpsim/internal/domain"
)

// Order book generation parameters.
const (
	DefaultDepth = 12 // levels per side

	levelStep = 0.001 // 0.1% price step per level
	sizeMin   = 0.5
	sizeSpan  = 10.0
)

// BookGenerator produces a plausible two-sided depth snapshot around a
// given price. The book is illustrative only; nothing is ever matched
// against it.
type BookGenerator struct {
	rng   *rand.Rand
	depth int
}

// NewBookGenerator creates a generator with the given random source and
// levels per side. depth < 1 falls back to DefaultDepth.
func NewBookGenerator(rng *rand.Rand, depth int) *BookGenerator {
	if depth < 1 {
		depth = DefaultDepth
	}
	return &BookGenerator{rng: rng, depth: depth}
}

// Generate builds a fresh snapshot: asks start at currentPrice*1.001 and
// step up ~0.1% per level, bids start at currentPrice*0.999 and step down.
// Asks come out ascending by price and bids descending by construction.
func (g *BookGenerator) Generate(currentPrice float64) domain.OrderBook {
	bids := make([]domain.BookLevel, 0, g.depth)
	asks := make([]domain.BookLevel, 0, g.depth)

	for i := 1; i <= g.depth; i++ {
		bids = append(bids, domain.BookLevel{
			Price: currentPrice * (1 - levelStep*float64(i)),
			Total: sizeMin + g.rng.Float64()*sizeSpan,
		})
		asks = append(asks, domain.BookLevel{
			Price: currentPrice * (1 + levelStep*float64(i)),
			Total: sizeMin + g.rng.Float64()*sizeSpan,
		})
	}

	return domain.OrderBook{
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UTC(),
	}
}
