// Package market produces the synthetic market data the simulation runs on:
// a chained OHLCV candle series and an illustrative order-book snapshot
// around the current price. All randomness flows through an injected
// *rand.Rand so generation is reproducible under a fixed seed.
package market

import (
	"math/rand"
	"time"

	"github.com/nexustrade/perpsim/internal/domain"
)

// Default generation parameters.
const (
	DefaultWindow    = 100   // candles kept in the sliding window
	DefaultBasePrice = 150.0 // seed price for the first candle

	bodyRange  = 0.01  // close within +/-1% of open
	wickRange  = 0.005 // wicks extend up to 0.5% past the body
	volumeMin  = 50.0
	volumeSpan = 100.0
)

// CandleGenerator builds and advances a synthetic candle series. Each
// candle's open equals the previous close, so the series is continuous.
type CandleGenerator struct {
	rng       *rand.Rand
	basePrice float64
	window    int
}

// NewCandleGenerator creates a generator with the given random source.
// window caps the sliding series length; values < 1 fall back to
// DefaultWindow.
func NewCandleGenerator(rng *rand.Rand, basePrice float64, window int) *CandleGenerator {
	if basePrice <= 0 {
		basePrice = DefaultBasePrice
	}
	if window < 1 {
		window = DefaultWindow
	}
	return &CandleGenerator{
		rng:       rng,
		basePrice: basePrice,
		window:    window,
	}
}

// Generate builds count candles backward from now at one-minute spacing.
// The first open is the base price plus a small jitter; every subsequent
// open chains from the previous close.
func (g *CandleGenerator) Generate(count int) []domain.Candle {
	if count < 1 {
		count = g.window
	}

	now := time.Now().UTC().Truncate(domain.CandleInterval)
	series := make([]domain.Candle, 0, count)

	lastClose := g.basePrice + g.rng.Float64()*4
	for i := count; i > 0; i-- {
		t := now.Add(-time.Duration(i) * domain.CandleInterval)
		series = append(series, g.next(t, lastClose))
		lastClose = series[len(series)-1].Close
	}

	return series
}

// Tick appends one new candle chained from the last close, evicting the
// oldest candle when the window is full. It returns the updated series and
// the new candle's close, which becomes the current mark price.
func (g *CandleGenerator) Tick(series []domain.Candle) ([]domain.Candle, float64) {
	if len(series) == 0 {
		series = g.Generate(g.window)
		return series, series[len(series)-1].Close
	}

	last := series[len(series)-1]
	candle := g.next(last.Time.Add(domain.CandleInterval), last.Close)

	series = append(series, candle)
	if len(series) > g.window {
		series = series[len(series)-g.window:]
	}

	return series, candle.Close
}

// next builds a single candle opening at the given price.
func (g *CandleGenerator) next(t time.Time, open float64) domain.Candle {
	closePrice := open * (1 + (g.rng.Float64()-0.5)*bodyRange)

	high := max(open, closePrice) * (1 + g.rng.Float64()*wickRange)
	low := min(open, closePrice) * (1 - g.rng.Float64()*wickRange)

	return domain.Candle{
		Time:   t,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volumeMin + g.rng.Float64()*volumeSpan,
	}
}
