package domain

import "time"

// Candle is a single fixed-duration OHLCV price bar. Once a candle has been
// superseded by a newer one it is never mutated.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CandleInterval is the duration covered by one candle.
const CandleInterval = time.Minute
