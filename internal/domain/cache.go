package domain

import (
	"context"
	"time"
)

// PriceCache stores the latest mark price per trading pair so other
// processes (and restarts) can observe the simulation's current price.
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
}

// SignalBus is an ephemeral pub/sub fabric. The engine publishes tick
// snapshots and trade events; the WebSocket hub subscribes and forwards
// them to connected clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter writes an object to blob storage at the given key.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte, contentType string) error
}
