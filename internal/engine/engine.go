// Package engine implements the trading facade: the single seam consumers
// depend on. It owns the candle window, order book, open positions, resting
// orders and the trade journal, advances them atomically on every tick, and
// republishes consistent snapshots over the signal bus.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/nexustrade/perpsim/internal/domain"
	"github.com/nexustrade/perpsim/internal/market"
	"github.com/nexustrade/perpsim/internal/metrics"
)

// DefaultTickInterval is how often the simulation advances when driven by
// Run. Tests step the clock manually through Tick instead.
const DefaultTickInterval = 5 * time.Second

// Bus channels the engine publishes to.
const (
	ChannelTicks     = "ticks"
	ChannelPositions = "positions"
	ChannelOrders    = "orders"
	ChannelTrades    = "trades"
)

// Config holds the engine's simulation parameters.
type Config struct {
	Pair         string
	TickInterval time.Duration
	CandleWindow int
	BookDepth    int
	BasePrice    float64
	Seed         int64
}

// Engine is the trading facade. All state is guarded by a single mutex so
// every tick and every mutation is observed all-or-nothing, also when the
// engine is shared by multiple API clients.
type Engine struct {
	mu sync.Mutex

	pair         string
	tickInterval time.Duration

	candleGen *market.CandleGenerator
	bookGen   *market.BookGenerator

	candles      []domain.Candle
	orderBook    domain.OrderBook
	currentPrice float64

	positions positionLedger
	orders    orderLedger
	history   journal

	session *domain.Session

	bus    domain.SignalBus
	prices domain.PriceCache
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine, generates the initial candle series and order
// book, and sets the current price from the last candle close. bus and
// prices may be nil, in which case publishing is skipped.
func New(cfg Config, bus domain.SignalBus, prices domain.PriceCache, logger *slog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	e := &Engine{
		pair:         cfg.Pair,
		tickInterval: cfg.TickInterval,
		candleGen:    market.NewCandleGenerator(rng, cfg.BasePrice, cfg.CandleWindow),
		bookGen:      market.NewBookGenerator(rng, cfg.BookDepth),
		bus:          bus,
		prices:       prices,
		logger:       logger.With(slog.String("component", "engine")),
		now:          time.Now,
	}

	e.candles = e.candleGen.Generate(cfg.CandleWindow)
	e.currentPrice = e.candles[len(e.candles)-1].Close
	e.orderBook = e.bookGen.Generate(e.currentPrice)

	e.logger.Info("engine: initialized",
		slog.String("pair", e.pair),
		slog.Float64("price", e.currentPrice),
		slog.Int("candles", len(e.candles)),
		slog.Int64("seed", seed),
	)

	return e
}

// Run drives the simulation on a wall-clock ticker until the context is
// cancelled. Each tick is performed atomically inside Tick.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.logger.InfoContext(ctx, "engine: tick loop starting",
		slog.Duration("interval", e.tickInterval),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine: tick loop stopped")
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick advances the whole simulation one step: new candle and mark price,
// regenerated order book, position revaluation and trigger sweep, limit
// order fill sweep, then snapshot publication. The entire sequence runs
// under the engine mutex so readers never observe a partial tick.
func (e *Engine) Tick(ctx context.Context) domain.Snapshot {
	e.mu.Lock()

	now := e.now().UTC()

	// 1. Advance the price series.
	var price float64
	e.candles, price = e.candleGen.Tick(e.candles)
	e.currentPrice = price

	// 2. Regenerate the depth snapshot around the new price.
	e.orderBook = e.bookGen.Generate(price)

	// 3. Revalue positions, then sweep stop-loss / take-profit triggers.
	e.positions.revalue(price)
	var closeEvents []domain.TradeEvent
	for _, c := range e.positions.sweepTriggers(price) {
		ev := e.history.appendClose(c.position, price, c.reason, now)
		closeEvents = append(closeEvents, ev)
		metrics.RecordTradeEvent(e.pair, string(ev.Action), ev.Reason)
		metrics.RecordRealizedPnL(e.pair, c.position.PnL)
		e.logger.Info("engine: position force-closed",
			slog.String("position_id", c.position.ID),
			slog.String("reason", c.reason),
			slog.Float64("price", price),
			slog.Float64("pnl", c.position.PnL),
		)
	}

	// 4. Sweep limit order fills; each fill spawns a position at the order
	// price, not the tick price.
	var openEvents []domain.TradeEvent
	for _, order := range e.orders.sweepFills(price, now) {
		pos, err := e.positions.open(domain.TradeRequest{
			Pair:       order.Pair,
			Type:       order.PositionType,
			OrderType:  domain.OrderTypeMarket,
			Size:       order.Size,
			Leverage:   order.Leverage,
			StopLoss:   order.StopLoss,
			TakeProfit: order.TakeProfit,
		}, order.Price, now)
		if err != nil {
			// The order was validated at placement; a failure here means the
			// ledger state is corrupt, which is worth surfacing loudly.
			e.logger.Error("engine: fill could not open position",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		ev := e.history.appendOpen(pos, domain.ReasonLimitFilled, now)
		openEvents = append(openEvents, ev)
		metrics.RecordTradeEvent(e.pair, string(ev.Action), ev.Reason)
		e.logger.Info("engine: limit order filled",
			slog.String("order_id", order.ID),
			slog.String("position_id", pos.ID),
			slog.Float64("limit_price", order.Price),
			slog.Float64("mark_price", price),
		)
	}

	snap := e.snapshotLocked(now)
	metrics.RecordTick(e.pair, price, len(snap.Positions), countOpen(snap.Orders))
	e.mu.Unlock()

	// Publishing happens outside the lock; the snapshot is already a copy.
	e.publishTick(ctx, snap)
	for _, ev := range closeEvents {
		e.publishEvent(ctx, ChannelPositions, "position_closed", ev)
		e.publishEvent(ctx, ChannelTrades, "trade", ev)
	}
	for _, ev := range openEvents {
		e.publishEvent(ctx, ChannelOrders, "order_filled", ev)
		e.publishEvent(ctx, ChannelTrades, "trade", ev)
	}

	return snap
}

// Connect binds a wallet session to the engine. The address must be a
// valid hex wallet address.
func (e *Engine) Connect(wallet string) (domain.Session, error) {
	if !ethcommon.IsHexAddress(wallet) {
		return domain.Session{}, fmt.Errorf("engine: connect %q: %w", wallet, domain.ErrInvalidTrade)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s := domain.Session{
		Wallet:      ethcommon.HexToAddress(wallet).Hex(),
		ConnectedAt: e.now().UTC(),
	}
	e.session = &s

	e.logger.Info("engine: session connected", slog.String("wallet", s.Wallet))
	return s, nil
}

// Disconnect tears down the active session. Subsequent mutations fail with
// ErrNotConnected until a new session is connected.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = nil
	e.logger.Info("engine: session disconnected")
}

// Session returns the active session, or false when none is connected.
func (e *Engine) Session() (domain.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return domain.Session{}, false
	}
	return *e.session, true
}

// TradeResult is the outcome of ExecuteTrade: exactly one of Position or
// Order is set, depending on the request's order type.
type TradeResult struct {
	Position *domain.Position
	Order    *domain.Order
}

// ExecuteTrade opens a market position at the current price or places a
// resting limit order. It fails with ErrNotConnected when no session is
// active and leaves no partial state behind on any error.
func (e *Engine) ExecuteTrade(ctx context.Context, req domain.TradeRequest) (TradeResult, error) {
	e.mu.Lock()

	if e.session == nil {
		e.mu.Unlock()
		return TradeResult{}, fmt.Errorf("engine: execute trade: %w", domain.ErrNotConnected)
	}
	if req.Pair == "" {
		req.Pair = e.pair
	}

	now := e.now().UTC()

	if req.OrderType == domain.OrderTypeLimit {
		order, err := e.orders.place(req, now)
		if err != nil {
			e.mu.Unlock()
			return TradeResult{}, err
		}
		e.mu.Unlock()

		e.logger.Info("engine: limit order placed",
			slog.String("order_id", order.ID),
			slog.String("type", string(order.PositionType)),
			slog.Float64("price", order.Price),
			slog.Float64("size", order.Size),
		)
		e.publishEvent(ctx, ChannelOrders, "order_placed", order)
		return TradeResult{Order: &order}, nil
	}

	pos, err := e.positions.open(req, e.currentPrice, now)
	if err != nil {
		e.mu.Unlock()
		return TradeResult{}, err
	}
	ev := e.history.appendOpen(pos, "", now)
	metrics.RecordTradeEvent(e.pair, string(ev.Action), ev.Reason)
	e.mu.Unlock()

	e.logger.Info("engine: position opened",
		slog.String("position_id", pos.ID),
		slog.String("type", string(pos.Type)),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("size", pos.Size),
		slog.Float64("leverage", pos.Leverage),
	)
	e.publishEvent(ctx, ChannelPositions, "position_opened", pos)
	e.publishEvent(ctx, ChannelTrades, "trade", ev)
	return TradeResult{Position: &pos}, nil
}

// ClosePosition manually closes an open position at the current price. The
// closing fee is charged on the position size and the last computed PnL is
// realized. Unknown ids fail with ErrNotFound.
func (e *Engine) ClosePosition(ctx context.Context, id string) (domain.TradeEvent, error) {
	e.mu.Lock()

	if e.session == nil {
		e.mu.Unlock()
		return domain.TradeEvent{}, fmt.Errorf("engine: close position: %w", domain.ErrNotConnected)
	}

	pos, err := e.positions.close(id, e.currentPrice)
	if err != nil {
		e.mu.Unlock()
		return domain.TradeEvent{}, err
	}
	ev := e.history.appendClose(pos, e.currentPrice, domain.ReasonManualClose, e.now().UTC())
	metrics.RecordTradeEvent(e.pair, string(ev.Action), ev.Reason)
	metrics.RecordRealizedPnL(e.pair, pos.PnL)
	e.mu.Unlock()

	e.logger.Info("engine: position closed",
		slog.String("position_id", id),
		slog.Float64("price", ev.Price),
		slog.Float64("pnl", pos.PnL),
	)
	e.publishEvent(ctx, ChannelPositions, "position_closed", ev)
	e.publishEvent(ctx, ChannelTrades, "trade", ev)
	return ev, nil
}

// CancelOrder cancels a resting limit order. Unknown ids fail with
// ErrNotFound; orders that are already filled or cancelled fail with
// ErrInvalidState and are left untouched.
func (e *Engine) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	e.mu.Lock()

	if e.session == nil {
		e.mu.Unlock()
		return domain.Order{}, fmt.Errorf("engine: cancel order: %w", domain.ErrNotConnected)
	}

	order, err := e.orders.cancel(id, e.now().UTC())
	if err != nil {
		e.mu.Unlock()
		return domain.Order{}, err
	}
	e.mu.Unlock()

	e.logger.Info("engine: order cancelled", slog.String("order_id", id))
	e.publishEvent(ctx, ChannelOrders, "order_cancelled", order)
	return order, nil
}

// Snapshot returns a consistent copy of the full simulation state.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.now().UTC())
}

// CurrentPrice returns the latest mark price.
func (e *Engine) CurrentPrice() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentPrice
}

// Pair returns the trading pair this engine simulates.
func (e *Engine) Pair() string {
	return e.pair
}

// DrainHistory removes and returns up to n of the oldest journal entries.
// The blob archiver calls it to cap in-memory history growth; entries it
// returns have already been removed from the live journal.
func (e *Engine) DrainHistory(n int) []domain.TradeEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.drain(n)
}

// HistoryLen returns the number of journal entries currently in memory.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.len()
}

// snapshotLocked builds a Snapshot. Callers must hold e.mu.
func (e *Engine) snapshotLocked(ts time.Time) domain.Snapshot {
	candles := make([]domain.Candle, len(e.candles))
	copy(candles, e.candles)

	return domain.Snapshot{
		Pair:         e.pair,
		CurrentPrice: e.currentPrice,
		Candles:      candles,
		OrderBook:    e.orderBook,
		Positions:    e.positions.list(),
		Orders:       e.orders.list(),
		TradeHistory: e.history.list(),
		Timestamp:    ts,
	}
}

// publishTick pushes the mark price to the price cache and the snapshot
// summary to the tick channel. Publish failures are logged, never fatal.
func (e *Engine) publishTick(ctx context.Context, snap domain.Snapshot) {
	if e.prices != nil {
		if err := e.prices.SetPrice(ctx, snap.Pair, snap.CurrentPrice, snap.Timestamp); err != nil {
			e.logger.WarnContext(ctx, "engine: price cache update failed",
				slog.String("error", err.Error()),
			)
		}
	}

	e.publishEvent(ctx, ChannelTicks, "tick", map[string]any{
		"pair":           snap.Pair,
		"price":          snap.CurrentPrice,
		"open_positions": len(snap.Positions),
		"open_orders":    countOpen(snap.Orders),
		"ts":             snap.Timestamp.UnixMilli(),
	})
}

// publishEvent marshals and publishes a typed event envelope to the bus.
func (e *Engine) publishEvent(ctx context.Context, channel, event string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, channel, data); err != nil {
		e.logger.WarnContext(ctx, "engine: publish failed",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func countOpen(orders []domain.Order) int {
	n := 0
	for _, o := range orders {
		if o.Status == domain.OrderStatusOpen {
			n++
		}
	}
	return n
}
