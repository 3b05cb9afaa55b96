package handler

import (
	"log/slog"
	"net/http"

	"github.com/nexustrade/perpsim/internal/domain"
)

// MarketView is the read-only view of the simulation the market handler
// needs.
type MarketView interface {
	Snapshot() domain.Snapshot
	CurrentPrice() float64
	Pair() string
}

// MarketHandler serves the simulation's market data endpoints.
type MarketHandler struct {
	view   MarketView
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(view MarketView, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{view: view, logger: logger}
}

// GetSnapshot returns the full simulation state: price, candles, order
// book, positions, orders, and trade history.
// GET /api/snapshot
func (h *MarketHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view.Snapshot())
}

// candlesResponse wraps the candle series.
type candlesResponse struct {
	Pair    string          `json:"pair"`
	Candles []domain.Candle `json:"candles"`
}

// GetCandles returns the current candle window.
// GET /api/candles
func (h *MarketHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	snap := h.view.Snapshot()
	writeJSON(w, http.StatusOK, candlesResponse{
		Pair:    snap.Pair,
		Candles: snap.Candles,
	})
}

// GetOrderBook returns the synthetic order book around the current price.
// GET /api/orderbook
func (h *MarketHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view.Snapshot().OrderBook)
}

// GetPrice returns just the current mark price.
// GET /api/price
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pair":  h.view.Pair(),
		"price": h.view.CurrentPrice(),
	})
}
