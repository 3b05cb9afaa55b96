package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nexustrade/perpsim/internal/domain"
	"github.com/nexustrade/perpsim/internal/engine"
)

// SimulationService is the mutating surface of the trading facade the
// simulation handler needs. Implemented by the engine.
type SimulationService interface {
	Connect(wallet string) (domain.Session, error)
	Disconnect()
	Session() (domain.Session, bool)
	ExecuteTrade(ctx context.Context, req domain.TradeRequest) (engine.TradeResult, error)
	ClosePosition(ctx context.Context, id string) (domain.TradeEvent, error)
	CancelOrder(ctx context.Context, id string) (domain.Order, error)
	Snapshot() domain.Snapshot
}

// SimulationHandler serves the session, position, order, and history
// endpoints of the trading simulation.
type SimulationHandler struct {
	sim    SimulationService
	logger *slog.Logger
}

// NewSimulationHandler creates a SimulationHandler.
func NewSimulationHandler(sim SimulationService, logger *slog.Logger) *SimulationHandler {
	return &SimulationHandler{sim: sim, logger: logger}
}

// connectRequest is the JSON body for session connect.
type connectRequest struct {
	Wallet string `json:"wallet"`
}

// Connect opens a simulated wallet session. All mutating simulation
// endpoints require a session.
// POST /api/session/connect
func (h *SimulationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session, err := h.sim.Connect(req.Wallet)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Disconnect closes the wallet session. Open positions and orders survive
// the disconnect.
// DELETE /api/session
func (h *SimulationHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.sim.Disconnect()
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// GetSession reports the current session, if any.
// GET /api/session
func (h *SimulationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sim.Session()
	if !ok {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ExecuteTrade opens a market position or places a limit order.
// POST /api/positions
func (h *SimulationHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req domain.TradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.sim.ExecuteTrade(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: execute trade failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// positionsResponse wraps the open positions list.
type positionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// ListPositions returns the open positions with mark-to-market PnL.
// GET /api/positions
func (h *SimulationHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.sim.Snapshot().Positions
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, http.StatusOK, positionsResponse{Positions: positions})
}

// ClosePosition closes an open position at the current mark price.
// DELETE /api/positions/{id}
func (h *SimulationHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing position id")
		return
	}

	ev, err := h.sim.ClosePosition(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// ordersResponse wraps the orders list.
type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// ListOrders returns all orders, including filled and cancelled ones.
// GET /api/orders
func (h *SimulationHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.sim.Snapshot().Orders
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, http.StatusOK, ordersResponse{Orders: orders})
}

// CancelOrder cancels a resting limit order.
// DELETE /api/orders/{id}
func (h *SimulationHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.sim.CancelOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// historyResponse wraps the trade journal.
type historyResponse struct {
	History []domain.TradeEvent `json:"history"`
}

// GetHistory returns the in-memory trade journal, oldest first.
// GET /api/history
func (h *SimulationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history := h.sim.Snapshot().TradeHistory
	if history == nil {
		history = []domain.TradeEvent{}
	}
	writeJSON(w, http.StatusOK, historyResponse{History: history})
}
