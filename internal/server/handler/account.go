package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nexustrade/perpsim/internal/domain"
	"github.com/nexustrade/perpsim/internal/server/middleware"
)

// AccountService defines the balance and transfer methods the account
// handler requires.
type AccountService interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal) (domain.Deposit, error)
	RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (domain.Withdrawal, error)
	ListDeposits(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Deposit, error)
	ListWithdrawals(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Withdrawal, error)
}

// TradeRecordService defines the persisted-trade methods the account
// handler requires.
type TradeRecordService interface {
	OpenTrade(ctx context.Context, userID, pair string, posType domain.PositionType, amount, leverage float64) (domain.TradeRecord, error)
	CloseTrade(ctx context.Context, userID, tradeID string) (domain.TradeRecord, error)
	ListTrades(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// AccountHandler serves the authenticated account endpoints: balance,
// deposits, withdrawals, and persisted trades.
type AccountHandler struct {
	accounts AccountService
	trades   TradeRecordService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountService, trades TradeRecordService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		trades:   trades,
		logger:   logger,
	}
}

// authedUser pulls the user id set by the auth middleware. Routes serving
// these handlers are always behind Auth; a missing id means a wiring bug.
func authedUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication token")
		return "", false
	}
	return userID, true
}

// GetMe returns the authenticated user, including the current balance.
// GET /api/me
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.GetUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// transferRequest is the JSON body for deposits and withdrawals.
type transferRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RequestDeposit creates a pending deposit that the settlement worker
// completes after the configured delay.
// POST /api/deposit
func (h *AccountHandler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	dep, err := h.accounts.RequestDeposit(r.Context(), userID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dep)
}

// depositsResponse wraps the deposits list.
type depositsResponse struct {
	Deposits []domain.Deposit `json:"deposits"`
}

// ListDeposits returns the user's deposits newest first.
// GET /api/deposit
func (h *AccountHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	deps, err := h.accounts.ListDeposits(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list deposits failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if deps == nil {
		deps = []domain.Deposit{}
	}
	writeJSON(w, http.StatusOK, depositsResponse{Deposits: deps})
}

// RequestWithdrawal debits the balance and creates a pending withdrawal.
// POST /api/withdraw
func (h *AccountHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	wd, err := h.accounts.RequestWithdrawal(r.Context(), userID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// withdrawalsResponse wraps the withdrawals list.
type withdrawalsResponse struct {
	Withdrawals []domain.Withdrawal `json:"withdrawals"`
}

// ListWithdrawals returns the user's withdrawals newest first.
// GET /api/withdraw
func (h *AccountHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	wds, err := h.accounts.ListWithdrawals(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list withdrawals failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if wds == nil {
		wds = []domain.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, withdrawalsResponse{Withdrawals: wds})
}

// openTradeRequest is the JSON body for opening a persisted trade.
type openTradeRequest struct {
	Pair     string  `json:"pair"`
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
	Leverage float64 `json:"leverage"`
}

// OpenTrade opens a leveraged trade against the account balance at the
// engine's current price.
// POST /api/trade
func (h *AccountHandler) OpenTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	var req openTradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.trades.OpenTrade(r.Context(), userID, req.Pair,
		domain.PositionType(req.Type), req.Amount, req.Leverage)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// CloseTrade closes an open persisted trade at the engine's current price.
// POST /api/trade/{id}/close
func (h *AccountHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	rec, err := h.trades.CloseTrade(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// tradesResponse wraps the trades list.
type tradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
}

// ListTrades returns the user's persisted trades newest first.
// GET /api/trade
func (h *AccountHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := authedUser(w, r)
	if !ok {
		return
	}

	recs, err := h.trades.ListTrades(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, tradesResponse{Trades: recs})
}
