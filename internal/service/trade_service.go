package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexustrade/perpsim/internal/domain"
)

// PriceSource reports the simulation's current mark price for a pair.
// Implemented by the engine.
type PriceSource interface {
	Pair() string
	CurrentPrice() float64
}

// TradeService persists leveraged account trades. Opening a trade debits
// the margin from the user's balance; closing credits margin plus realized
// PnL at the engine's current price.
type TradeService struct {
	trades domain.TradeRecordStore
	users  domain.UserStore
	prices PriceSource
	logger *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(
	trades domain.TradeRecordStore,
	users domain.UserStore,
	prices PriceSource,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		trades: trades,
		users:  users,
		prices: prices,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// OpenTrade opens a leveraged trade at the current mark price. The required
// margin is amount / leverage and must be covered by the user's balance.
func (s *TradeService) OpenTrade(ctx context.Context, userID, pair string, posType domain.PositionType, amount, leverage float64) (domain.TradeRecord, error) {
	if posType != domain.PositionTypeLong && posType != domain.PositionTypeShort {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: invalid position type: %w", domain.ErrInvalidTrade)
	}
	if amount <= 0 {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: amount must be positive: %w", domain.ErrInvalidTrade)
	}
	if leverage < domain.MinLeverage || leverage > domain.MaxLeverage {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: leverage out of range: %w", domain.ErrInvalidTrade)
	}
	if pair == "" {
		pair = s.prices.Pair()
	}

	margin := amount / leverage
	if err := s.users.AdjustBalance(ctx, userID, decimal.NewFromFloat(margin).Neg()); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: debit margin: %w", err)
	}

	rec := domain.TradeRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Pair:       pair,
		Type:       posType,
		EntryPrice: s.prices.CurrentPrice(),
		Amount:     amount,
		Leverage:   leverage,
		Status:     domain.TradeRecordStatusOpen,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.trades.Create(ctx, rec); err != nil {
		// Return the margin so the failed open does not eat funds.
		if creditErr := s.users.AdjustBalance(ctx, userID, decimal.NewFromFloat(margin)); creditErr != nil {
			s.logger.ErrorContext(ctx, "trade_service: rollback credit failed",
				slog.String("user_id", userID),
				slog.String("error", creditErr.Error()),
			)
		}
		return domain.TradeRecord{}, fmt.Errorf("trade_service: create trade: %w", err)
	}

	s.logger.InfoContext(ctx, "trade_service: trade opened",
		slog.String("trade_id", rec.ID),
		slog.String("user_id", userID),
		slog.String("type", string(posType)),
		slog.Float64("entry_price", rec.EntryPrice),
		slog.Float64("amount", amount),
		slog.Float64("leverage", leverage),
	)
	return rec, nil
}

// CloseTrade closes an open trade at the current mark price and credits the
// margin plus realized PnL back to the balance. Only the owner can close a
// trade; closing an already-closed trade fails with ErrInvalidState.
func (s *TradeService) CloseTrade(ctx context.Context, userID, tradeID string) (domain.TradeRecord, error) {
	rec, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: get trade: %w", err)
	}
	if rec.UserID != userID {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: trade %s: %w", tradeID, domain.ErrNotFound)
	}
	if rec.Status != domain.TradeRecordStatusOpen {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: trade %s already closed: %w", tradeID, domain.ErrInvalidState)
	}

	now := time.Now().UTC()
	exitPrice := s.prices.CurrentPrice()
	pnl := realizedPnL(rec, exitPrice)

	if err := s.trades.Close(ctx, tradeID, exitPrice, pnl, now); err != nil {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: close trade: %w", err)
	}

	// Credit margin plus PnL. A loss beyond the margin credits nothing.
	credit := rec.Amount/rec.Leverage + pnl
	if credit > 0 {
		if err := s.users.AdjustBalance(ctx, userID, decimal.NewFromFloat(credit)); err != nil {
			return domain.TradeRecord{}, fmt.Errorf("trade_service: credit balance: %w", err)
		}
	}

	rec.Status = domain.TradeRecordStatusClosed
	rec.ExitPrice = &exitPrice
	rec.PnL = &pnl
	rec.ClosedAt = &now

	s.logger.InfoContext(ctx, "trade_service: trade closed",
		slog.String("trade_id", rec.ID),
		slog.String("user_id", userID),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("pnl", pnl),
	)
	return rec, nil
}

// ListTrades returns the user's trades newest first.
func (s *TradeService) ListTrades(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	recs, err := s.trades.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list trades: %w", err)
	}
	return recs, nil
}

// realizedPnL applies the leveraged PnL formula shared with the engine's
// position ledger: percentage move times leverage, sign-inverted for
// shorts, scaled by the notional amount.
func realizedPnL(rec domain.TradeRecord, exitPrice float64) float64 {
	pct := ((exitPrice - rec.EntryPrice) / rec.EntryPrice) * 100 * rec.Leverage
	if rec.Type == domain.PositionTypeShort {
		pct = -pct
	}
	return rec.Amount * pct / 100
}
