package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// UserStore persists registered users and their balances.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// AdjustBalance atomically applies a signed delta to the user's balance.
	// It returns ErrInsufficientBalance when the result would be negative.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error
}

// DepositStore persists deposit requests.
type DepositStore interface {
	Create(ctx context.Context, d Deposit) error
	MarkCompleted(ctx context.Context, id, txHash string, settledAt time.Time) error
	GetByID(ctx context.Context, id string) (Deposit, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Deposit, error)
	// ListPending returns pending deposits created before the cutoff,
	// oldest first. Used by the settlement worker.
	ListPending(ctx context.Context, before time.Time) ([]Deposit, error)
}

// WithdrawalStore persists withdrawal requests.
type WithdrawalStore interface {
	Create(ctx context.Context, w Withdrawal) error
	MarkCompleted(ctx context.Context, id, txHash string, settledAt time.Time) error
	GetByID(ctx context.Context, id string) (Withdrawal, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Withdrawal, error)
	// ListPending returns pending withdrawals created before the cutoff,
	// oldest first. Used by the settlement worker.
	ListPending(ctx context.Context, before time.Time) ([]Withdrawal, error)
}

// TradeRecordStore persists account trades.
type TradeRecordStore interface {
	Create(ctx context.Context, t TradeRecord) error
	Close(ctx context.Context, id string, exitPrice, pnl float64, closedAt time.Time) error
	GetByID(ctx context.Context, id string) (TradeRecord, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]TradeRecord, error)
}
