package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus tracks deposit and withdrawal settlement.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

// Deposit is a balance credit request. It starts pending and is completed
// asynchronously by the settlement worker, which fabricates a transaction
// hash standing in for on-chain confirmation.
type Deposit struct {
	ID        string
	UserID    string
	Amount    decimal.Decimal
	Status    TransferStatus
	TxHash    string
	CreatedAt time.Time
	SettledAt *time.Time
}

// Withdrawal is a balance debit request with the same settlement lifecycle
// as Deposit.
type Withdrawal struct {
	ID        string
	UserID    string
	Amount    decimal.Decimal
	Status    TransferStatus
	TxHash    string
	CreatedAt time.Time
	SettledAt *time.Time
}

// TradeRecordStatus tracks persisted account trades.
type TradeRecordStatus string

const (
	TradeRecordStatusOpen   TradeRecordStatus = "open"
	TradeRecordStatusClosed TradeRecordStatus = "closed"
)

// TradeRecord is a persisted account trade: margin is debited at open and
// margin plus realized PnL credited at close.
type TradeRecord struct {
	ID         string
	UserID     string
	Pair       string
	Type       PositionType
	EntryPrice float64
	ExitPrice  *float64
	Amount     float64
	Leverage   float64
	PnL        *float64
	Status     TradeRecordStatus
	CreatedAt  time.Time
	ClosedAt   *time.Time
}

// User is a registered account holder.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Wallet       string
	Balance      decimal.Decimal
	CreatedAt    time.Time
}
