package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexustrade/perpsim/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memUserStore is an in-memory UserStore with the same balance semantics as
// the postgres implementation.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]domain.User

	createErr error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]domain.User)}
}

func (s *memUserStore) Create(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("users: create: %w", domain.ErrAlreadyExists)
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *memUserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("users: get %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("users: get by email: %w", domain.ErrNotFound)
}

func (s *memUserStore) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("users: adjust balance %s: %w", id, domain.ErrNotFound)
	}
	next := u.Balance.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("users: adjust balance %s: %w", id, domain.ErrInsufficientBalance)
	}
	u.Balance = next
	s.users[id] = u
	return nil
}

func (s *memUserStore) balance(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Balance
}

// memDepositStore is an in-memory DepositStore.
type memDepositStore struct {
	mu       sync.Mutex
	deposits map[string]domain.Deposit

	createErr error
}

func newMemDepositStore() *memDepositStore {
	return &memDepositStore{deposits: make(map[string]domain.Deposit)}
}

func (s *memDepositStore) Create(ctx context.Context, d domain.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.deposits[d.ID] = d
	return nil
}

func (s *memDepositStore) MarkCompleted(ctx context.Context, id, txHash string, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return fmt.Errorf("deposits: mark completed %s: %w", id, domain.ErrNotFound)
	}
	if d.Status != domain.TransferStatusPending {
		return fmt.Errorf("deposits: mark completed %s: %w", id, domain.ErrInvalidState)
	}
	t := settledAt
	d.Status = domain.TransferStatusCompleted
	d.TxHash = txHash
	d.SettledAt = &t
	s.deposits[id] = d
	return nil
}

func (s *memDepositStore) GetByID(ctx context.Context, id string) (domain.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return domain.Deposit{}, fmt.Errorf("deposits: get %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (s *memDepositStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Deposit
	for _, d := range s.deposits {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memDepositStore) ListPending(ctx context.Context, before time.Time) ([]domain.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Deposit
	for _, d := range s.deposits {
		if d.Status == domain.TransferStatusPending && d.CreatedAt.Before(before) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// memWithdrawalStore is an in-memory WithdrawalStore.
type memWithdrawalStore struct {
	mu          sync.Mutex
	withdrawals map[string]domain.Withdrawal

	createErr error
}

func newMemWithdrawalStore() *memWithdrawalStore {
	return &memWithdrawalStore{withdrawals: make(map[string]domain.Withdrawal)}
}

func (s *memWithdrawalStore) Create(ctx context.Context, w domain.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.withdrawals[w.ID] = w
	return nil
}

func (s *memWithdrawalStore) MarkCompleted(ctx context.Context, id, txHash string, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return fmt.Errorf("withdrawals: mark completed %s: %w", id, domain.ErrNotFound)
	}
	if w.Status != domain.TransferStatusPending {
		return fmt.Errorf("withdrawals: mark completed %s: %w", id, domain.ErrInvalidState)
	}
	t := settledAt
	w.Status = domain.TransferStatusCompleted
	w.TxHash = txHash
	w.SettledAt = &t
	s.withdrawals[id] = w
	return nil
}

func (s *memWithdrawalStore) GetByID(ctx context.Context, id string) (domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return domain.Withdrawal{}, fmt.Errorf("withdrawals: get %s: %w", id, domain.ErrNotFound)
	}
	return w, nil
}

func (s *memWithdrawalStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Withdrawal
	for _, w := range s.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memWithdrawalStore) ListPending(ctx context.Context, before time.Time) ([]domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Withdrawal
	for _, w := range s.withdrawals {
		if w.Status == domain.TransferStatusPending && w.CreatedAt.Before(before) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// memTradeStore is an in-memory TradeRecordStore.
type memTradeStore struct {
	mu     sync.Mutex
	trades map[string]domain.TradeRecord

	createErr error
}

func newMemTradeStore() *memTradeStore {
	return &memTradeStore{trades: make(map[string]domain.TradeRecord)}
}

func (s *memTradeStore) Create(ctx context.Context, t domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.trades[t.ID] = t
	return nil
}

func (s *memTradeStore) Close(ctx context.Context, id string, exitPrice, pnl float64, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return fmt.Errorf("trades: close %s: %w", id, domain.ErrNotFound)
	}
	if t.Status != domain.TradeRecordStatusOpen {
		return fmt.Errorf("trades: close %s: %w", id, domain.ErrInvalidState)
	}
	ts := closedAt
	t.Status = domain.TradeRecordStatusClosed
	t.ExitPrice = &exitPrice
	t.PnL = &pnl
	t.ClosedAt = &ts
	s.trades[id] = t
	return nil
}

func (s *memTradeStore) GetByID(ctx context.Context, id string) (domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return domain.TradeRecord{}, fmt.Errorf("trades: get %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func (s *memTradeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TradeRecord
	for _, t := range s.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// stubPrices is a fixed-price PriceSource.
type stubPrices struct {
	pair  string
	price float64
}

func (s *stubPrices) Pair() string          { return s.pair }
func (s *stubPrices) CurrentPrice() float64 { return s.price }
