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

// AccountService manages user balances and the deposit / withdrawal
// lifecycle. Deposits credit the balance when the settlement worker
// completes them; withdrawals debit immediately so the balance check
// happens at request time.
type AccountService struct {
	users       domain.UserStore
	deposits    domain.DepositStore
	withdrawals domain.WithdrawalStore
	logger      *slog.Logger
}

// NewAccountService creates an AccountService with all required stores.
func NewAccountService(
	users domain.UserStore,
	deposits domain.DepositStore,
	withdrawals domain.WithdrawalStore,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:       users,
		deposits:    deposits,
		withdrawals: withdrawals,
		logger:      logger.With(slog.String("component", "account_service")),
	}
}

// GetUser fetches the user record, including the current balance.
func (s *AccountService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("account_service: get user: %w", err)
	}
	return user, nil
}

// RequestDeposit creates a pending deposit. The balance is credited later by
// the settlement worker.
func (s *AccountService) RequestDeposit(ctx context.Context, userID string, amount decimal.Decimal) (domain.Deposit, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Deposit{}, fmt.Errorf("account_service: deposit amount must be positive: %w", domain.ErrInvalidTrade)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return domain.Deposit{}, fmt.Errorf("account_service: deposit: %w", err)
	}

	dep := domain.Deposit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    domain.TransferStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.deposits.Create(ctx, dep); err != nil {
		return domain.Deposit{}, fmt.Errorf("account_service: create deposit: %w", err)
	}

	s.logger.InfoContext(ctx, "account_service: deposit requested",
		slog.String("deposit_id", dep.ID),
		slog.String("user_id", userID),
		slog.String("amount", amount.String()),
	)
	return dep, nil
}

// RequestWithdrawal debits the balance and creates a pending withdrawal.
// An insufficient balance fails the request before anything is persisted.
func (s *AccountService) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal) (domain.Withdrawal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Withdrawal{}, fmt.Errorf("account_service: withdrawal amount must be positive: %w", domain.ErrInvalidTrade)
	}

	if err := s.users.AdjustBalance(ctx, userID, amount.Neg()); err != nil {
		return domain.Withdrawal{}, fmt.Errorf("account_service: debit balance: %w", err)
	}

	wd := domain.Withdrawal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    domain.TransferStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.withdrawals.Create(ctx, wd); err != nil {
		// Roll the debit back so the failed request does not eat funds.
		if creditErr := s.users.AdjustBalance(ctx, userID, amount); creditErr != nil {
			s.logger.ErrorContext(ctx, "account_service: rollback credit failed",
				slog.String("user_id", userID),
				slog.String("error", creditErr.Error()),
			)
		}
		return domain.Withdrawal{}, fmt.Errorf("account_service: create withdrawal: %w", err)
	}

	s.logger.InfoContext(ctx, "account_service: withdrawal requested",
		slog.String("withdrawal_id", wd.ID),
		slog.String("user_id", userID),
		slog.String("amount", amount.String()),
	)
	return wd, nil
}

// ListDeposits returns the user's deposits newest first.
func (s *AccountService) ListDeposits(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Deposit, error) {
	deps, err := s.deposits.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("account_service: list deposits: %w", err)
	}
	return deps, nil
}

// ListWithdrawals returns the user's withdrawals newest first.
func (s *AccountService) ListWithdrawals(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Withdrawal, error) {
	wds, err := s.withdrawals.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("account_service: list withdrawals: %w", err)
	}
	return wds, nil
}
