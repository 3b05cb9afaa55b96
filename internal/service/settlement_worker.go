package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/nexustrade/perpsim/internal/domain"
)

// SettlementWorker completes pending deposits and withdrawals after a
// configurable confirmation delay, standing in for on-chain settlement.
// Each completed transfer gets a fabricated transaction hash derived from
// its id and settlement time.
type SettlementWorker struct {
	users       domain.UserStore
	deposits    domain.DepositStore
	withdrawals domain.WithdrawalStore
	logger      *slog.Logger

	// Delay is the confirmation latency before a pending transfer settles.
	Delay time.Duration
	// PollInterval is how often pending transfers are scanned.
	PollInterval time.Duration
}

// NewSettlementWorker creates a SettlementWorker.
func NewSettlementWorker(
	users domain.UserStore,
	deposits domain.DepositStore,
	withdrawals domain.WithdrawalStore,
	delay, pollInterval time.Duration,
	logger *slog.Logger,
) *SettlementWorker {
	return &SettlementWorker{
		users:        users,
		deposits:     deposits,
		withdrawals:  withdrawals,
		logger:       logger.With(slog.String("component", "settlement")),
		Delay:        delay,
		PollInterval: pollInterval,
	}
}

// Run polls for matured transfers until the context is cancelled.
func (w *SettlementWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	w.logger.Info("settlement: worker started",
		slog.Duration("delay", w.Delay),
		slog.Duration("poll_interval", w.PollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("settlement: worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.SettleOnce(ctx)
		}
	}
}

// SettleOnce runs a single settlement pass over matured deposits and
// withdrawals. Failures on individual transfers are logged and retried on
// the next pass.
func (w *SettlementWorker) SettleOnce(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-w.Delay)

	deps, err := w.deposits.ListPending(ctx, cutoff)
	if err != nil {
		w.logger.ErrorContext(ctx, "settlement: list pending deposits failed",
			slog.String("error", err.Error()),
		)
	}
	for _, dep := range deps {
		if err := w.settleDeposit(ctx, dep, now); err != nil {
			w.logger.ErrorContext(ctx, "settlement: deposit failed",
				slog.String("deposit_id", dep.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	wds, err := w.withdrawals.ListPending(ctx, cutoff)
	if err != nil {
		w.logger.ErrorContext(ctx, "settlement: list pending withdrawals failed",
			slog.String("error", err.Error()),
		)
	}
	for _, wd := range wds {
		if err := w.settleWithdrawal(ctx, wd, now); err != nil {
			w.logger.ErrorContext(ctx, "settlement: withdrawal failed",
				slog.String("withdrawal_id", wd.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// settleDeposit marks the deposit completed and credits the balance. The
// MarkCompleted guard on status = pending makes the credit exactly-once
// even if two workers race.
func (w *SettlementWorker) settleDeposit(ctx context.Context, dep domain.Deposit, now time.Time) error {
	txHash := FabricateTxHash(dep.ID, now)
	if err := w.deposits.MarkCompleted(ctx, dep.ID, txHash, now); err != nil {
		return fmt.Errorf("settlement: complete deposit: %w", err)
	}
	if err := w.users.AdjustBalance(ctx, dep.UserID, dep.Amount); err != nil {
		return fmt.Errorf("settlement: credit balance: %w", err)
	}

	w.logger.InfoContext(ctx, "settlement: deposit settled",
		slog.String("deposit_id", dep.ID),
		slog.String("user_id", dep.UserID),
		slog.String("amount", dep.Amount.String()),
		slog.String("tx_hash", txHash),
	)
	return nil
}

// settleWithdrawal marks the withdrawal completed. The balance was already
// debited at request time.
func (w *SettlementWorker) settleWithdrawal(ctx context.Context, wd domain.Withdrawal, now time.Time) error {
	txHash := FabricateTxHash(wd.ID, now)
	if err := w.withdrawals.MarkCompleted(ctx, wd.ID, txHash, now); err != nil {
		return fmt.Errorf("settlement: complete withdrawal: %w", err)
	}

	w.logger.InfoContext(ctx, "settlement: withdrawal settled",
		slog.String("withdrawal_id", wd.ID),
		slog.String("user_id", wd.UserID),
		slog.String("amount", wd.Amount.String()),
		slog.String("tx_hash", txHash),
	)
	return nil
}

// FabricateTxHash derives a deterministic 0x-prefixed 32-byte hash from the
// transfer id and settlement time. It looks like an on-chain transaction
// hash but settles nothing.
func FabricateTxHash(id string, ts time.Time) string {
	payload := fmt.Sprintf("%s:%d", id, ts.UnixNano())
	return ethcrypto.Keccak256Hash([]byte(payload)).Hex()
}
