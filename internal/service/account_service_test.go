package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexustrade/perpsim/internal/domain"
)

func seedUser(t *testing.T, users *memUserStore, balance decimal.Decimal) string {
	t.Helper()
	id := uuid.NewString()
	err := users.Create(context.Background(), domain.User{
		ID:        id,
		Email:     id + "@example.com",
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func TestRequestDeposit(t *testing.T) {
	users := newMemUserStore()
	deposits := newMemDepositStore()
	svc := NewAccountService(users, deposits, newMemWithdrawalStore(), discardLogger())
	ctx := context.Background()

	userID := seedUser(t, users, decimal.Zero)

	dep, err := svc.RequestDeposit(ctx, userID, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("RequestDeposit: %v", err)
	}
	if dep.Status != domain.TransferStatusPending {
		t.Errorf("status = %s, want pending", dep.Status)
	}

	// The balance is untouched until settlement.
	if !users.balance(userID).IsZero() {
		t.Errorf("balance = %s, want 0 before settlement", users.balance(userID))
	}

	if _, err := svc.RequestDeposit(ctx, userID, decimal.NewFromInt(-5)); !errors.Is(err, domain.ErrInvalidTrade) {
		t.Errorf("negative amount: err = %v, want ErrInvalidTrade", err)
	}
	if _, err := svc.RequestDeposit(ctx, "ghost", decimal.NewFromInt(10)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
}

func TestRequestWithdrawalDebitsUpFront(t *testing.T) {
	users := newMemUserStore()
	svc := NewAccountService(users, newMemDepositStore(), newMemWithdrawalStore(), discardLogger())
	ctx := context.Background()

	userID := seedUser(t, users, decimal.NewFromInt(100))

	wd, err := svc.RequestWithdrawal(ctx, userID, decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}
	if wd.Status != domain.TransferStatusPending {
		t.Errorf("status = %s, want pending", wd.Status)
	}
	if got := users.balance(userID); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("balance = %s, want 40", got)
	}

	// The remaining 40 cannot cover another 60.
	if _, err := svc.RequestWithdrawal(ctx, userID, decimal.NewFromInt(60)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("overdraw: err = %v, want ErrInsufficientBalance", err)
	}
	if got := users.balance(userID); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("failed overdraw changed balance to %s", got)
	}
}

func TestRequestWithdrawalRollsBackOnStoreFailure(t *testing.T) {
	users := newMemUserStore()
	withdrawals := newMemWithdrawalStore()
	withdrawals.createErr = errors.New("disk full")
	svc := NewAccountService(users, newMemDepositStore(), withdrawals, discardLogger())
	ctx := context.Background()

	userID := seedUser(t, users, decimal.NewFromInt(100))

	if _, err := svc.RequestWithdrawal(ctx, userID, decimal.NewFromInt(60)); err == nil {
		t.Fatal("expected store failure to propagate")
	}
	if got := users.balance(userID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance after rollback = %s, want 100", got)
	}
}

func TestSettleOnceCreditsMaturedDeposits(t *testing.T) {
	users := newMemUserStore()
	deposits := newMemDepositStore()
	withdrawals := newMemWithdrawalStore()
	worker := NewSettlementWorker(users, deposits, withdrawals, time.Minute, time.Second, discardLogger())
	ctx := context.Background()

	userID := seedUser(t, users, decimal.Zero)

	matured := domain.Deposit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    decimal.NewFromInt(500),
		Status:    domain.TransferStatusPending,
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}
	fresh := domain.Deposit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    decimal.NewFromInt(900),
		Status:    domain.TransferStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	for _, d := range []domain.Deposit{matured, fresh} {
		if err := deposits.Create(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	worker.SettleOnce(ctx)

	if got := users.balance(userID); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("balance = %s, want 500 (only the matured deposit settles)", got)
	}

	settled, err := deposits.GetByID(ctx, matured.ID)
	if err != nil {
		t.Fatal(err)
	}
	if settled.Status != domain.TransferStatusCompleted {
		t.Errorf("matured status = %s, want completed", settled.Status)
	}
	if settled.TxHash == "" || settled.SettledAt == nil {
		t.Errorf("settled deposit missing tx hash or timestamp: %+v", settled)
	}

	pending, err := deposits.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pending.Status != domain.TransferStatusPending {
		t.Errorf("fresh deposit settled too early: %s", pending.Status)
	}

	// A second pass must not credit the same deposit again.
	worker.SettleOnce(ctx)
	if got := users.balance(userID); !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("balance after second pass = %s, want 500", got)
	}
}

func TestSettleOnceCompletesWithdrawalsWithoutDebit(t *testing.T) {
	users := newMemUserStore()
	withdrawals := newMemWithdrawalStore()
	worker := NewSettlementWorker(users, newMemDepositStore(), withdrawals, time.Minute, time.Second, discardLogger())
	ctx := context.Background()

	// Balance already reflects the request-time debit.
	userID := seedUser(t, users, decimal.NewFromInt(40))

	wd := domain.Withdrawal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    decimal.NewFromInt(60),
		Status:    domain.TransferStatusPending,
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
	}
	if err := withdrawals.Create(ctx, wd); err != nil {
		t.Fatal(err)
	}

	worker.SettleOnce(ctx)

	settled, err := withdrawals.GetByID(ctx, wd.ID)
	if err != nil {
		t.Fatal(err)
	}
	if settled.Status != domain.TransferStatusCompleted {
		t.Errorf("status = %s, want completed", settled.Status)
	}
	if got := users.balance(userID); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("settlement changed the balance to %s", got)
	}
}

func TestFabricateTxHash(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	h1 := FabricateTxHash("transfer-1", ts)
	h2 := FabricateTxHash("transfer-1", ts)
	h3 := FabricateTxHash("transfer-2", ts)

	if h1 != h2 {
		t.Error("hash is not deterministic for identical inputs")
	}
	if h1 == h3 {
		t.Error("different ids produced the same hash")
	}
	if len(h1) != 66 || h1[:2] != "0x" {
		t.Errorf("hash %q is not a 0x-prefixed 32-byte hex string", h1)
	}
}
