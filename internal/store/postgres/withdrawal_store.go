package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexustrade/perpsim/internal/domain"
)

// WithdrawalStore implements domain.WithdrawalStore using PostgreSQL.
type WithdrawalStore struct {
	pool *pgxpool.Pool
}

// NewWithdrawalStore creates a new WithdrawalStore backed by the given pool.
func NewWithdrawalStore(pool *pgxpool.Pool) *WithdrawalStore {
	return &WithdrawalStore{pool: pool}
}

const withdrawalSelectCols = `id, user_id, amount, status, tx_hash, created_at, settled_at`

func scanWithdrawalRow(row pgx.Row) (domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Status, &w.TxHash, &w.CreatedAt, &w.SettledAt)
	if err != nil {
		return domain.Withdrawal{}, err
	}
	return w, nil
}

func scanWithdrawalRows(rows pgx.Rows) ([]domain.Withdrawal, error) {
	defer rows.Close()

	var out []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawalRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Create inserts a new pending withdrawal.
func (s *WithdrawalStore) Create(ctx context.Context, w domain.Withdrawal) error {
	const query = `
		INSERT INTO withdrawals (id, user_id, amount, status, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		w.ID, w.UserID, w.Amount, w.Status, w.TxHash, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create withdrawal %s: %w", w.ID, err)
	}
	return nil
}

// MarkCompleted settles a pending withdrawal with its transaction hash.
// Settling a withdrawal that is not pending returns ErrInvalidState.
func (s *WithdrawalStore) MarkCompleted(ctx context.Context, id, txHash string, settledAt time.Time) error {
	const query = `
		UPDATE withdrawals SET status = $2, tx_hash = $3, settled_at = $4
		WHERE id = $1 AND status = $5`

	tag, err := s.pool.Exec(ctx, query,
		id, domain.TransferStatusCompleted, txHash, settledAt, domain.TransferStatusPending,
	)
	if err != nil {
		return fmt.Errorf("postgres: complete withdrawal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}

// GetByID fetches a withdrawal by id.
func (s *WithdrawalStore) GetByID(ctx context.Context, id string) (domain.Withdrawal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+withdrawalSelectCols+` FROM withdrawals WHERE id = $1`, id)

	w, err := scanWithdrawalRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Withdrawal{}, domain.ErrNotFound
		}
		return domain.Withdrawal{}, fmt.Errorf("postgres: get withdrawal %s: %w", id, err)
	}
	return w, nil
}

// ListByUser fetches the user's withdrawals newest first.
func (s *WithdrawalStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Withdrawal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+withdrawalSelectCols+` FROM withdrawals
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, normalizeLimit(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list withdrawals for %s: %w", userID, err)
	}

	out, err := scanWithdrawalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list withdrawals for %s: %w", userID, err)
	}
	return out, nil
}

// ListPending fetches pending withdrawals created before the cutoff, oldest
// first. The query is served by the partial index on status = 'pending'.
func (s *WithdrawalStore) ListPending(ctx context.Context, before time.Time) ([]domain.Withdrawal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+withdrawalSelectCols+` FROM withdrawals
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at`,
		domain.TransferStatusPending, before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending withdrawals: %w", err)
	}

	out, err := scanWithdrawalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending withdrawals: %w", err)
	}
	return out, nil
}

var _ domain.WithdrawalStore = (*WithdrawalStore)(nil)
