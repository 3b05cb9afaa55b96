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

// DepositStore implements domain.DepositStore using PostgreSQL.
type DepositStore struct {
	pool *pgxpool.Pool
}

// NewDepositStore creates a new DepositStore backed by the given pool.
func NewDepositStore(pool *pgxpool.Pool) *DepositStore {
	return &DepositStore{pool: pool}
}

const depositSelectCols = `id, user_id, amount, status, tx_hash, created_at, settled_at`

func scanDepositRow(row pgx.Row) (domain.Deposit, error) {
	var d domain.Deposit
	err := row.Scan(&d.ID, &d.UserID, &d.Amount, &d.Status, &d.TxHash, &d.CreatedAt, &d.SettledAt)
	if err != nil {
		return domain.Deposit{}, err
	}
	return d, nil
}

func scanDepositRows(rows pgx.Rows) ([]domain.Deposit, error) {
	defer rows.Close()

	var out []domain.Deposit
	for rows.Next() {
		d, err := scanDepositRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create inserts a new pending deposit.
func (s *DepositStore) Create(ctx context.Context, d domain.Deposit) error {
	const query = `
		INSERT INTO deposits (id, user_id, amount, status, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.UserID, d.Amount, d.Status, d.TxHash, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create deposit %s: %w", d.ID, err)
	}
	return nil
}

// MarkCompleted settles a pending deposit with its transaction hash.
// Settling a deposit that is not pending returns ErrInvalidState.
func (s *DepositStore) MarkCompleted(ctx context.Context, id, txHash string, settledAt time.Time) error {
	const query = `
		UPDATE deposits SET status = $2, tx_hash = $3, settled_at = $4
		WHERE id = $1 AND status = $5`

	tag, err := s.pool.Exec(ctx, query,
		id, domain.TransferStatusCompleted, txHash, settledAt, domain.TransferStatusPending,
	)
	if err != nil {
		return fmt.Errorf("postgres: complete deposit %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}

// GetByID fetches a deposit by id.
func (s *DepositStore) GetByID(ctx context.Context, id string) (domain.Deposit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+depositSelectCols+` FROM deposits WHERE id = $1`, id)

	d, err := scanDepositRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deposit{}, domain.ErrNotFound
		}
		return domain.Deposit{}, fmt.Errorf("postgres: get deposit %s: %w", id, err)
	}
	return d, nil
}

// ListByUser fetches the user's deposits newest first.
func (s *DepositStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Deposit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+depositSelectCols+` FROM deposits
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, normalizeLimit(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deposits for %s: %w", userID, err)
	}

	out, err := scanDepositRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deposits for %s: %w", userID, err)
	}
	return out, nil
}

// ListPending fetches pending deposits created before the cutoff, oldest
// first. The query is served by the partial index on status = 'pending'.
func (s *DepositStore) ListPending(ctx context.Context, before time.Time) ([]domain.Deposit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+depositSelectCols+` FROM deposits
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at`,
		domain.TransferStatusPending, before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending deposits: %w", err)
	}

	out, err := scanDepositRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending deposits: %w", err)
	}
	return out, nil
}

var _ domain.DepositStore = (*DepositStore)(nil)
