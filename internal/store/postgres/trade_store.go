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

// TradeRecordStore implements domain.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *pgxpool.Pool
}

// NewTradeRecordStore creates a new TradeRecordStore backed by the given pool.
func NewTradeRecordStore(pool *pgxpool.Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

const tradeSelectCols = `id, user_id, pair, type, entry_price, exit_price, amount, leverage, pnl, status, created_at, closed_at`

func scanTradeRow(row pgx.Row) (domain.TradeRecord, error) {
	var t domain.TradeRecord
	err := row.Scan(
		&t.ID, &t.UserID, &t.Pair, &t.Type, &t.EntryPrice, &t.ExitPrice,
		&t.Amount, &t.Leverage, &t.PnL, &t.Status, &t.CreatedAt, &t.ClosedAt,
	)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create inserts a new open trade record.
func (s *TradeRecordStore) Create(ctx context.Context, t domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (id, user_id, pair, type, entry_price, amount, leverage, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.UserID, t.Pair, t.Type, t.EntryPrice, t.Amount, t.Leverage, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create trade %s: %w", t.ID, err)
	}
	return nil
}

// Close settles an open trade with its exit price and realized PnL.
// Closing a trade that is not open returns ErrInvalidState.
func (s *TradeRecordStore) Close(ctx context.Context, id string, exitPrice, pnl float64, closedAt time.Time) error {
	const query = `
		UPDATE trades SET status = $2, exit_price = $3, pnl = $4, closed_at = $5
		WHERE id = $1 AND status = $6`

	tag, err := s.pool.Exec(ctx, query,
		id, domain.TradeRecordStatusClosed, exitPrice, pnl, closedAt, domain.TradeRecordStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("postgres: close trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}

// GetByID fetches a trade record by id.
func (s *TradeRecordStore) GetByID(ctx context.Context, id string) (domain.TradeRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)

	t, err := scanTradeRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByUser fetches the user's trades newest first.
func (s *TradeRecordStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, normalizeLimit(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", userID, err)
	}

	out, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", userID, err)
	}
	return out, nil
}

var _ domain.TradeRecordStore = (*TradeRecordStore)(nil)
