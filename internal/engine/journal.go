package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexustrade/perpsim/internal/domain"
)

// journal is the append-only, insertion-ordered trade history. Entries are
// never mutated or deleted in place; growth is bounded externally by the
// optional archiver, which drains settled entries to blob storage.
type journal struct {
	entries []domain.TradeEvent
}

// appendOpen records a position-open event. fee is charged on the opening
// size at the flat rate.
func (j *journal) appendOpen(pos domain.Position, reason string, ts time.Time) domain.TradeEvent {
	ev := domain.TradeEvent{
		ID:        uuid.NewString(),
		Pair:      pos.Pair,
		Type:      pos.Type,
		Action:    domain.TradeActionOpen,
		Price:     pos.EntryPrice,
		Size:      pos.Size,
		Fee:       pos.Size * domain.FeeRate,
		Reason:    reason,
		Timestamp: ts,
	}
	j.entries = append(j.entries, ev)
	return ev
}

// appendClose records a position-close event. The fee is charged again on
// the closing size, and the position's last computed PnL is realized.
func (j *journal) appendClose(pos domain.Position, price float64, reason string, ts time.Time) domain.TradeEvent {
	pnl := pos.PnL
	ev := domain.TradeEvent{
		ID:        uuid.NewString(),
		Pair:      pos.Pair,
		Type:      pos.Type,
		Action:    domain.TradeActionClose,
		Price:     price,
		Size:      pos.Size,
		Fee:       pos.Size * domain.FeeRate,
		PnL:       &pnl,
		Reason:    reason,
		Timestamp: ts,
	}
	j.entries = append(j.entries, ev)
	return ev
}

// list returns a copy of the journal in insertion order. Consumers that
// want newest-first ordering re-sort by timestamp on their side.
func (j *journal) list() []domain.TradeEvent {
	out := make([]domain.TradeEvent, len(j.entries))
	copy(out, j.entries)
	return out
}

// drain removes and returns up to n entries from the front of the journal.
// The archiver uses it to cap in-memory history growth.
func (j *journal) drain(n int) []domain.TradeEvent {
	if n <= 0 || len(j.entries) == 0 {
		return nil
	}
	if n > len(j.entries) {
		n = len(j.entries)
	}
	drained := make([]domain.TradeEvent, n)
	copy(drained, j.entries[:n])
	j.entries = append(j.entries[:0], j.entries[n:]...)
	return drained
}

func (j *journal) len() int {
	return len(j.entries)
}
