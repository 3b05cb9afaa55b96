package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexustrade/perpsim/internal/domain"
)

// HistorySource is the narrow view of the simulation engine the archiver
// needs: it can report how many journal entries are held in memory and
// remove the oldest n of them.
type HistorySource interface {
	HistoryLen() int
	DrainHistory(n int) []domain.TradeEvent
}

// Archiver bounds the in-memory trade journal. On every interval it checks
// the journal length and, when it exceeds MaxEntries, drains the oldest
// entries and uploads them to blob storage as a JSONL file.
type Archiver struct {
	writer domain.BlobWriter
	source HistorySource
	logger *slog.Logger

	// MaxEntries is the journal size above which draining starts.
	MaxEntries int

	// Interval is how often the journal length is checked.
	Interval time.Duration
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, source HistorySource, maxEntries int, interval time.Duration, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer:     writer,
		source:     source,
		logger:     logger.With(slog.String("component", "archiver")),
		MaxEntries: maxEntries,
		Interval:   interval,
	}
}

// Run checks the journal on every interval until the context is cancelled.
// A failed upload is logged and retried on the next interval; the drained
// entries for that attempt are lost, which is acceptable for a simulated
// journal.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	a.logger.Info("archiver: started",
		slog.Int("max_entries", a.MaxEntries),
		slog.Duration("interval", a.Interval),
	)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver: stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.archiveOnce(ctx); err != nil {
				a.logger.Error("archiver: archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archiveOnce drains and uploads the journal overflow, if any.
func (a *Archiver) archiveOnce(ctx context.Context) error {
	excess := a.source.HistoryLen() - a.MaxEntries
	if excess <= 0 {
		return nil
	}

	events := a.source.DrainHistory(excess)
	if len(events) == 0 {
		return nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return fmt.Errorf("s3blob: archive journal marshal: %w", err)
	}

	key := archiveKey(time.Now().UTC())
	if err := a.writer.Write(ctx, key, buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive journal upload: %w", err)
	}

	a.logger.Info("archiver: journal drained",
		slog.Int("count", len(events)),
		slog.String("key", key),
	)
	return nil
}

// archiveKey builds the S3 key for an archive file, partitioned by day with
// a nanosecond suffix so successive drains never collide.
//
//	archive/journal/2025-01-02/150405.000000000.jsonl
func archiveKey(ts time.Time) string {
	return fmt.Sprintf("archive/journal/%s/%s.jsonl",
		ts.Format("2006-01-02"), ts.Format("150405.000000000"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
