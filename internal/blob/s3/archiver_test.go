package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nexustrade/perpsim/internal/domain"
)

type fakeWriter struct {
	keys        []string
	bodies      [][]byte
	contentType string
	err         error
}

func (w *fakeWriter) Write(ctx context.Context, key string, data []byte, contentType string) error {
	if w.err != nil {
		return w.err
	}
	w.keys = append(w.keys, key)
	w.bodies = append(w.bodies, data)
	w.contentType = contentType
	return nil
}

type fakeSource struct {
	entries []domain.TradeEvent
}

func (s *fakeSource) HistoryLen() int { return len(s.entries) }

func (s *fakeSource) DrainHistory(n int) []domain.TradeEvent {
	if n > len(s.entries) {
		n = len(s.entries)
	}
	drained := s.entries[:n]
	s.entries = s.entries[n:]
	return drained
}

func testEvents(n int) []domain.TradeEvent {
	events := make([]domain.TradeEvent, n)
	for i := range events {
		events[i] = domain.TradeEvent{
			ID:     string(rune('a' + i)),
			Pair:   "SUI-PERP",
			Type:   domain.PositionTypeLong,
			Action: domain.TradeActionOpen,
			Price:  150,
			Size:   100,
		}
	}
	return events
}

func newTestArchiver(writer domain.BlobWriter, source HistorySource, maxEntries int) *Archiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewArchiver(writer, source, maxEntries, time.Minute, logger)
}

func TestArchiveOnceDrainsOverflowOnly(t *testing.T) {
	writer := &fakeWriter{}
	source := &fakeSource{entries: testEvents(7)}
	a := newTestArchiver(writer, source, 5)

	if err := a.archiveOnce(context.Background()); err != nil {
		t.Fatalf("archiveOnce: %v", err)
	}

	if source.HistoryLen() != 5 {
		t.Errorf("journal = %d entries after drain, want 5", source.HistoryLen())
	}
	if len(writer.keys) != 1 {
		t.Fatalf("uploads = %d, want 1", len(writer.keys))
	}
	if writer.contentType != "application/x-ndjson" {
		t.Errorf("content type = %q", writer.contentType)
	}

	// The body is one JSON object per line, oldest entries first.
	lines := bytes.Split(bytes.TrimSpace(writer.bodies[0]), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("jsonl lines = %d, want 2", len(lines))
	}
	var first domain.TradeEvent
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if first.ID != "a" {
		t.Errorf("first archived id = %q, want the oldest entry", first.ID)
	}
}

func TestArchiveOnceBelowThresholdIsNoop(t *testing.T) {
	writer := &fakeWriter{}
	source := &fakeSource{entries: testEvents(3)}
	a := newTestArchiver(writer, source, 5)

	if err := a.archiveOnce(context.Background()); err != nil {
		t.Fatalf("archiveOnce: %v", err)
	}
	if len(writer.keys) != 0 {
		t.Errorf("uploads = %d, want 0", len(writer.keys))
	}
	if source.HistoryLen() != 3 {
		t.Errorf("journal drained below the threshold: %d entries", source.HistoryLen())
	}
}

func TestArchiveOnceUploadFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bucket gone")}
	source := &fakeSource{entries: testEvents(7)}
	a := newTestArchiver(writer, source, 5)

	if err := a.archiveOnce(context.Background()); err == nil {
		t.Error("upload failure should propagate")
	}
}

func TestArchiveKeyLayout(t *testing.T) {
	ts := time.Date(2025, 1, 2, 15, 4, 5, 123, time.UTC)
	key := archiveKey(ts)

	if !strings.HasPrefix(key, "archive/journal/2025-01-02/") {
		t.Errorf("key %q not partitioned by day", key)
	}
	if !strings.HasSuffix(key, ".jsonl") {
		t.Errorf("key %q missing jsonl suffix", key)
	}
	if key == archiveKey(ts.Add(time.Nanosecond)) {
		t.Error("keys for different timestamps collide")
	}
}
