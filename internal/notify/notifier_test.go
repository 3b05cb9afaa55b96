package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nexustrade/perpsim/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (s *recordingSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	return nil
}

func (s *recordingSender) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventType(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.TradeEvent
		want string
	}{
		{"stop loss", domain.TradeEvent{Action: domain.TradeActionClose, Reason: domain.ReasonStopLoss}, EventStopLoss},
		{"take profit", domain.TradeEvent{Action: domain.TradeActionClose, Reason: domain.ReasonTakeProfit}, EventTakeProfit},
		{"limit fill", domain.TradeEvent{Action: domain.TradeActionOpen, Reason: domain.ReasonLimitFilled}, EventOrderFilled},
		{"market open", domain.TradeEvent{Action: domain.TradeActionOpen}, EventPositionOpened},
		{"manual close", domain.TradeEvent{Action: domain.TradeActionClose, Reason: domain.ReasonManualClose}, EventPositionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventType(tt.ev); got != tt.want {
				t.Errorf("eventType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotifyTradeEventFilter(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{EventStopLoss}, discardLogger())
	ctx := context.Background()

	stop := domain.TradeEvent{Pair: "SUI-PERP", Type: domain.PositionTypeLong,
		Action: domain.TradeActionClose, Reason: domain.ReasonStopLoss}
	open := domain.TradeEvent{Pair: "SUI-PERP", Type: domain.PositionTypeLong,
		Action: domain.TradeActionOpen}

	if err := n.NotifyTradeEvent(ctx, stop); err != nil {
		t.Fatal(err)
	}
	if err := n.NotifyTradeEvent(ctx, open); err != nil {
		t.Fatal(err)
	}

	if len(sender.titles) != 1 {
		t.Fatalf("delivered %d notifications, want 1 (filtered)", len(sender.titles))
	}
	if !strings.Contains(sender.titles[0], domain.ReasonStopLoss) {
		t.Errorf("title %q does not carry the close reason", sender.titles[0])
	}
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	ev := domain.TradeEvent{Pair: "SUI-PERP", Type: domain.PositionTypeShort, Action: domain.TradeActionOpen}
	if err := n.NotifyTradeEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(sender.titles) != 1 {
		t.Errorf("delivered %d notifications, want 1", len(sender.titles))
	}
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("rate limited")}
	working := &recordingSender{name: "working"}
	n := NewNotifier([]Sender{broken, working}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "title", "message")
	if err == nil {
		t.Fatal("failed sender should surface an error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not name the failed sender", err)
	}
	if len(working.titles) != 1 {
		t.Errorf("working sender got %d notifications, want 1", len(working.titles))
	}
}

func TestFormatTradeEventIncludesPnL(t *testing.T) {
	pnl := -42.5
	_, message := formatTradeEvent(domain.TradeEvent{
		Pair: "SUI-PERP", Type: domain.PositionTypeLong,
		Action: domain.TradeActionClose, Reason: domain.ReasonManualClose,
		Price: 150.1234, Size: 1000, Fee: 0.6, PnL: &pnl,
	})
	if !strings.Contains(message, "PnL: -42.50") {
		t.Errorf("message %q missing signed PnL", message)
	}
}
