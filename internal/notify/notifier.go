// Package notify provides a multi-channel notification system. Trade events
// are dispatched to all registered senders (Telegram, Discord) and can be
// filtered by event type so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nexustrade/perpsim/internal/domain"
)

// Event types accepted in the notify.events config list.
const (
	EventStopLoss       = "stop_loss"
	EventTakeProfit     = "take_profit"
	EventOrderFilled    = "order_filled"
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a
// set of allowed event types; NotifyTradeEvent only forwards events whose
// type is in the allowed set, while NotifyAll bypasses the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
// Only events whose type appears in the events slice will be forwarded. If
// events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyTradeEvent formats a journal entry and dispatches it to all senders,
// subject to the event filter.
func (n *Notifier) NotifyTradeEvent(ctx context.Context, ev domain.TradeEvent) error {
	event := eventType(ev)
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	title, message := formatTradeEvent(ev)
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a
// single sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// eventType maps a journal entry to its configurable event type.
func eventType(ev domain.TradeEvent) string {
	switch ev.Reason {
	case domain.ReasonStopLoss:
		return EventStopLoss
	case domain.ReasonTakeProfit:
		return EventTakeProfit
	case domain.ReasonLimitFilled:
		return EventOrderFilled
	}
	if ev.Action == domain.TradeActionOpen {
		return EventPositionOpened
	}
	return EventPositionClosed
}

// formatTradeEvent renders a journal entry as a title and message body.
func formatTradeEvent(ev domain.TradeEvent) (string, string) {
	title := fmt.Sprintf("%s %s %s", ev.Pair, strings.ToUpper(string(ev.Type)), ev.Action)
	if ev.Reason != "" {
		title = fmt.Sprintf("%s (%s)", title, ev.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Price: %.4f\nSize: %.2f\nFee: %.4f", ev.Price, ev.Size, ev.Fee)
	if ev.PnL != nil {
		fmt.Fprintf(&b, "\nPnL: %+.2f", *ev.PnL)
	}
	return title, b.String()
}
