// Package notify pushes operator alerts about finished cycles to chat
// channels. Each alert has an event type, and operators choose which event
// types they receive.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// Event types.
const (
	EventAmbiguousOrder = "ambiguous_order"
	EventKillSwitch     = "kill_switch"
	EventOrderConfirmed = "order_confirmed"
	EventCycleError     = "cycle_error"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every sender. An empty event list allows
// every event.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.senders) > 0 }

// Notify delivers one alert if its event type is allowed. A failing sender
// does not stop delivery to the others.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "notify: event filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CycleReport sends the alerts a finished cycle warrants.
func (n *Notifier) CycleReport(ctx context.Context, snap domain.PortfolioSnapshot) error {
	if !n.Enabled() {
		return nil
	}
	var errs []error
	send := func(event, title, msg string) {
		if err := n.Notify(ctx, event, title, msg); err != nil {
			errs = append(errs, err)
		}
	}

	if snap.KillSwitchActive {
		send(EventKillSwitch, "Kill switch active",
			fmt.Sprintf("cycle %s: kill switch present, no orders placed", snap.CycleID))
	}
	if len(snap.AmbiguousOrders) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "cycle %s: %d order(s) need manual reconciliation\n", snap.CycleID, len(snap.AmbiguousOrders))
		for _, o := range snap.AmbiguousOrders {
			fmt.Fprintf(&b, "- %s %s x%d @ %.2f key=%s\n", o.MarketID, o.Side, o.Size, o.LimitPrice, o.IdempotencyKey)
		}
		send(EventAmbiguousOrder, "Ambiguous orders", b.String())
	}
	for _, o := range snap.RecentOrders {
		if o.CycleID == snap.CycleID && o.Status == domain.OrderStatusConfirmed {
			send(EventOrderConfirmed, "Order confirmed",
				fmt.Sprintf("%s %s x%d @ %.2f (venue id %s)", o.MarketID, o.Side, o.Size, o.LimitPrice, o.VenueOrderID))
		}
	}
	if len(snap.Errors) > 0 {
		send(EventCycleError, "Cycle errors",
			fmt.Sprintf("cycle %s:\n%s", snap.CycleID, strings.Join(snap.Errors, "\n")))
	}
	return errors.Join(errs...)
}
