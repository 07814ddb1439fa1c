// Package notify raises user-facing notifications. Every notification lands
// on the in-memory toast board shown by the widget; remote senders (Telegram,
// Discord) can mirror a filtered subset of event types.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types.
const (
	EventPredictionPlaced  = "prediction_placed"
	EventWalletUnavailable = "wallet_unavailable"
	EventChainFailed       = "chain_failed"
	EventSubmissionFailed  = "submission_failed"
	EventConnectionLost    = "connection_lost"
	EventDuplicate         = "duplicate_submission"
)

// Level is the visual severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one user-facing message.
type Notification struct {
	Event   string `json:"event"`
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Sender is a remote notification channel.
type Sender interface {
	Send(ctx context.Context, n Notification) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier posts every notification to the toast board and forwards allowed
// event types to the remote senders.
type Notifier struct {
	toasts  *Toasts
	senders []Sender
	events  map[string]bool // allowed event types for remote senders
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. toasts may be nil. If events is empty, all
// event types are forwarded to senders.
func NewNotifier(toasts *Toasts, senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		toasts:  toasts,
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Toasts returns the toast board, or nil.
func (n *Notifier) Toasts() *Toasts { return n.toasts }

// Success is shorthand for a LevelSuccess notification.
func (n *Notifier) Success(ctx context.Context, event, title, message string) error {
	return n.Notify(ctx, Notification{Event: event, Level: LevelSuccess, Title: title, Message: message})
}

// Failure is shorthand for a LevelError notification.
func (n *Notifier) Failure(ctx context.Context, event, title, message string) error {
	return n.Notify(ctx, Notification{Event: event, Level: LevelError, Title: title, Message: message})
}

// Notify shows nt as a toast and relays it to the remote senders when its
// event type is allowed.
func (n *Notifier) Notify(ctx context.Context, nt Notification) error {
	if nt.Level == "" {
		nt.Level = LevelInfo
	}
	if n.toasts != nil {
		n.toasts.Push(nt)
	}

	if len(n.events) > 0 && !n.events[nt.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", nt.Event),
		)
		return nil
	}
	return n.dispatch(ctx, nt)
}

// dispatch delivers to every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, nt Notification) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, nt); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", nt.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func prefix(l Level) string {
	switch l {
	case LevelSuccess:
		return "✅ "
	case LevelError:
		return "⚠️ "
	}
	return ""
}
