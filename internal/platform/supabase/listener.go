package supabase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// Listener implements domain.Subscriber with LISTEN on "<prefix><streamID>".
type Listener struct {
	client *Client
	prefix string
	logger *slog.Logger
}

// NewListener creates a Listener backed by the given Client.
func NewListener(c *Client, prefix string, logger *slog.Logger) *Listener {
	return &Listener{
		client: c,
		prefix: prefix,
		logger: logger.With(slog.String("component", "supabase_listener")),
	}
}

// ChannelName is the notification channel for a stream.
func (l *Listener) ChannelName(streamID string) string {
	return l.prefix + streamID
}

// Subscribe acquires a dedicated connection, issues LISTEN, and forwards
// every notification payload until ctx is cancelled. The returned channel is
// closed when the subscription ends.
func (l *Listener) Subscribe(ctx context.Context, streamID string) (<-chan []byte, error) {
	channel := l.ChannelName(streamID)

	conn, err := l.client.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("supabase: acquire: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("supabase: listen %s: %w", channel, err)
	}

	out := make(chan []byte, 32)
	go func() {
		defer close(out)
		defer func() {
			// The connection goes back to the pool; drop the registration first.
			unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := conn.Exec(unlistenCtx, "UNLISTEN *"); err != nil {
				conn.Conn().Close(unlistenCtx)
			}
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					l.logger.Warn("notification wait failed",
						slog.String("channel", channel),
						slog.String("error", err.Error()),
					)
				}
				return
			}
			select {
			case out <- []byte(n.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.Subscriber = (*Listener)(nil)
