package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// ChallengeFeed implements domain.Subscriber with a Pub/Sub subscription on
// "<prefix><streamID>".
type ChallengeFeed struct {
	rdb    *redis.Client
	prefix string
}

// NewChallengeFeed creates a ChallengeFeed backed by the given Client.
func NewChallengeFeed(c *Client, prefix string) *ChallengeFeed {
	return &ChallengeFeed{rdb: c.rdb, prefix: prefix}
}

// ChannelName is the Pub/Sub channel for a stream.
func (f *ChallengeFeed) ChannelName(streamID string) string {
	return f.prefix + streamID
}

// Subscribe creates a Pub/Sub subscription and returns a channel of raw
// payloads. The subscription and the returned channel are closed when ctx is
// cancelled.
func (f *ChallengeFeed) Subscribe(ctx context.Context, streamID string) (<-chan []byte, error) {
	channel := f.ChannelName(streamID)
	pubsub := f.rdb.Subscribe(ctx, channel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 32)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.Subscriber = (*ChallengeFeed)(nil)
