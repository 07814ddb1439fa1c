package domain

import "context"

// Subscriber is a fallback channel: a subscription to row change
// notifications for a stream. Payloads are opaque; only their arrival matters.
// The returned channel is closed when ctx is cancelled or the subscription
// ends.
type Subscriber interface {
	Subscribe(ctx context.Context, streamID string) (<-chan []byte, error)
}
