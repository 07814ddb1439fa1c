// Package session owns the realtime connection to one stream: resolving the
// channel name, opening the push and fallback channels, and routing decoded
// challenge events.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// StreamLookup maps a channel name to the backend's stream id.
type StreamLookup interface {
	LookupStream(ctx context.Context, name string) (string, error)
}

// Resolver resolves channel names once and remembers the answer.
type Resolver struct {
	lookup StreamLookup

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a Resolver.
func NewResolver(lookup StreamLookup) *Resolver {
	return &Resolver{lookup: lookup, cache: make(map[string]string)}
}

// Resolve returns the identity for humanID. Failures are not retried and not
// cached.
func (r *Resolver) Resolve(ctx context.Context, humanID string) (domain.StreamIdentity, error) {
	humanID = strings.TrimSpace(humanID)
	if humanID == "" {
		return domain.StreamIdentity{}, fmt.Errorf("session: resolve: %w: empty channel name", domain.ErrResolution)
	}

	r.mu.Lock()
	id, ok := r.cache[humanID]
	r.mu.Unlock()
	if ok {
		return domain.StreamIdentity{HumanID: humanID, ResolvedID: id}, nil
	}

	id, err := r.lookup.LookupStream(ctx, humanID)
	if err != nil {
		if !errors.Is(err, domain.ErrResolution) {
			err = fmt.Errorf("%w: %v", domain.ErrResolution, err)
		}
		return domain.StreamIdentity{}, fmt.Errorf("session: resolve %s: %w", humanID, err)
	}
	if id == "" {
		return domain.StreamIdentity{}, fmt.Errorf("session: resolve %s: %w: empty id", humanID, domain.ErrResolution)
	}

	r.mu.Lock()
	r.cache[humanID] = id
	r.mu.Unlock()

	return domain.StreamIdentity{HumanID: humanID, ResolvedID: id}, nil
}
