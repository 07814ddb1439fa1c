package executor

import (
	"sync"
	"time"
)

type dedupEntry struct {
	at       time.Time
	inFlight bool
}

// Dedup rejects a second submission of the same key while the first is in
// flight and for ttl after it completed. It is safe for concurrent use.
type Dedup struct {
	seen map[string]dedupEntry
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// NewDedup creates a Dedup with the given quiet window.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]dedupEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Begin marks key as in flight. It returns false if key is already in flight
// or completed within the ttl window.
func (d *Dedup) Begin(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if e, ok := d.seen[key]; ok {
		if e.inFlight || now.Sub(e.at) < d.ttl {
			return false
		}
	}
	d.seen[key] = dedupEntry{at: now, inFlight: true}
	return true
}

// Finish ends the in-flight mark. With keep the key stays blocked for the ttl
// window; otherwise it is released at once so the user can retry.
func (d *Dedup) Finish(key string, keep bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !keep {
		delete(d.seen, key)
		return
	}
	d.seen[key] = dedupEntry{at: d.now()}
}

// Cleanup removes entries whose window has passed. In-flight entries are kept.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, e := range d.seen {
		if !e.inFlight && now.Sub(e.at) >= d.ttl {
			delete(d.seen, key)
		}
	}
}

// Len is the number of tracked keys.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
