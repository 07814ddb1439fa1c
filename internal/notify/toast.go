package notify

import (
	"sync"
	"time"
)

// DefaultToastLifetime is how long a toast stays visible.
const DefaultToastLifetime = 3 * time.Second

const maxToasts = 8

// Toast is a notification with an expiry.
type Toast struct {
	Notification
	ID        uint64    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Toasts holds transient notifications until they expire.
type Toasts struct {
	lifetime time.Duration
	now      func() time.Time

	mu     sync.Mutex
	nextID uint64
	items  []Toast
	subs   []func(Toast)
}

// NewToasts creates a toast board. now may be nil.
func NewToasts(lifetime time.Duration, now func() time.Time) *Toasts {
	if lifetime <= 0 {
		lifetime = DefaultToastLifetime
	}
	if now == nil {
		now = time.Now
	}
	return &Toasts{lifetime: lifetime, now: now}
}

// OnToast registers a listener called for every new toast.
func (t *Toasts) OnToast(fn func(Toast)) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}

// Push adds a toast and returns it.
func (t *Toasts) Push(n Notification) Toast {
	t.mu.Lock()
	t.nextID++
	toast := Toast{Notification: n, ID: t.nextID, ExpiresAt: t.now().Add(t.lifetime)}
	t.items = append(t.prune(), toast)
	if len(t.items) > maxToasts {
		t.items = t.items[len(t.items)-maxToasts:]
	}
	subs := t.subs
	t.mu.Unlock()

	for _, fn := range subs {
		fn(toast)
	}
	return toast
}

// Active returns the toasts that have not expired, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = t.prune()
	return append([]Toast(nil), t.items...)
}

// Dismiss removes a toast before it expires.
func (t *Toasts) Dismiss(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, item := range t.items {
		if item.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return
		}
	}
}

// prune drops expired items. Caller holds mu.
func (t *Toasts) prune() []Toast {
	now := t.now()
	kept := t.items[:0]
	for _, item := range t.items {
		if now.Before(item.ExpiresAt) {
			kept = append(kept, item)
		}
	}
	return kept
}
