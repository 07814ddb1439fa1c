package challenge

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tick is one countdown update.
type Tick struct {
	ChallengeID string
	Remaining   time.Duration
	Tier        Tier
	Label       string
	Closed      bool
}

// Countdown drives the timer of the live challenge. At most one timer runs at
// a time; it is replaced on creation and cancelled on close, resolve, and
// Stop.
type Countdown struct {
	machine  *Machine
	clock    Clock
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	onTick func(Tick)
	active string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCountdown creates a countdown bound to machine. interval defaults to one
// second.
func NewCountdown(machine *Machine, clock Clock, interval time.Duration, logger *slog.Logger) *Countdown {
	if clock == nil {
		clock = SystemClock()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		machine:  machine,
		clock:    clock,
		interval: interval,
		logger:   logger.With(slog.String("component", "countdown")),
	}
}

// OnTick sets the tick consumer. It runs on the timer goroutine.
func (c *Countdown) OnTick(fn func(Tick)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Observe attaches the countdown to the machine's transitions.
func (c *Countdown) Observe() {
	c.machine.OnTransition(c.handle)
}

// Active returns the id of the challenge being timed, or "".
func (c *Countdown) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Stop cancels the running timer and waits for it to exit. It must not be
// called from the tick consumer.
func (c *Countdown) Stop() {
	c.mu.Lock()
	done := c.done
	c.stopLocked()
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Countdown) handle(tr Transition) {
	switch tr.Kind {
	case TransitionCreated:
		c.start(tr.Challenge.ID, tr.Challenge.CreatedAt, tr.Challenge.ClosingAt)
	case TransitionClosed, TransitionResolved:
		c.mu.Lock()
		if c.active == tr.Challenge.ID {
			c.stopLocked()
		}
		c.mu.Unlock()
	}
}

func (c *Countdown) start(id string, createdAt, closingAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.active = id
	c.cancel = cancel
	c.done = done

	go c.run(ctx, done, id, closingAt.Sub(createdAt), closingAt)
}

// stopLocked cancels without waiting. Caller must hold c.mu.
func (c *Countdown) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.active = ""
}

func (c *Countdown) run(ctx context.Context, done chan struct{}, id string, total time.Duration, closingAt time.Time) {
	defer close(done)

	if c.step(ctx, id, total, closingAt, c.clock.Now()) {
		return
	}

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			if c.step(ctx, id, total, closingAt, now) {
				return
			}
		}
	}
}

// step emits one tick and reports whether the timer is finished.
func (c *Countdown) step(ctx context.Context, id string, total time.Duration, closingAt, now time.Time) bool {
	if ctx.Err() != nil {
		return true
	}

	remaining := closingAt.Sub(now)
	if remaining <= 0 {
		c.emit(ctx, Tick{ChallengeID: id, Tier: TierCritical, Label: ClosedLabel, Closed: true})
		c.machine.Expire(id, now)
		c.mu.Lock()
		if c.active == id {
			c.stopLocked()
		}
		c.mu.Unlock()
		return true
	}

	c.emit(ctx, Tick{
		ChallengeID: id,
		Remaining:   remaining,
		Tier:        TierFor(remaining, total),
		Label:       Label(remaining),
	})
	return false
}

func (c *Countdown) emit(ctx context.Context, t Tick) {
	c.mu.Lock()
	fn := c.onTick
	c.mu.Unlock()
	if fn == nil || ctx.Err() != nil {
		return
	}
	fn(t)
}
