package challenge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	created chan *fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, created: make(chan *fakeTicker, 8)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	f.created <- t
	return t
}

// Advance moves time forward and delivers one tick to every live ticker.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	tickers := append([]*fakeTicker(nil), f.tickers...)
	f.mu.Unlock()

	for _, t := range tickers {
		select {
		case t.ch <- now:
		case <-t.stopped:
		}
	}
}

type fakeTicker struct {
	ch       chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopOnce.Do(func() { close(t.stopped) }) }

func (t *fakeTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

type tickLog struct {
	mu    sync.Mutex
	ticks []Tick
}

func (l *tickLog) add(t Tick) {
	l.mu.Lock()
	l.ticks = append(l.ticks, t)
	l.mu.Unlock()
}

func (l *tickLog) all() []Tick {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Tick(nil), l.ticks...)
}

func TestCountdownClosesExactlyOnceAfterWindow(t *testing.T) {
	clock := newFakeClock(t0)
	m := NewMachine(testLogger())
	cd := NewCountdown(m, clock, time.Second, testLogger())
	cd.Observe()

	var log tickLog
	cd.OnTick(log.add)

	var mu sync.Mutex
	closes := 0
	m.OnTransition(func(tr Transition) {
		if tr.Kind == TransitionClosed {
			mu.Lock()
			closes++
			mu.Unlock()
		}
	})

	m.Apply(mustCreated(t, sample("c-1", 120*time.Second)))
	ticker := <-clock.created

	for i := 0; i < 121; i++ {
		clock.Advance(time.Second)
	}

	mu.Lock()
	assert.Equal(t, 1, closes)
	mu.Unlock()
	assert.True(t, ticker.isStopped())
	assert.Empty(t, cd.Active())

	cur, _ := m.Current()
	assert.Equal(t, domain.ChallengeClosed, cur.State)

	ticks := log.all()
	require.Len(t, ticks, 121, "initial tick, 119 running ticks, one closing tick")
	assert.Equal(t, "2:00", ticks[0].Label)
	assert.Equal(t, TierCalm, ticks[0].Tier)

	byRemaining := map[time.Duration]Tick{}
	for _, tk := range ticks {
		byRemaining[tk.Remaining] = tk
	}
	assert.Equal(t, TierCalm, byRemaining[61*time.Second].Tier)
	assert.Equal(t, TierWarning, byRemaining[60*time.Second].Tier)
	assert.Equal(t, TierWarning, byRemaining[30*time.Second].Tier)
	assert.Equal(t, TierUrgent, byRemaining[29*time.Second].Tier)
	assert.Equal(t, TierUrgent, byRemaining[12*time.Second].Tier)
	assert.Equal(t, TierCritical, byRemaining[11*time.Second].Tier)

	last := ticks[len(ticks)-1]
	assert.True(t, last.Closed)
	assert.Equal(t, ClosedLabel, last.Label)
	for _, tk := range ticks {
		assert.GreaterOrEqual(t, tk.Remaining, time.Duration(0))
	}
}

func TestCountdownReplacedByNewChallenge(t *testing.T) {
	clock := newFakeClock(t0)
	m := NewMachine(testLogger())
	cd := NewCountdown(m, clock, time.Second, testLogger())
	cd.Observe()

	m.Apply(mustCreated(t, sample("c-1", time.Minute)))
	first := <-clock.created

	m.Apply(mustCreated(t, sample("c-2", time.Minute)))
	second := <-clock.created

	require.Eventually(t, first.isStopped, time.Second, 5*time.Millisecond)
	assert.False(t, second.isStopped())
	assert.Equal(t, "c-2", cd.Active())

	cd.Stop()
	assert.True(t, second.isStopped())
	assert.Empty(t, cd.Active())
}

func TestCountdownStopsOnResolve(t *testing.T) {
	clock := newFakeClock(t0)
	m := NewMachine(testLogger())
	cd := NewCountdown(m, clock, time.Second, testLogger())
	cd.Observe()

	m.Apply(mustCreated(t, sample("c-1", time.Minute)))
	ticker := <-clock.created

	m.Apply(Winner("s-1", "c-1", []string{"c-1-a"}))
	require.Eventually(t, ticker.isStopped, time.Second, 5*time.Millisecond)
	assert.Empty(t, cd.Active())
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	cd := NewCountdown(NewMachine(testLogger()), nil, 0, testLogger())
	cd.Stop()
	cd.Stop()
	assert.Empty(t, cd.Active())
}
