package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

type countingProbe struct {
	mu      sync.Mutex
	calls   int
	foundAt int
}

func (p *countingProbe) HasProvider(string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.foundAt > 0 && p.calls >= p.foundAt
}

func TestDetectorTimesOutAfterAllAttempts(t *testing.T) {
	probe := &countingProbe{}
	d := NewDetector(probe, 10, time.Millisecond, testLogger())

	state, err := d.Detect(context.Background(), "tab-1")
	assert.Equal(t, TimedOut, state)
	assert.ErrorIs(t, err, domain.ErrWalletUnavailable)
	assert.Equal(t, 10, probe.calls)
}

func TestDetectorFindsLateProvider(t *testing.T) {
	probe := &countingProbe{foundAt: 4}
	d := NewDetector(probe, 10, time.Millisecond, testLogger())

	state, err := d.Detect(context.Background(), "tab-1")
	require.NoError(t, err)
	assert.Equal(t, Found, state)
	assert.Equal(t, 4, probe.calls)
}

func TestDetectorHonoursContext(t *testing.T) {
	d := NewDetector(&countingProbe{}, 10, time.Hour, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, err := d.Detect(ctx, "tab-1")
	assert.Equal(t, TimedOut, state)
	assert.ErrorIs(t, err, domain.ErrWalletUnavailable)
}

func TestDetectorAgainstPageWorld(t *testing.T) {
	world := NewPageWorld(newTestStep(), time.Second, testLogger())
	d := NewDetector(world, 50, 2*time.Millisecond, testLogger())

	go func() {
		time.Sleep(10 * time.Millisecond)
		world.Register("tab-1", &fakeProvider{})
	}()

	state, err := d.Detect(context.Background(), "tab-1")
	require.NoError(t, err)
	assert.Equal(t, Found, state)
}

func TestDetectStateString(t *testing.T) {
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "timed_out", TimedOut.String())
}
