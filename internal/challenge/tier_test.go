package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierBoundaries(t *testing.T) {
	total := 100 * time.Second
	cases := []struct {
		remaining time.Duration
		want      Tier
	}{
		{100 * time.Second, TierCalm},
		{50*time.Second + time.Nanosecond, TierCalm},
		{50 * time.Second, TierWarning},
		{25 * time.Second, TierWarning},
		{25*time.Second - time.Nanosecond, TierUrgent},
		{10 * time.Second, TierUrgent},
		{10*time.Second - time.Nanosecond, TierCritical},
		{time.Nanosecond, TierCritical},
		{0, TierCritical},
		{-time.Second, TierCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TierFor(tc.remaining, total), "remaining=%s", tc.remaining)
	}
	assert.Equal(t, TierCritical, TierFor(time.Second, 0))
}

func TestTierBoundariesOnOddWindow(t *testing.T) {
	// 30% and 10% of 7s fall between whole milliseconds.
	total := 7 * time.Second
	assert.Equal(t, TierWarning, TierFor(1750*time.Millisecond, total))
	assert.Equal(t, TierUrgent, TierFor(1749*time.Millisecond, total))
	assert.Equal(t, TierUrgent, TierFor(700*time.Millisecond, total))
	assert.Equal(t, TierCritical, TierFor(699*time.Millisecond, total))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "2:00", Label(2*time.Minute))
	assert.Equal(t, "1:05", Label(65*time.Second))
	assert.Equal(t, "0:01", Label(300*time.Millisecond))
	assert.Equal(t, "0:10", Label(9*time.Second+time.Millisecond))
	assert.Equal(t, ClosedLabel, Label(0))
	assert.Equal(t, ClosedLabel, Label(-5*time.Second))
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "calm", TierCalm.String())
	assert.Equal(t, "warning", TierWarning.String())
	assert.Equal(t, "urgent", TierUrgent.String())
	assert.Equal(t, "critical", TierCritical.String())
}
