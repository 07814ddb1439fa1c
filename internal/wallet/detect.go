package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// DetectState is the progress of a provider search.
type DetectState int

const (
	Searching DetectState = iota
	Found
	TimedOut
)

func (s DetectState) String() string {
	switch s {
	case Found:
		return "found"
	case TimedOut:
		return "timed_out"
	default:
		return "searching"
	}
}

// Probe reports whether a tab's page world currently exposes a provider.
type Probe interface {
	HasProvider(tabID string) bool
}

// Detector polls a Probe a bounded number of times. Providers are often
// injected after the page loads, so a single check is not enough.
type Detector struct {
	probe    Probe
	attempts int
	interval time.Duration
	logger   *slog.Logger
}

// NewDetector creates a Detector. Non-positive values fall back to 10
// attempts every 500ms.
func NewDetector(probe Probe, attempts int, interval time.Duration, logger *slog.Logger) *Detector {
	if attempts <= 0 {
		attempts = 10
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Detector{
		probe:    probe,
		attempts: attempts,
		interval: interval,
		logger:   logger.With(slog.String("component", "wallet_detector")),
	}
}

// Detect returns Found as soon as the probe succeeds, or TimedOut with
// domain.ErrWalletUnavailable after the last attempt.
func (d *Detector) Detect(ctx context.Context, tabID string) (DetectState, error) {
	for attempt := 1; ; attempt++ {
		if d.probe.HasProvider(tabID) {
			d.logger.Debug("provider found", slog.String("tab", tabID), slog.Int("attempt", attempt))
			return Found, nil
		}
		if attempt >= d.attempts {
			break
		}

		timer := time.NewTimer(d.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return TimedOut, fmt.Errorf("wallet: detect: %w: %v", domain.ErrWalletUnavailable, ctx.Err())
		case <-timer.C:
		}
	}

	d.logger.Warn("no wallet provider", slog.String("tab", tabID), slog.Int("attempts", d.attempts))
	return TimedOut, fmt.Errorf("wallet: detect: %w: no provider after %d attempts", domain.ErrWalletUnavailable, d.attempts)
}
