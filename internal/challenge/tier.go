package challenge

import (
	"fmt"
	"time"
)

// Tier is the urgency class of a running countdown.
type Tier int

const (
	TierCalm Tier = iota
	TierWarning
	TierUrgent
	TierCritical
)

func (t Tier) String() string {
	switch t {
	case TierCalm:
		return "calm"
	case TierWarning:
		return "warning"
	case TierUrgent:
		return "urgent"
	default:
		return "critical"
	}
}

// TierFor classifies remaining against the full window total:
//
//	calm      remaining > 50%
//	warning   25% <= remaining <= 50%
//	urgent    10% <= remaining < 25%
//	critical  remaining < 10%
//
// Comparisons are done on integer durations so the boundaries are exact.
func TierFor(remaining, total time.Duration) Tier {
	if total <= 0 || remaining <= 0 {
		return TierCritical
	}
	switch {
	case remaining*2 > total:
		return TierCalm
	case remaining*4 >= total:
		return TierWarning
	case remaining*10 >= total:
		return TierUrgent
	default:
		return TierCritical
	}
}

// ClosedLabel is shown once a countdown reaches zero.
const ClosedLabel = "CLOSED"

// Label renders remaining as m:ss, rounding partial seconds up so the label
// only reads 0:00 once the challenge is closed.
func Label(remaining time.Duration) string {
	if remaining <= 0 {
		return ClosedLabel
	}
	secs := int64((remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
