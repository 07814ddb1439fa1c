package domain

import "time"

// ChallengeState is the lifecycle state of a single challenge instance.
type ChallengeState string

const (
	ChallengeOpen     ChallengeState = "open"
	ChallengeClosed   ChallengeState = "closed"
	ChallengeResolved ChallengeState = "resolved"
)

// Valid reports whether s is one of the known lifecycle states.
func (s ChallengeState) Valid() bool {
	switch s {
	case ChallengeOpen, ChallengeClosed, ChallengeResolved:
		return true
	}
	return false
}

// StreamIdentity pairs the channel name a user sees with the identifier the
// prediction backend uses for it.
type StreamIdentity struct {
	HumanID    string `json:"humanId"`
	ResolvedID string `json:"resolvedId"`
}

// ConnectionState is the push channel state as seen by the UI.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ChallengeOption is one selectable answer of a challenge. Only IsWinner may
// change after the option is attached to its challenge.
type ChallengeOption struct {
	ID          string  `json:"id"`
	ChallengeID string  `json:"challengeId"`
	Key         string  `json:"key"`
	DisplayName string  `json:"displayName"`
	TokenName   string  `json:"tokenName"`
	Odds        float64 `json:"odds"`
	IsWinner    bool    `json:"isWinner,omitempty"`
}

// Challenge is a prediction question announced on a stream.
type Challenge struct {
	ID             string            `json:"id"`
	StreamID       string            `json:"streamId"`
	Title          string            `json:"title"`
	State          ChallengeState    `json:"state"`
	CreatedAt      time.Time         `json:"createdAt"`
	ClosingAt      time.Time         `json:"closingAt"`
	Options        []ChallengeOption `json:"options"`
	WinnerOptionID string            `json:"winnerOptionId,omitempty"`
}

// Clone returns a deep copy so observers can hold a snapshot without racing
// the state machine.
func (c Challenge) Clone() Challenge {
	out := c
	if c.Options != nil {
		out.Options = make([]ChallengeOption, len(c.Options))
		copy(out.Options, c.Options)
	}
	return out
}

// Option returns the option with the given id.
func (c Challenge) Option(id string) (ChallengeOption, bool) {
	for _, o := range c.Options {
		if o.ID == id {
			return o, true
		}
	}
	return ChallengeOption{}, false
}

// Duration is the full open window of the challenge.
func (c Challenge) Duration() time.Duration {
	return c.ClosingAt.Sub(c.CreatedAt)
}

// StreamStatus is the answer of the remote status check.
type StreamStatus struct {
	Open     bool   `json:"open"`
	StreamID string `json:"streamId"`
}
