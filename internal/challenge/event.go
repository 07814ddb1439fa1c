// Package challenge holds the per-stream challenge lifecycle: the state
// machine fed by push events and the countdown that closes a challenge when
// its window runs out.
package challenge

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// EventKind classifies an inbound challenge event.
type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventWinner
	EventStateUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventWinner:
		return "winner"
	case EventStateUpdate:
		return "state_update"
	default:
		return "unknown"
	}
}

// Event is a decoded push event addressed to the state machine.
type Event struct {
	Kind        EventKind
	StreamID    string
	ChallengeID string

	// Challenge is set for EventCreated.
	Challenge domain.Challenge
	// WinnerOptionIDs is set for EventWinner; it may be empty.
	WinnerOptionIDs []string
	// State is the target of an EventStateUpdate.
	State domain.ChallengeState
}

// Created builds a creation event. A challenge without options is rejected.
func Created(c domain.Challenge) (Event, error) {
	if c.ID == "" {
		return Event{}, fmt.Errorf("challenge: created: %w: missing id", domain.ErrInvalidChallenge)
	}
	if len(c.Options) == 0 {
		return Event{}, fmt.Errorf("challenge: created %s: %w: no options", c.ID, domain.ErrInvalidChallenge)
	}
	if !c.ClosingAt.After(c.CreatedAt) {
		return Event{}, fmt.Errorf("challenge: created %s: %w: closing time not after creation", c.ID, domain.ErrInvalidChallenge)
	}
	return Event{
		Kind:        EventCreated,
		StreamID:    c.StreamID,
		ChallengeID: c.ID,
		Challenge:   c.Clone(),
	}, nil
}

// Winner builds a winner broadcast for challengeID.
func Winner(streamID, challengeID string, optionIDs []string) Event {
	return Event{
		Kind:            EventWinner,
		StreamID:        streamID,
		ChallengeID:     challengeID,
		WinnerOptionIDs: append([]string(nil), optionIDs...),
	}
}

// StateUpdate builds an explicit state change for challengeID.
func StateUpdate(streamID, challengeID string, state domain.ChallengeState) Event {
	return Event{
		Kind:        EventStateUpdate,
		StreamID:    streamID,
		ChallengeID: challengeID,
		State:       state,
	}
}

// TransitionKind names what a transition did.
type TransitionKind int

const (
	TransitionCreated TransitionKind = iota + 1
	TransitionClosed
	TransitionResolved
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionCreated:
		return "created"
	case TransitionClosed:
		return "closed"
	case TransitionResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Transition is an applied state change. Challenge is a snapshot taken after
// the change.
type Transition struct {
	Kind      TransitionKind
	Challenge domain.Challenge
	// Replaced is the id of the challenge a creation displaced, if any.
	Replaced string
	At       time.Time
}
