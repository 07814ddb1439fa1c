package challenge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// Machine tracks the single live challenge of a stream.
//
// Creation of a different id replaces the live challenge whatever its state.
// Re-announcing the live id is a no-op. State only moves forward:
// open -> closed -> resolved, or open -> resolved.
type Machine struct {
	mu        sync.Mutex
	streamID  string
	current   *domain.Challenge
	observers []func(Transition)
	now       func() time.Time
	logger    *slog.Logger
}

// NewMachine creates an empty machine. Events carrying a stream id other than
// the bound one are ignored; see Bind.
func NewMachine(logger *slog.Logger) *Machine {
	return &Machine{
		now:    time.Now,
		logger: logger.With(slog.String("component", "challenge_machine")),
	}
}

// Bind scopes the machine to a resolved stream id. An empty id accepts events
// from any stream.
func (m *Machine) Bind(streamID string) {
	m.mu.Lock()
	m.streamID = streamID
	m.mu.Unlock()
}

// OnTransition registers an observer. Observers run in registration order,
// outside the machine's lock.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Current returns a snapshot of the live challenge.
func (m *Machine) Current() (domain.Challenge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return domain.Challenge{}, false
	}
	return m.current.Clone(), true
}

// Reset drops the live challenge without emitting a transition.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Apply feeds one event into the machine. It reports whether the event
// changed state; ignored events return false.
func (m *Machine) Apply(ev Event) (Transition, bool) {
	m.mu.Lock()
	tr, ok := m.apply(ev)
	observers := m.observers
	m.mu.Unlock()

	if !ok {
		return Transition{}, false
	}
	m.notify(observers, tr)
	return tr, true
}

// Expire closes challenge id if it is still the live, open challenge and its
// window has elapsed at now.
func (m *Machine) Expire(id string, now time.Time) (Transition, bool) {
	m.mu.Lock()
	c := m.current
	if c == nil || c.ID != id || c.State != domain.ChallengeOpen || now.Before(c.ClosingAt) {
		m.mu.Unlock()
		return Transition{}, false
	}
	c.State = domain.ChallengeClosed
	tr := Transition{Kind: TransitionClosed, Challenge: c.Clone(), At: now}
	observers := m.observers
	m.mu.Unlock()

	m.logger.Info("challenge expired", slog.String("challenge_id", id))
	m.notify(observers, tr)
	return tr, true
}

// apply computes the transition. Caller must hold m.mu.
func (m *Machine) apply(ev Event) (Transition, bool) {
	if m.streamID != "" && ev.StreamID != "" && ev.StreamID != m.streamID {
		m.logger.Debug("event for another stream ignored",
			slog.String("stream_id", ev.StreamID),
			slog.String("kind", ev.Kind.String()),
		)
		return Transition{}, false
	}

	switch ev.Kind {
	case EventCreated:
		return m.create(ev)
	case EventWinner:
		return m.resolve(ev)
	case EventStateUpdate:
		return m.update(ev)
	}
	return Transition{}, false
}

func (m *Machine) create(ev Event) (Transition, bool) {
	if len(ev.Challenge.Options) == 0 {
		m.logger.Warn("creation without options rejected", slog.String("challenge_id", ev.ChallengeID))
		return Transition{}, false
	}
	if m.current != nil && m.current.ID == ev.Challenge.ID {
		return Transition{}, false
	}

	replaced := ""
	if m.current != nil {
		replaced = m.current.ID
	}

	c := ev.Challenge.Clone()
	c.State = domain.ChallengeOpen
	c.WinnerOptionID = ""
	for i := range c.Options {
		c.Options[i].IsWinner = false
	}
	m.current = &c

	return Transition{
		Kind:      TransitionCreated,
		Challenge: c.Clone(),
		Replaced:  replaced,
		At:        m.now(),
	}, true
}

func (m *Machine) resolve(ev Event) (Transition, bool) {
	c := m.current
	if c == nil || c.ID != ev.ChallengeID || c.State == domain.ChallengeResolved {
		return Transition{}, false
	}

	winners := make(map[string]bool, len(ev.WinnerOptionIDs))
	for _, id := range ev.WinnerOptionIDs {
		winners[id] = true
	}
	c.WinnerOptionID = ""
	for i := range c.Options {
		c.Options[i].IsWinner = winners[c.Options[i].ID]
		if c.Options[i].IsWinner && c.WinnerOptionID == "" {
			c.WinnerOptionID = c.Options[i].ID
		}
	}
	c.State = domain.ChallengeResolved

	return Transition{Kind: TransitionResolved, Challenge: c.Clone(), At: m.now()}, true
}

func (m *Machine) update(ev Event) (Transition, bool) {
	c := m.current
	if c == nil || c.ID != ev.ChallengeID {
		return Transition{}, false
	}

	switch {
	case ev.State == domain.ChallengeClosed && c.State == domain.ChallengeOpen:
		c.State = domain.ChallengeClosed
		return Transition{Kind: TransitionClosed, Challenge: c.Clone(), At: m.now()}, true
	case ev.State == domain.ChallengeResolved && c.State != domain.ChallengeResolved:
		c.State = domain.ChallengeResolved
		return Transition{Kind: TransitionResolved, Challenge: c.Clone(), At: m.now()}, true
	}
	return Transition{}, false
}

func (m *Machine) notify(observers []func(Transition), tr Transition) {
	for _, fn := range observers {
		fn(tr)
	}
}
