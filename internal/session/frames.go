package session

import (
	"log/slog"

	"github.com/alanyoungcy/predictlive/internal/challenge"
	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/platform/predictapi"
)

// legacyTags maps the older underscore message kinds onto current tags.
var legacyTags = map[string]string{
	"challenge":          predictapi.TagChallengeNew,
	"challenge_closed":   predictapi.TagChallengeClosed,
	"challenge_resolved": predictapi.TagChallengeResolved,
}

// handleFrame decodes one push frame. Bad frames are logged and dropped; they
// never close the channel.
func (m *Manager) handleFrame(gen uint64, event string, data []byte) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	streamID := ""
	if m.identity != nil {
		streamID = m.identity.ResolvedID
	}
	m.mu.Unlock()

	f, err := predictapi.DecodeFrame(event, data)
	if err != nil {
		m.logger.Warn("malformed frame dropped", slog.String("error", err.Error()))
		return
	}
	tag := f.Type
	if mapped, ok := legacyTags[tag]; ok {
		tag = mapped
	}

	var ev challenge.Event
	switch tag {
	case predictapi.TagConnected:
		m.logger.Info("push channel acknowledged")
		return

	case predictapi.TagTest, predictapi.TagPing, predictapi.TagDiagnostic:
		m.logger.Debug("diagnostic frame", slog.String("type", tag))
		return

	case predictapi.TagChallengeNew:
		c, err := predictapi.DecodeChallenge(f.Body(), m.window, m.now())
		if err == nil {
			ev, err = challenge.Created(c)
		}
		if err != nil {
			m.logger.Warn("creation frame dropped", slog.String("error", err.Error()))
			return
		}

	case predictapi.TagChallengeWinner, predictapi.TagChallengeResolved:
		id, winners, err := predictapi.DecodeWinner(f.Body())
		if err != nil {
			m.logger.Warn("winner frame dropped", slog.String("error", err.Error()))
			return
		}
		ev = challenge.Winner(streamID, id, winners)

	case predictapi.TagChallengeUpdate, predictapi.TagChallengeClosed:
		fallback := domain.ChallengeState("")
		if tag == predictapi.TagChallengeClosed {
			fallback = domain.ChallengeClosed
		}
		id, state, err := predictapi.DecodeState(f.Body(), fallback)
		if err != nil {
			m.logger.Warn("state frame dropped", slog.String("error", err.Error()))
			return
		}
		ev = challenge.StateUpdate(streamID, id, state)

	default:
		m.logger.Warn("unknown frame type", slog.String("type", f.Type))
		return
	}

	m.emit(gen, ev)
}

func (m *Manager) emit(gen uint64, ev challenge.Event) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	fn := m.onEvent
	m.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}
