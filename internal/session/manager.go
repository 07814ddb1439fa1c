package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/predictlive/internal/challenge"
	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/platform/predictapi"
)

// API is the REST surface the manager needs.
type API interface {
	StreamLookup
	StreamStatus(ctx context.Context, streamID string) (domain.StreamStatus, error)
	SubmitPrediction(ctx context.Context, sub domain.PredictionSubmission) (domain.PredictionResponse, error)
}

// PushOpener opens the primary push channel for a stream.
type PushOpener interface {
	Open(ctx context.Context, streamID string, h predictapi.Handlers) predictapi.Channel
}

// Config tunes the manager.
type Config struct {
	// DefaultWindow is used when a creation payload has no closing time.
	DefaultWindow time.Duration
}

// Manager is the realtime session for one stream at a time. Callbacks from a
// channel that has since been torn down are dropped by comparing generations.
type Manager struct {
	api      API
	resolver *Resolver
	push     PushOpener
	fallback domain.Subscriber
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu           sync.Mutex
	identity     *domain.StreamIdentity
	state        domain.ConnectionState
	generation   uint64
	cancel       context.CancelFunc
	channel      predictapi.Channel
	lastFallback time.Time

	onStatus   func(bool)
	onEvent    func(challenge.Event)
	onFallback func()
}

// NewManager creates a Manager. fallback may be nil.
func NewManager(api API, push PushOpener, fallback domain.Subscriber, cfg Config, logger *slog.Logger) *Manager {
	window := cfg.DefaultWindow
	if window <= 0 {
		window = 2 * time.Minute
	}
	return &Manager{
		api:      api,
		resolver: NewResolver(api),
		push:     push,
		fallback: fallback,
		window:   window,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "session")),
	}
}

// OnConnectionStatusChange sets the single status observer, replacing any
// previous one.
func (m *Manager) OnConnectionStatusChange(fn func(connected bool)) {
	m.mu.Lock()
	m.onStatus = fn
	m.mu.Unlock()
}

// OnChallengeEvent sets the consumer of decoded challenge events.
func (m *Manager) OnChallengeEvent(fn func(challenge.Event)) {
	m.mu.Lock()
	m.onEvent = fn
	m.mu.Unlock()
}

// OnFallbackSignal sets the hook fired for each fallback notification.
func (m *Manager) OnFallbackSignal(fn func()) {
	m.mu.Lock()
	m.onFallback = fn
	m.mu.Unlock()
}

// IsConnected reports whether the push channel is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.Connected
}

// State returns the push channel state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the resolved identity of the current session.
func (m *Manager) Identity() (domain.StreamIdentity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return domain.StreamIdentity{}, false
	}
	return *m.identity, true
}

// LastFallbackSignal is when the fallback channel last delivered anything.
func (m *Manager) LastFallbackSignal() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFallback
}

// Connect resolves humanID, checks that the stream is open, and opens the
// push and fallback channels. It returns false without error when the stream
// has no active challenge window. It does not wait for the push handshake.
func (m *Manager) Connect(ctx context.Context, humanID string) (bool, error) {
	m.teardown()

	ident, err := m.resolver.Resolve(ctx, humanID)
	if err != nil {
		m.logger.Warn("stream lookup failed",
			slog.String("channel", humanID),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	status, err := m.api.StreamStatus(ctx, ident.ResolvedID)
	if err != nil {
		m.logger.Warn("stream status failed",
			slog.String("stream_id", ident.ResolvedID),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("session: status %s: %w", ident.ResolvedID, err)
	}
	if !status.Open {
		m.logger.Info("stream not open", slog.String("stream_id", ident.ResolvedID))
		return false, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.identity = &ident
	m.state = domain.Connecting
	m.cancel = cancel
	m.mu.Unlock()

	ch := m.push.Open(runCtx, ident.ResolvedID, predictapi.Handlers{
		OnOpen:  func() { m.handleOpen(gen) },
		OnFrame: func(event string, data []byte) { m.handleFrame(gen, event, data) },
		OnError: func(err error) { m.handleError(gen, err) },
	})

	m.mu.Lock()
	if gen == m.generation {
		m.channel = ch
		ch = nil
	}
	m.mu.Unlock()
	if ch != nil {
		// Torn down while opening.
		_ = ch.Close()
	}

	if m.fallback != nil {
		go m.runFallback(runCtx, gen, ident.ResolvedID)
	}

	m.logger.Info("session opened",
		slog.String("channel", ident.HumanID),
		slog.String("stream_id", ident.ResolvedID),
	)
	return true, nil
}

// Disconnect tears down both channels and clears the identity. It is
// idempotent and notifies the status observer only if the state changed.
func (m *Manager) Disconnect() {
	m.teardown()
}

// SendPrediction relays a submission to the intake endpoint. Transport
// failures are folded into an unsuccessful response.
func (m *Manager) SendPrediction(ctx context.Context, sub domain.PredictionSubmission) domain.PredictionResponse {
	resp, err := m.api.SubmitPrediction(ctx, sub)
	if err != nil {
		msg := resp.Message
		if msg == "" {
			msg = err.Error()
		}
		m.logger.Warn("prediction submission failed",
			slog.String("challenge_id", sub.ChallengeID),
			slog.String("error", err.Error()),
		)
		return domain.PredictionResponse{Success: false, Message: msg}
	}
	return resp
}

// teardown cancels the current generation.
func (m *Manager) teardown() {
	m.mu.Lock()
	m.generation++
	cancel := m.cancel
	ch := m.channel
	m.cancel = nil
	m.channel = nil
	changed := m.state != domain.Disconnected
	m.state = domain.Disconnected
	m.identity = nil
	notify := m.onStatus
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ch != nil {
		_ = ch.Close()
	}
	if changed && notify != nil {
		notify(false)
	}
}

func (m *Manager) handleOpen(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state == domain.Connected {
		m.mu.Unlock()
		return
	}
	m.state = domain.Connected
	notify := m.onStatus
	m.mu.Unlock()

	m.logger.Info("push channel open")
	if notify != nil {
		notify(true)
	}
}

func (m *Manager) handleError(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	changed := m.state != domain.Disconnected
	m.state = domain.Disconnected
	notify := m.onStatus
	m.mu.Unlock()

	m.logger.Warn("push channel error", slog.String("error", err.Error()))
	if changed && notify != nil {
		notify(false)
	}
}

func (m *Manager) runFallback(ctx context.Context, gen uint64, streamID string) {
	ch, err := m.fallback.Subscribe(ctx, streamID)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("fallback subscription failed",
				slog.String("stream_id", streamID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	for payload := range ch {
		m.mu.Lock()
		if gen != m.generation {
			m.mu.Unlock()
			return
		}
		m.lastFallback = m.now()
		fn := m.onFallback
		m.mu.Unlock()

		m.logger.Debug("fallback signal", slog.Int("bytes", len(payload)))
		if fn != nil {
			fn()
		}
	}
}
