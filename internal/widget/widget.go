// Package widget is the content context: the prediction card shown next to a
// live stream. It owns a realtime session, the challenge machine and its
// countdown, a bridge port to the background, and the transaction flow.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/predictlive/internal/bridge"
	"github.com/alanyoungcy/predictlive/internal/challenge"
	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/executor"
	"github.com/alanyoungcy/predictlive/internal/notify"
)

var (
	// ErrNoChallenge is returned by Select when no open challenge is live.
	ErrNoChallenge = errors.New("widget: no open challenge")
	// ErrUnknownOption is returned by Select for an option not on the card.
	ErrUnknownOption = errors.New("widget: unknown option")
	// ErrWalletRequired is returned by Select after handing the choice to the
	// popup because no wallet is connected.
	ErrWalletRequired = errors.New("widget: wallet not connected")
)

// Session is the part of session.Manager the card drives.
type Session interface {
	Connect(ctx context.Context, humanID string) (bool, error)
	Disconnect()
	OnConnectionStatusChange(fn func(connected bool))
	OnChallengeEvent(fn func(challenge.Event))
	OnFallbackSignal(fn func())
	State() domain.ConnectionState
	Identity() (domain.StreamIdentity, bool)
}

// Placer runs the prediction flow.
type Placer interface {
	Place(ctx context.Context, choice domain.PendingChoice) (executor.Outcome, error)
}

// Deps are the components one card instance owns.
type Deps struct {
	Session   Session
	Machine   *challenge.Machine
	Countdown *challenge.Countdown
	Bridge    *bridge.Client
	Placer    Placer
	Notifier  *notify.Notifier
}

// Config tunes the card.
type Config struct {
	Channel            string
	WalletPollInterval time.Duration
	DefaultAmount      float64
}

// Widget is the prediction card view-model for one tab.
type Widget struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	card     Card
	onChange func(Card)
	closing  bool
	cancel   context.CancelFunc
	done     chan struct{}

	// Connect calls in flight. The session tears the old channel down
	// first, and that drop is not a lost connection.
	reconnecting int
}

// New creates a card and subscribes it to its components. Nothing connects
// until Run or Connect.
func New(deps Deps, cfg Config, logger *slog.Logger) *Widget {
	if cfg.WalletPollInterval <= 0 {
		cfg.WalletPollInterval = 5 * time.Second
	}
	if cfg.DefaultAmount <= 0 {
		cfg.DefaultAmount = 1
	}
	w := &Widget{
		deps:   deps,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "widget"), slog.String("channel", cfg.Channel)),
		card:   Card{Channel: cfg.Channel, Status: domain.Disconnected.String()},
	}

	deps.Session.OnConnectionStatusChange(w.handleStatus)
	deps.Session.OnChallengeEvent(w.handleEvent)
	deps.Session.OnFallbackSignal(w.handleFallback)
	deps.Machine.OnTransition(w.handleTransition)
	deps.Countdown.Observe()
	deps.Countdown.OnTick(w.handleTick)
	deps.Bridge.Port().OnPush(w.handlePush)
	if deps.Notifier != nil && deps.Notifier.Toasts() != nil {
		deps.Notifier.Toasts().OnToast(func(notify.Toast) { w.update(func(*Card) {}) })
	}
	return w
}

// OnChange sets the single render callback. It runs outside the card's lock.
func (w *Widget) OnChange(fn func(Card)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Snapshot returns the current card.
func (w *Widget) Snapshot() Card {
	w.mu.Lock()
	c := w.card
	w.mu.Unlock()
	return w.decorate(c)
}

func (w *Widget) decorate(c Card) Card {
	c.Options = append([]OptionView(nil), c.Options...)
	if w.deps.Notifier != nil && w.deps.Notifier.Toasts() != nil {
		c.Toasts = w.deps.Notifier.Toasts().Active()
	}
	return c
}

// Run connects, keeps the wallet status fresh until ctx is done, then closes
// the card.
func (w *Widget) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Close()
	return nil
}

// Start connects the session and starts the wallet status poller. A stream
// that is not live or cannot be resolved leaves the card in its inactive,
// reconnectable state rather than failing.
func (w *Widget) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("widget: start: already started")
	}
	pollCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	done := make(chan struct{})
	w.done = done
	w.mu.Unlock()

	go w.pollWallet(pollCtx, done)

	if _, err := w.Connect(ctx); err != nil {
		w.logger.Warn("initial connect failed", slog.String("error", err.Error()))
	}
	return nil
}

// Connect (re)opens the realtime session for the configured channel and
// reports whether the stream is live.
func (w *Widget) Connect(ctx context.Context) (bool, error) {
	w.deps.Countdown.Stop()
	w.deps.Machine.Reset()
	w.deps.Machine.Bind("")
	w.update(func(c *Card) {
		c.clearChallenge()
		c.Live = false
		c.StreamID = ""
	})

	w.mu.Lock()
	w.reconnecting++
	w.mu.Unlock()
	live, err := w.deps.Session.Connect(ctx, w.cfg.Channel)
	w.mu.Lock()
	w.reconnecting--
	w.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("widget: connect: %w", err)
	}
	if !live {
		w.logger.Info("stream inactive")
		return false, nil
	}

	ident, _ := w.deps.Session.Identity()
	w.deps.Machine.Bind(ident.ResolvedID)
	w.update(func(c *Card) {
		c.Live = true
		c.StreamID = ident.ResolvedID
	})
	return true, nil
}

// Reconnect is the user-facing retry after a lost connection.
func (w *Widget) Reconnect(ctx context.Context) (bool, error) {
	return w.Connect(ctx)
}

// Select picks an option of the live challenge. Without a connected wallet
// the choice is parked in the background and the popup opened.
func (w *Widget) Select(ctx context.Context, optionID string, amount float64) (executor.Outcome, error) {
	if amount <= 0 {
		amount = w.cfg.DefaultAmount
	}

	w.mu.Lock()
	card := w.card
	w.mu.Unlock()

	if card.ChallengeID == "" || card.State != domain.ChallengeOpen {
		return executor.Outcome{}, ErrNoChallenge
	}
	var opt *OptionView
	for i := range card.Options {
		if card.Options[i].ID == optionID {
			opt = &card.Options[i]
			break
		}
	}
	if opt == nil {
		return executor.Outcome{}, fmt.Errorf("%w: %s", ErrUnknownOption, optionID)
	}

	choice := domain.PendingChoice{
		ChallengeID: card.ChallengeID,
		OptionID:    opt.ID,
		OptionKey:   opt.Key,
		OptionCode:  opt.Code,
		TokenName:   opt.TokenName,
		Amount:      amount,
	}

	if !card.Wallet.IsConnected {
		if err := w.deps.Bridge.OpenPopupForTransaction(ctx, choice); err != nil {
			w.logger.Warn("open popup failed", slog.String("error", err.Error()))
			return executor.Outcome{Choice: choice}, fmt.Errorf("widget: select: %w", err)
		}
		return executor.Outcome{Choice: choice}, ErrWalletRequired
	}

	w.update(func(c *Card) { c.Busy = true })
	defer w.update(func(c *Card) { c.Busy = false })

	return w.deps.Placer.Place(ctx, choice)
}

// OpenPopup asks the background to show the wallet popup.
func (w *Widget) OpenPopup(ctx context.Context) error {
	return w.deps.Bridge.OpenPopup(ctx)
}

// Close tears the card down. It is idempotent.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return
	}
	w.closing = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	w.deps.Countdown.Stop()
	w.deps.Session.Disconnect()
	w.deps.Bridge.Port().Close()
	w.logger.Info("widget closed")
}

func (w *Widget) pollWallet(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.refreshWallet(ctx)
	ticker := time.NewTicker(w.cfg.WalletPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshWallet(ctx)
		}
	}
}

func (w *Widget) refreshWallet(ctx context.Context) {
	st, err := w.deps.Bridge.GetWalletStatus(ctx)
	if err != nil {
		w.logger.Debug("wallet status poll failed", slog.String("error", err.Error()))
		return
	}
	w.setWallet(st)
}

func (w *Widget) setWallet(st domain.WalletStatus) {
	w.mu.Lock()
	changed := w.card.Wallet != st
	w.mu.Unlock()
	if changed {
		w.update(func(c *Card) { c.Wallet = st })
	}
}

func (w *Widget) handlePush(p bridge.Push) {
	if p.Action != bridge.PushWalletStatusChanged {
		return
	}
	var st domain.WalletStatus
	if err := (bridge.Response{Data: p.Payload}).Decode(&st); err != nil {
		w.logger.Debug("bad wallet push", slog.String("error", err.Error()))
		return
	}
	w.setWallet(st)
}

func (w *Widget) handleStatus(connected bool) {
	state := w.deps.Session.State()
	switch {
	case connected:
		state = domain.Connected
	case state == domain.Connected:
		state = domain.Disconnected
	}

	w.mu.Lock()
	wasConnected := w.card.Connection == domain.Connected
	quiet := w.closing || w.reconnecting > 0
	w.mu.Unlock()

	w.update(func(c *Card) {
		c.Connection = state
		c.Status = state.String()
	})

	if wasConnected && !connected && !quiet && w.deps.Notifier != nil {
		_ = w.deps.Notifier.Notify(context.Background(), notify.Notification{
			Event:   notify.EventConnectionLost,
			Level:   notify.LevelError,
			Title:   "Connection lost",
			Message: "Live updates stopped. Reconnect to keep predicting.",
		})
	}
}

func (w *Widget) handleEvent(ev challenge.Event) {
	w.deps.Machine.Apply(ev)
}

func (w *Widget) handleFallback() {
	now := w.now()
	w.update(func(c *Card) { c.LastPing = now })
}

func (w *Widget) handleTransition(tr challenge.Transition) {
	now := w.now()
	w.update(func(c *Card) { c.applyChallenge(tr.Challenge, now) })
	w.logger.Info("challenge transition",
		slog.String("challenge_id", tr.Challenge.ID),
		slog.String("kind", tr.Kind.String()),
	)
}

func (w *Widget) handleTick(t challenge.Tick) {
	w.update(func(c *Card) { c.applyTick(t) })
}

// update mutates the card under the lock and renders it outside.
func (w *Widget) update(fn func(*Card)) {
	w.mu.Lock()
	fn(&w.card)
	c := w.card
	render := w.onChange
	w.mu.Unlock()

	if render != nil {
		render(w.decorate(c))
	}
}
