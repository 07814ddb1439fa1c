package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/popup"
)

const popupTimeout = 30 * time.Second

// popupLauncher "opens" the headless popup: it reads the popup view, and when
// no wallet is connected yet it connects the configured account.
type popupLauncher struct {
	popup  atomic.Pointer[popup.Popup]
	logger *slog.Logger
	opened chan struct{} // signalled after each run; tests only
}

func newPopupLauncher(logger *slog.Logger) *popupLauncher {
	return &popupLauncher{logger: logger.With(slog.String("component", "popup_launcher"))}
}

func (l *popupLauncher) attach(p *popup.Popup) {
	l.popup.Store(p)
}

// OpenPopup returns at once; the popup runs on its own like a browser window.
func (l *popupLauncher) OpenPopup(_ context.Context, reason string) error {
	p := l.popup.Load()
	if p == nil {
		return errors.New("popup not available")
	}
	go l.run(p, reason)
	return nil
}

func (l *popupLauncher) run(p *popup.Popup, reason string) {
	defer func() {
		if l.opened != nil {
			l.opened <- struct{}{}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), popupTimeout)
	defer cancel()

	view, err := p.Open(ctx)
	if err != nil {
		l.logger.Warn("popup open failed", slog.String("error", err.Error()))
		return
	}
	if view.Pending != nil {
		l.logger.Info("popup opened for transaction",
			slog.String("challenge_id", view.Pending.ChallengeID),
			slog.String("option_id", view.Pending.OptionID),
			slog.Float64("amount", view.Pending.Amount),
		)
	} else {
		l.logger.Info("popup opened", slog.String("reason", reason))
	}
	if view.Wallet.IsConnected {
		return
	}

	st, err := p.Connect(ctx)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, domain.ErrWalletUnavailable) {
			level = slog.LevelInfo
		}
		l.logger.Log(ctx, level, "wallet connect failed", slog.String("error", err.Error()))
		return
	}
	l.logger.Info("wallet connected from popup", slog.String("address", st.Address))
}
