package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/predictlive/internal/bridge"
	"github.com/alanyoungcy/predictlive/internal/challenge"
	"github.com/alanyoungcy/predictlive/internal/executor"
	"github.com/alanyoungcy/predictlive/internal/server"
	"github.com/alanyoungcy/predictlive/internal/server/handler"
	"github.com/alanyoungcy/predictlive/internal/server/ws"
	"github.com/alanyoungcy/predictlive/internal/session"
	"github.com/alanyoungcy/predictlive/internal/widget"
)

// card is one content tab: the widget plus the orchestrator it drives.
type card struct {
	tabID  string
	widget *widget.Widget
	orch   *executor.Orchestrator
}

// newCard opens a content tab on the bus and builds its components. The
// configured account, if any, is exposed in the tab's page world.
func (a *App) newCard(deps *Dependencies) (*card, error) {
	tabID := uuid.NewString()
	logger := a.base.With(slog.String("tab", tabID))

	port, err := deps.Bus.Connect(bridge.KindContent, tabID)
	if err != nil {
		return nil, err
	}
	client := bridge.NewClient(port)

	if deps.Provider != nil {
		deps.PageWorld.Register(tabID, deps.Provider)
	}

	manager := session.NewManager(deps.API, deps.Push, deps.Fallback, session.Config{
		DefaultWindow: a.cfg.Stream.DefaultWindow.Duration,
	}, logger)
	machine := challenge.NewMachine(logger)
	countdown := challenge.NewCountdown(machine, challenge.SystemClock(), a.cfg.Widget.TickInterval.Duration, logger)

	orch := executor.NewOrchestrator(deps.Detector, client, manager, deps.Notifier, executor.Config{
		TabID:           tabID,
		UserID:          deps.UserID,
		DuplicateWindow: a.cfg.Widget.DuplicateWindow.Duration,
	}, logger)

	w := widget.New(widget.Deps{
		Session:   manager,
		Machine:   machine,
		Countdown: countdown,
		Bridge:    client,
		Placer:    orch,
		Notifier:  deps.Notifier,
	}, widget.Config{
		Channel:            a.cfg.Stream.Channel,
		WalletPollInterval: a.cfg.Widget.WalletPollInterval.Duration,
	}, logger)

	return &card{tabID: tabID, widget: w, orch: orch}, nil
}

// WatchMode follows the configured channel and logs the card as it changes.
// The local gateway is started too when server.enabled is set.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	c, err := a.newCard(deps)
	if err != nil {
		return err
	}
	defer deps.PageWorld.Unregister(c.tabID)

	var (
		mu   sync.Mutex
		last widget.Card
	)
	c.widget.OnChange(func(cur widget.Card) {
		mu.Lock()
		same := cur.ChallengeID == last.ChallengeID && cur.State == last.State && cur.Status == last.Status
		last = cur
		mu.Unlock()
		if same {
			return
		}
		a.logger.Info("card",
			slog.String("connection", cur.Status),
			slog.String("challenge_id", cur.ChallengeID),
			slog.String("title", cur.Title),
			slog.String("state", string(cur.State)),
			slog.String("countdown", cur.Label),
		)
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.widget.Run(ctx) })
	g.Go(func() error { return c.orch.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, c.widget)
	}

	return g.Wait()
}

// ServeMode runs the card behind the local gateway so a front-end can render
// it and act as popup or content context over WebSocket.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	c, err := a.newCard(deps)
	if err != nil {
		return err
	}
	defer deps.PageWorld.Unregister(c.tabID)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.widget.Run(ctx) })
	g.Go(func() error { return c.orch.Run(ctx) })
	a.startServer(ctx, g, deps, c.widget)

	return g.Wait()
}

// startServer runs the gateway and shuts it down when ctx ends.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, w *widget.Widget) {
	gateway := ws.NewGateway(deps.Bus, a.cfg.Server.CORSOrigins, a.base)
	srv := server.NewServer(server.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Bus, a.base),
		Status: handler.NewStatusHandler(a.cfg.Mode, w, deps.Background),
		Card:   handler.NewCardHandler(w, a.base),
	}, gateway, a.base)

	g.Go(func() error {
		return gateway.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
