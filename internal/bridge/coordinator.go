package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// Popup reasons passed to the launcher.
const (
	PopupConnect     = "connect"
	PopupTransaction = "transaction"
)

// PopupLauncher opens the popup context.
type PopupLauncher interface {
	OpenPopup(ctx context.Context, reason string) error
}

// TxExecutor runs a prediction transaction in the page world of a tab.
type TxExecutor interface {
	ExecuteTransaction(ctx context.Context, tabID string, choice domain.PendingChoice) (domain.TxResult, error)
}

// Coordinator is the background context: the single owner of the wallet
// status and of the pending transaction choice.
type Coordinator struct {
	bus      *Bus
	launcher PopupLauncher
	executor TxExecutor
	logger   *slog.Logger

	mu      sync.Mutex
	status  domain.WalletStatus
	pending *domain.PendingChoice
}

// NewCoordinator creates the background and attaches it to bus.
func NewCoordinator(bus *Bus, launcher PopupLauncher, executor TxExecutor, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		bus:      bus,
		launcher: launcher,
		executor: executor,
		logger:   logger.With(slog.String("component", "background")),
	}
	bus.Serve(c.Handle)
	return c
}

// Status returns the authoritative wallet status.
func (c *Coordinator) Status() domain.WalletStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Stop detaches the background from the bus.
func (c *Coordinator) Stop() {
	c.bus.Serve(nil)
}

// Handle serves one bridge request.
func (c *Coordinator) Handle(ctx context.Context, req Request) (any, error) {
	switch req.Action {
	case ActionGetWalletStatus:
		return c.Status(), nil

	case ActionSetWalletStatus:
		var st domain.WalletStatus
		if err := req.DecodePayload(&st); err != nil {
			return nil, err
		}
		return c.setStatus(st), nil

	case ActionOpenPopup:
		return nil, c.openPopup(ctx, PopupConnect)

	case ActionOpenPopupForTransaction:
		var choice domain.PendingChoice
		if err := req.DecodePayload(&choice); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.pending = &choice
		c.mu.Unlock()
		return nil, c.openPopup(ctx, PopupTransaction)

	case ActionGetPendingTransactionChoice:
		c.mu.Lock()
		choice := c.pending
		c.pending = nil
		c.mu.Unlock()
		if choice == nil {
			return nil, nil
		}
		return *choice, nil

	case ActionExecuteTransaction:
		var choice domain.PendingChoice
		if err := req.DecodePayload(&choice); err != nil {
			return nil, err
		}
		if c.executor == nil {
			return nil, fmt.Errorf("bridge: execute: %w", domain.ErrWalletUnavailable)
		}
		res, err := c.executor.ExecuteTransaction(ctx, req.TabID, choice)
		if err != nil {
			return res, err
		}
		return res, nil
	}

	c.logger.Warn("unknown action", slog.String("action", req.Action), slog.String("from", req.From))
	return nil, domain.ErrUnknownAction
}

func (c *Coordinator) setStatus(st domain.WalletStatus) domain.WalletStatus {
	c.mu.Lock()
	c.status = st
	c.mu.Unlock()

	payload, _ := json.Marshal(st)
	n := c.bus.Broadcast(KindContent, Push{Action: PushWalletStatusChanged, Payload: payload})
	c.logger.Info("wallet status changed",
		slog.Bool("connected", st.IsConnected),
		slog.String("address", st.Address),
		slog.Int("tabs", n),
	)
	return st
}

func (c *Coordinator) openPopup(ctx context.Context, reason string) error {
	if c.launcher == nil {
		return fmt.Errorf("bridge: open popup: no launcher")
	}
	if err := c.launcher.OpenPopup(ctx, reason); err != nil {
		return fmt.Errorf("bridge: open popup: %w", err)
	}
	return nil
}
