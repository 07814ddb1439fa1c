// Package popup is the user-facing popup context: it connects or disconnects
// the wallet and shows the choice a content tab parked before a wallet was
// available.
package popup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predictlive/internal/bridge"
	"github.com/alanyoungcy/predictlive/internal/domain"
)

// AccountSource hands out the accounts the user allows the widget to use.
type AccountSource interface {
	RequestAccounts(ctx context.Context) ([]string, error)
}

// View is what the popup renders when opened.
type View struct {
	Wallet  domain.WalletStatus   `json:"wallet"`
	Pending *domain.PendingChoice `json:"pending,omitempty"`
}

// Popup drives the popup over its bridge port.
type Popup struct {
	client   *bridge.Client
	accounts AccountSource
	logger   *slog.Logger
}

// New creates a Popup. accounts may be nil, in which case Connect fails with
// domain.ErrWalletUnavailable.
func New(client *bridge.Client, accounts AccountSource, logger *slog.Logger) *Popup {
	return &Popup{
		client:   client,
		accounts: accounts,
		logger:   logger.With(slog.String("component", "popup")),
	}
}

// Open loads the wallet status and consumes the pending choice, if any.
func (p *Popup) Open(ctx context.Context) (View, error) {
	st, err := p.client.GetWalletStatus(ctx)
	if err != nil {
		return View{}, fmt.Errorf("popup: open: %w", err)
	}
	v := View{Wallet: st}

	choice, ok, err := p.client.TakePendingChoice(ctx)
	if err != nil {
		return v, fmt.Errorf("popup: open: %w", err)
	}
	if ok {
		v.Pending = &choice
		p.logger.Info("pending choice",
			slog.String("challenge_id", choice.ChallengeID),
			slog.String("option_id", choice.OptionID),
		)
	}
	return v, nil
}

// Connect asks the account source for an account and publishes it as the
// wallet status.
func (p *Popup) Connect(ctx context.Context) (domain.WalletStatus, error) {
	if p.accounts == nil {
		return domain.WalletStatus{}, fmt.Errorf("popup: connect: %w", domain.ErrWalletUnavailable)
	}
	accts, err := p.accounts.RequestAccounts(ctx)
	if err != nil {
		return domain.WalletStatus{}, fmt.Errorf("popup: connect: %w", err)
	}
	if len(accts) == 0 || !common.IsHexAddress(accts[0]) {
		return domain.WalletStatus{}, fmt.Errorf("popup: connect: %w", errors.New("no account returned"))
	}

	st := domain.WalletStatus{IsConnected: true, Address: common.HexToAddress(accts[0]).Hex()}
	if err := p.client.SetWalletStatus(ctx, st); err != nil {
		return domain.WalletStatus{}, fmt.Errorf("popup: connect: %w", err)
	}
	p.logger.Info("wallet connected", slog.String("address", st.Address))
	return st, nil
}

// Disconnect clears the wallet status for every tab.
func (p *Popup) Disconnect(ctx context.Context) error {
	if err := p.client.SetWalletStatus(ctx, domain.WalletStatus{}); err != nil {
		return fmt.Errorf("popup: disconnect: %w", err)
	}
	p.logger.Info("wallet disconnected")
	return nil
}

// Close detaches the popup from the bridge.
func (p *Popup) Close() {
	p.client.Port().Close()
}
