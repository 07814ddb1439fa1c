package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// Client wraps a port with typed calls.
type Client struct {
	port *Port
}

// NewClient creates a Client over port.
func NewClient(port *Port) *Client {
	return &Client{port: port}
}

// Port returns the underlying port.
func (c *Client) Port() *Port { return c.port }

func (c *Client) call(ctx context.Context, action string, payload, out any) error {
	resp, err := c.port.Send(ctx, action, payload)
	if err != nil {
		return err
	}
	if out != nil {
		if derr := resp.Decode(out); derr != nil && resp.Success {
			return derr
		}
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	return nil
}

// GetWalletStatus reads the background's wallet status.
func (c *Client) GetWalletStatus(ctx context.Context) (domain.WalletStatus, error) {
	var st domain.WalletStatus
	err := c.call(ctx, ActionGetWalletStatus, nil, &st)
	return st, err
}

// SetWalletStatus replaces the background's wallet status.
func (c *Client) SetWalletStatus(ctx context.Context, st domain.WalletStatus) error {
	return c.call(ctx, ActionSetWalletStatus, st, nil)
}

// OpenPopup asks the background to show the popup.
func (c *Client) OpenPopup(ctx context.Context) error {
	return c.call(ctx, ActionOpenPopup, nil, nil)
}

// OpenPopupForTransaction stores choice in the background and shows the popup.
func (c *Client) OpenPopupForTransaction(ctx context.Context, choice domain.PendingChoice) error {
	return c.call(ctx, ActionOpenPopupForTransaction, choice, nil)
}

// TakePendingChoice reads and clears the pending choice.
func (c *Client) TakePendingChoice(ctx context.Context) (domain.PendingChoice, bool, error) {
	resp, err := c.port.Send(ctx, ActionGetPendingTransactionChoice, nil)
	if err != nil {
		return domain.PendingChoice{}, false, err
	}
	if !resp.Success {
		return domain.PendingChoice{}, false, errors.New(resp.Error)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return domain.PendingChoice{}, false, nil
	}
	var choice domain.PendingChoice
	if err := resp.Decode(&choice); err != nil {
		return domain.PendingChoice{}, false, err
	}
	return choice, true, nil
}

// ExecuteTransaction asks the background to run the chain step in this tab's
// page world. The result is returned even when the step failed.
func (c *Client) ExecuteTransaction(ctx context.Context, choice domain.PendingChoice) (domain.TxResult, error) {
	var res domain.TxResult
	resp, err := c.port.Send(ctx, ActionExecuteTransaction, choice)
	if err != nil {
		return res, err
	}
	_ = resp.Decode(&res)
	if !resp.Success {
		if res.Error == "" {
			res.Error = resp.Error
		}
		res.Success = false
		return res, fmt.Errorf("bridge: execute: %w: %s", domain.ErrChainInteraction, resp.Error)
	}
	return res, nil
}
