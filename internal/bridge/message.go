// Package bridge connects the isolated contexts of the widget: content tabs,
// the privileged background, and the popup. Contexts share no memory; they
// exchange request/response messages and background pushes.
package bridge

import (
	"encoding/json"
	"fmt"
)

// Context kinds.
const (
	KindContent    = "content"
	KindPopup      = "popup"
	KindBackground = "background"
)

// Actions handled by the background.
const (
	ActionGetWalletStatus             = "getWalletStatus"
	ActionSetWalletStatus             = "setWalletStatus"
	ActionOpenPopup                   = "openPopup"
	ActionOpenPopupForTransaction     = "openPopupForTransaction"
	ActionGetPendingTransactionChoice = "getPendingTransactionChoice"
	ActionExecuteTransaction          = "EXECUTE_METAMASK_TRANSACTION"
)

// PushWalletStatusChanged is broadcast to content contexts after every wallet
// status mutation.
const PushWalletStatusChanged = "walletStatusChanged"

// Request is a message addressed to the background.
type Request struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	From    string          `json:"from"`
	TabID   string          `json:"tabId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the single reply to a Request.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the response data into v. A missing data block leaves v
// untouched.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("bridge: decode response: %w", err)
	}
	return nil
}

// Push is a background-initiated message.
type Push struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodePayload unmarshals the request payload into v.
func (r Request) DecodePayload(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("bridge: %s: missing payload", r.Action)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("bridge: %s: decode payload: %w", r.Action, err)
	}
	return nil
}

func marshalPayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
