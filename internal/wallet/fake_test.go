package wallet

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider scripts Provider replies and records calls.
type fakeProvider struct {
	mu        sync.Mutex
	calls     []string
	accounts  []string
	known     map[string]bool
	switchErr error
	addErr    error
	sendErr   error
	sent      []TxRequest
	added     []ChainParams
}

func (f *fakeProvider) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeProvider) RequestAccounts(context.Context) ([]string, error) {
	f.record("accounts")
	return f.accounts, nil
}

func (f *fakeProvider) SwitchChain(_ context.Context, id string) error {
	f.record("switch:" + id)
	if f.switchErr != nil {
		return f.switchErr
	}
	if !f.known[id] {
		return &ProviderError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	}
	return nil
}

func (f *fakeProvider) AddChain(_ context.Context, p ChainParams) error {
	f.record("add:" + p.HexChainID())
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, p)
	if f.known == nil {
		f.known = map[string]bool{}
	}
	f.known[p.HexChainID()] = true
	return nil
}

func (f *fakeProvider) SendTransaction(_ context.Context, tx TxRequest) (string, error) {
	f.record("send")
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, tx)
	return "0xfeed", nil
}
