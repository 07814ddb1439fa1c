package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLauncher struct {
	mu      sync.Mutex
	reasons []string
	err     error
}

func (f *fakeLauncher) OpenPopup(_ context.Context, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	return f.err
}

func (f *fakeLauncher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

type fakeExecutor struct {
	mu     sync.Mutex
	tabs   []string
	choice domain.PendingChoice
	res    domain.TxResult
	err    error
}

func (f *fakeExecutor) ExecuteTransaction(_ context.Context, tabID string, choice domain.PendingChoice) (domain.TxResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tabs = append(f.tabs, tabID)
	f.choice = choice
	return f.res, f.err
}

func newTestBridge(t *testing.T) (*Bus, *Coordinator, *fakeLauncher, *fakeExecutor) {
	t.Helper()
	bus := NewBus(time.Second, testLogger())
	l := &fakeLauncher{}
	x := &fakeExecutor{res: domain.TxResult{Success: true, TxHash: "0xabc"}}
	c := NewCoordinator(bus, l, x, testLogger())
	return bus, c, l, x
}

func connect(t *testing.T, bus *Bus, kind, tab string) *Client {
	t.Helper()
	p, err := bus.Connect(kind, tab)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return NewClient(p)
}

func TestWalletStatusRoundTrip(t *testing.T) {
	bus, c, _, _ := newTestBridge(t)
	popup := connect(t, bus, KindPopup, "")
	ctx := context.Background()

	st, err := popup.GetWalletStatus(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsConnected)

	want := domain.WalletStatus{IsConnected: true, Address: "0x1234"}
	require.NoError(t, popup.SetWalletStatus(ctx, want))
	assert.Equal(t, want, c.Status())

	got, err := popup.GetWalletStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetWalletStatusBroadcastsToContentTabs(t *testing.T) {
	bus, _, _, _ := newTestBridge(t)
	popup := connect(t, bus, KindPopup, "")

	got := make(chan domain.WalletStatus, 4)
	for _, tab := range []string{"1", "2"} {
		tc := connect(t, bus, KindContent, tab)
		tc.Port().OnPush(func(p Push) {
			if p.Action != PushWalletStatusChanged {
				return
			}
			var st domain.WalletStatus
			if err := (Response{Data: p.Payload}).Decode(&st); err == nil {
				got <- st
			}
		})
	}
	popupPushed := make(chan struct{}, 1)
	popup.Port().OnPush(func(Push) { popupPushed <- struct{}{} })

	want := domain.WalletStatus{IsConnected: true, Address: "0xfeed"}
	require.NoError(t, popup.SetWalletStatus(context.Background(), want))

	for i := 0; i < 2; i++ {
		select {
		case st := <-got:
			assert.Equal(t, want, st)
		case <-time.After(time.Second):
			t.Fatal("content tab did not receive walletStatusChanged")
		}
	}
	select {
	case <-popupPushed:
		t.Fatal("popup must not receive content broadcasts")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastSkipsClosedTabsAndKeepsLatestStatus(t *testing.T) {
	bus, _, _, _ := newTestBridge(t)
	popup := connect(t, bus, KindPopup, "")

	closed, err := bus.Connect(KindContent, "closed")
	require.NoError(t, err)
	closed.Close()

	var (
		mu   sync.Mutex
		seen []domain.WalletStatus
		once sync.Once
	)
	release := make(chan struct{})
	slow := connect(t, bus, KindContent, "slow")
	slow.Port().OnPush(func(p Push) {
		once.Do(func() { <-release })
		var st domain.WalletStatus
		assert.NoError(t, (Response{Data: p.Payload}).Decode(&st))
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	final := domain.WalletStatus{IsConnected: true, Address: "0xlast"}
	for i := 0; i < pushBuffer+4; i++ {
		st := domain.WalletStatus{IsConnected: i%2 == 0}
		if i == pushBuffer+3 {
			st = final
		}
		done := make(chan error, 1)
		go func() { done <- popup.SetWalletStatus(context.Background(), st) }()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("setWalletStatus blocked on a slow tab")
		}
	}
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == final
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Less(t, len(seen), pushBuffer+4, "stale statuses are coalesced")
	mu.Unlock()
	assert.Zero(t, bus.Dropped())
	assert.Equal(t, 1, bus.Ports(KindContent))
}

func TestBroadcastDropsOtherPushesWhenFull(t *testing.T) {
	bus := NewBus(time.Second, testLogger())
	release := make(chan struct{})
	defer close(release)
	p, err := bus.Connect(KindContent, "1")
	require.NoError(t, err)
	defer p.Close()
	p.OnPush(func(Push) { <-release })

	for i := 0; i < pushBuffer+4; i++ {
		bus.Broadcast(KindContent, Push{Action: "other"})
	}
	assert.Positive(t, bus.Dropped())
}

func TestPendingChoiceIsReadOnce(t *testing.T) {
	bus, _, l, _ := newTestBridge(t)
	content := connect(t, bus, KindContent, "7")
	popup := connect(t, bus, KindPopup, "")
	ctx := context.Background()

	choice := domain.PendingChoice{ChallengeID: "c1", OptionID: "o2", OptionCode: 2, TokenName: "PSG", Amount: 1}
	require.NoError(t, content.OpenPopupForTransaction(ctx, choice))
	assert.Equal(t, []string{PopupTransaction}, l.calls())

	got, ok, err := popup.TakePendingChoice(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, choice, got)

	_, ok, err = popup.TakePendingChoice(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenPopup(t *testing.T) {
	bus, _, l, _ := newTestBridge(t)
	content := connect(t, bus, KindContent, "7")
	require.NoError(t, content.OpenPopup(context.Background()))
	assert.Equal(t, []string{PopupConnect}, l.calls())

	l.err = errors.New("no window")
	err := content.OpenPopup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no window")
}

func TestExecuteTransactionUsesSenderTab(t *testing.T) {
	bus, _, _, x := newTestBridge(t)
	content := connect(t, bus, KindContent, "42")
	choice := domain.PendingChoice{ChallengeID: "c1", OptionID: "o1", OptionCode: 1, Amount: 1}

	res, err := content.ExecuteTransaction(context.Background(), choice)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0xabc", res.TxHash)
	assert.Equal(t, []string{"42"}, x.tabs)
	assert.Equal(t, choice, x.choice)
}

func TestExecuteTransactionFailureKeepsResult(t *testing.T) {
	bus, _, _, x := newTestBridge(t)
	x.res = domain.TxResult{Success: false, Error: "User rejected the request."}
	x.err = errors.New("send_transaction: User rejected the request.")
	content := connect(t, bus, KindContent, "42")

	res, err := content.ExecuteTransaction(context.Background(), domain.PendingChoice{ChallengeID: "c1"})
	require.ErrorIs(t, err, domain.ErrChainInteraction)
	assert.False(t, res.Success)
	assert.Equal(t, "User rejected the request.", res.Error)
}

func TestUnknownAction(t *testing.T) {
	bus, _, _, _ := newTestBridge(t)
	content := connect(t, bus, KindContent, "1")

	resp, err := content.Port().Send(context.Background(), "doSomethingElse", nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown action", resp.Error)
}

func TestHandlerPanicYieldsOneResponse(t *testing.T) {
	bus := NewBus(time.Second, testLogger())
	bus.Serve(func(context.Context, Request) (any, error) { panic("boom") })
	p, err := bus.Connect(KindContent, "1")
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.Send(context.Background(), ActionGetWalletStatus, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "boom")
}

func TestHandlerTimeout(t *testing.T) {
	bus := NewBus(20*time.Millisecond, testLogger())
	release := make(chan struct{})
	defer close(release)
	bus.Serve(func(ctx context.Context, _ Request) (any, error) {
		<-release
		return nil, nil
	})
	p, err := bus.Connect(KindPopup, "")
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.Send(context.Background(), ActionGetWalletStatus, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, context.DeadlineExceeded.Error())
}

func TestBridgeUnreachable(t *testing.T) {
	bus, c, _, _ := newTestBridge(t)
	p, err := bus.Connect(KindContent, "1")
	require.NoError(t, err)

	c.Stop()
	_, err = p.Send(context.Background(), ActionGetWalletStatus, nil)
	require.ErrorIs(t, err, domain.ErrBridge)

	p.Close()
	p.Close()
	_, err = p.Send(context.Background(), ActionGetWalletStatus, nil)
	require.ErrorIs(t, err, domain.ErrBridge)
	assert.Equal(t, 0, bus.Ports(""))
}

func TestConnectRejectsBackgroundKind(t *testing.T) {
	bus := NewBus(0, testLogger())
	_, err := bus.Connect(KindBackground, "")
	require.Error(t, err)
}

func TestMissingPayload(t *testing.T) {
	bus, _, _, _ := newTestBridge(t)
	p := connect(t, bus, KindPopup, "")
	resp, err := p.Port().Send(context.Background(), ActionSetWalletStatus, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "missing payload")
}
