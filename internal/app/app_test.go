package app

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictlive/internal/bridge"
	"github.com/alanyoungcy/predictlive/internal/config"
	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/popup"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticAccounts []string

func (s staticAccounts) RequestAccounts(context.Context) ([]string, error) {
	return s, nil
}

const testAddr = "0x00000000000000000000000000000000000000Aa"

func setupLauncher(t *testing.T, accounts popup.AccountSource) (*popupLauncher, *bridge.Coordinator, *bridge.Bus) {
	t.Helper()
	bus := bridge.NewBus(time.Second, testLogger())
	l := newPopupLauncher(testLogger())
	l.opened = make(chan struct{}, 4)
	bg := bridge.NewCoordinator(bus, l, nil, testLogger())
	t.Cleanup(bg.Stop)

	port, err := bus.Connect(bridge.KindPopup, "")
	require.NoError(t, err)
	p := popup.New(bridge.NewClient(port), accounts, testLogger())
	t.Cleanup(p.Close)
	l.attach(p)
	return l, bg, bus
}

func waitOpened(t *testing.T, l *popupLauncher) {
	t.Helper()
	select {
	case <-l.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("popup never ran")
	}
}

func TestLauncherConnectsWalletAndTakesChoice(t *testing.T) {
	l, bg, bus := setupLauncher(t, staticAccounts{testAddr})

	tab, err := bus.Connect(bridge.KindContent, "tab-1")
	require.NoError(t, err)
	defer tab.Close()
	content := bridge.NewClient(tab)

	choice := domain.PendingChoice{ChallengeID: "c1", OptionID: "o1", OptionCode: 1, Amount: 1}
	require.NoError(t, content.OpenPopupForTransaction(context.Background(), choice))
	waitOpened(t, l)

	st := bg.Status()
	assert.True(t, st.IsConnected)
	assert.True(t, strings.EqualFold(testAddr, st.Address))

	_, ok, err := content.TakePendingChoice(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "the popup consumed the choice")
}

func TestLauncherLeavesConnectedWalletAlone(t *testing.T) {
	l, bg, bus := setupLauncher(t, nil)

	port, err := bus.Connect(bridge.KindPopup, "")
	require.NoError(t, err)
	defer port.Close()
	other := bridge.NewClient(port)
	require.NoError(t, other.SetWalletStatus(context.Background(),
		domain.WalletStatus{IsConnected: true, Address: testAddr}))

	require.NoError(t, l.OpenPopup(context.Background(), bridge.PopupConnect))
	waitOpened(t, l)
	assert.True(t, strings.EqualFold(testAddr, bg.Status().Address))
}

func TestLauncherWithoutAccountsStaysDisconnected(t *testing.T) {
	l, bg, _ := setupLauncher(t, nil)

	require.NoError(t, l.OpenPopup(context.Background(), bridge.PopupConnect))
	waitOpened(t, l)
	assert.False(t, bg.Status().IsConnected)
}

func TestLauncherWithoutPopup(t *testing.T) {
	l := newPopupLauncher(testLogger())
	assert.Error(t, l.OpenPopup(context.Background(), bridge.PopupConnect))
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Stream.Channel = "somechannel"
	return &cfg
}

func TestWireWithoutWallet(t *testing.T) {
	cfg := testConfig()
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.NotEmpty(t, deps.UserID)
	assert.Nil(t, deps.Fallback)
	assert.Nil(t, deps.Provider)
	assert.NotNil(t, deps.Background)
	assert.Equal(t, 1, deps.Bus.Ports(bridge.KindPopup))
	assert.False(t, deps.Background.Status().IsConnected)
}

func TestWireLoadsKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Stream.UserID = "viewer-1"
	cfg.Wallet.PrivateKey = "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "viewer-1", deps.UserID)
	require.NotNil(t, deps.Provider)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), deps.Provider.Address())
}

func TestWireRejectsBadKey(t *testing.T) {
	cfg := testConfig()
	cfg.Wallet.PrivateKey = "not-hex"
	_, _, err := Wire(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestNewCardRegistersProvider(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Wallet.PrivateKey = hex.EncodeToString(crypto.FromECDSA(key))

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, testLogger())
	c, err := a.newCard(deps)
	require.NoError(t, err)
	assert.True(t, deps.PageWorld.HasProvider(c.tabID))
	assert.Equal(t, 1, deps.Bus.Ports(bridge.KindContent))
	assert.Equal(t, "somechannel", c.widget.Snapshot().Channel)
}
