package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordSender struct {
	mu   sync.Mutex
	got  []Notification
	err  error
	name string
}

func (r *recordSender) Send(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordSender) Name() string { return r.name }

func TestNotifierFiltersRemoteButAlwaysToasts(t *testing.T) {
	toasts := NewToasts(time.Minute, nil)
	s := &recordSender{name: "rec"}
	n := NewNotifier(toasts, []Sender{s}, []string{EventChainFailed}, testLogger())
	ctx := context.Background()

	require.NoError(t, n.Success(ctx, EventPredictionPlaced, "Success!", "placed"))
	require.NoError(t, n.Failure(ctx, EventChainFailed, "Transaction failed", "rejected"))

	assert.Len(t, toasts.Active(), 2)
	require.Len(t, s.got, 1)
	assert.Equal(t, EventChainFailed, s.got[0].Event)
	assert.Equal(t, LevelError, s.got[0].Level)
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	bad := &recordSender{name: "bad", err: errors.New("down")}
	good := &recordSender{name: "good"}
	n := NewNotifier(nil, []Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), Notification{Event: "x", Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.got, 1)
	assert.Equal(t, LevelInfo, good.got[0].Level)
}

func TestToastsExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	toasts := NewToasts(3*time.Second, func() time.Time { return now })

	var seen []uint64
	toasts.OnToast(func(x Toast) { seen = append(seen, x.ID) })

	first := toasts.Push(Notification{Title: "a"})
	now = now.Add(2 * time.Second)
	toasts.Push(Notification{Title: "b"})
	assert.Len(t, toasts.Active(), 2)

	now = now.Add(time.Second)
	active := toasts.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Title)

	toasts.Dismiss(active[0].ID)
	assert.Empty(t, toasts.Active())
	assert.Equal(t, []uint64{first.ID, first.ID + 1}, seen)
}

func TestToastsCapped(t *testing.T) {
	toasts := NewToasts(0, nil)
	for i := 0; i < maxToasts+3; i++ {
		toasts.Push(Notification{Title: "x"})
	}
	assert.Len(t, toasts.Active(), maxToasts)
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), Notification{Level: LevelError, Title: "Failed", Message: "why"})
	require.NoError(t, err)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "why", got.Embeds[0].Description)
	assert.Equal(t, discordColors[LevelError], got.Embeds[0].Color)
}

func TestTelegramSender(t *testing.T) {
	var path string
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.ChatID == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42").WithAPIBase(srv.URL + "/")
	require.NoError(t, s.Send(context.Background(), Notification{Title: "Hi", Message: "there"}))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.True(t, got.DisableNotification)
	assert.Contains(t, got.Text, "*Hi*")

	err := NewTelegramSender("tok", "bad").WithAPIBase(srv.URL).Send(context.Background(), Notification{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}
