package predictapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

type recorder struct {
	mu     sync.Mutex
	opened int
	frames []string
	errs   []error
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOpen: func() {
			r.mu.Lock()
			r.opened++
			r.mu.Unlock()
		},
		OnFrame: func(event string, data []byte) {
			r.mu.Lock()
			r.frames = append(r.frames, event+"|"+string(data))
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (int, []string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, append([]string(nil), r.frames...), append([]error(nil), r.errs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSSEChannelDeliversFramesThenReportsEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/broadcast", r.URL.Path)
		assert.Equal(t, "s-1", r.URL.Query().Get("streamId"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {}\n\n")
	}))
	defer srv.Close()

	rec := &recorder{}
	ch := NewTransport("sse", srv.URL, discardLogger()).Open(context.Background(), "s-1", rec.handlers())
	defer ch.Close()

	require.Eventually(t, func() bool {
		_, _, errs := rec.snapshot()
		return len(errs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	opened, frames, errs := rec.snapshot()
	assert.Equal(t, 1, opened)
	assert.Equal(t, []string{`|{"type":"connected"}`, "ping|{}"}, frames)
	assert.ErrorIs(t, errs[0], domain.ErrConnection)
}

func TestSSEChannelSurvivesOversizedFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: "+strings.Repeat("x", 600*1024)+"\n\n")
		fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	rec := &recorder{}
	ch := NewTransport("sse", srv.URL, discardLogger()).Open(context.Background(), "s-1", rec.handlers())

	require.Eventually(t, func() bool {
		_, frames, _ := rec.snapshot()
		return len(frames) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ch.Close())

	opened, frames, errs := rec.snapshot()
	assert.Equal(t, 1, opened)
	assert.Equal(t, []string{`|{"type":"connected"}`}, frames)
	assert.Empty(t, errs)
}

func TestSSEChannelHandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &recorder{}
	ch := NewTransport("sse", srv.URL, discardLogger()).Open(context.Background(), "s-1", rec.handlers())
	defer ch.Close()

	require.Eventually(t, func() bool {
		_, _, errs := rec.snapshot()
		return len(errs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	opened, _, _ := rec.snapshot()
	assert.Zero(t, opened)
}

func TestSSEChannelCloseIsSilent(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	rec := &recorder{}
	ch := NewTransport("sse", srv.URL, discardLogger()).Open(context.Background(), "s-1", rec.handlers())

	require.Eventually(t, func() bool {
		opened, _, _ := rec.snapshot()
		return opened == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	time.Sleep(50 * time.Millisecond)

	_, _, errs := rec.snapshot()
	assert.Empty(t, errs)
}

func TestWSChannelDeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"challenge:new","data":{"id":"c-1"}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	rec := &recorder{}
	ch := NewTransport("ws", srv.URL, discardLogger()).Open(context.Background(), "s-1", rec.handlers())

	require.Eventually(t, func() bool {
		_, frames, _ := rec.snapshot()
		return len(frames) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Close())
	opened, frames, errs := rec.snapshot()
	assert.Equal(t, 1, opened)
	assert.Equal(t, `|{"type":"challenge:new","data":{"id":"c-1"}}`, frames[0])
	assert.Empty(t, errs)
}

func TestToWSURL(t *testing.T) {
	assert.Equal(t, "wss://x/api/broadcast", toWSURL("https://x/api/broadcast"))
	assert.Equal(t, "ws://x/b", toWSURL("http://x/b"))
}
