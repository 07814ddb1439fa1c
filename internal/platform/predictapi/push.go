package predictapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Handlers receive push channel callbacks on the channel's own goroutine.
// A callback already in flight may still complete after Close, so consumers
// must tolerate late calls.
type Handlers struct {
	OnOpen  func()
	OnFrame func(event string, data []byte)
	OnError func(error)
}

// Channel is an open push subscription.
type Channel interface {
	Close() error
}

// Transport opens push channels for a stream. Kind is "sse" or "ws".
type Transport struct {
	kind    string
	baseURL string
	logger  *slog.Logger
}

// NewTransport creates a push transport rooted at baseURL (the API root that
// serves /broadcast).
func NewTransport(kind, baseURL string, logger *slog.Logger) *Transport {
	return &Transport{
		kind:    strings.ToLower(kind),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(slog.String("component", "predictapi_push")),
	}
}

// Open starts a push channel for streamID. It returns immediately; the
// handshake outcome is reported through h.
func (t *Transport) Open(ctx context.Context, streamID string, h Handlers) Channel {
	params := url.Values{}
	params.Set("streamId", streamID)
	target := t.baseURL + "/broadcast?" + params.Encode()

	if t.kind == "ws" {
		c := newWSChannel(toWSURL(target), h, t.logger)
		c.start(ctx)
		return c
	}
	c := newSSEChannel(target, h, t.logger)
	c.start(ctx)
	return c
}

func toWSURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// --------------------------------------------------------------------------
// SSE
// --------------------------------------------------------------------------

type sseChannel struct {
	url    string
	h      Handlers
	client *http.Client
	logger *slog.Logger

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newSSEChannel(target string, h Handlers, logger *slog.Logger) *sseChannel {
	return &sseChannel{
		url:    target,
		h:      h,
		client: &http.Client{},
		logger: logger,
	}
}

func (s *sseChannel) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

func (s *sseChannel) run(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		s.fail(ctx, fmt.Errorf("predictapi/sse: create request: %w", err))
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail(ctx, fmt.Errorf("predictapi/sse: connect: %w: %v", domain.ErrConnection, err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.fail(ctx, fmt.Errorf("predictapi/sse: connect: %w: %v", domain.ErrConnection, checkHTTPStatus(resp.StatusCode, body)))
		return
	}

	if s.h.OnOpen != nil {
		s.h.OnOpen()
	}

	dec := SSEDecoder{OnDrop: func(size int) {
		s.logger.Warn("dropped oversized push frame", slog.Int("bytes", size))
	}}
	err = dec.Decode(resp.Body, func(ev Event) error {
		if s.h.OnFrame != nil {
			s.h.OnFrame(ev.Event, []byte(ev.Data))
		}
		return ctx.Err()
	})
	if err == nil {
		err = io.EOF
	}
	s.fail(ctx, fmt.Errorf("predictapi/sse: stream ended: %w: %v", domain.ErrConnection, err))
}

// fail reports err unless the channel was closed locally.
func (s *sseChannel) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	if s.h.OnError != nil {
		s.h.OnError(err)
	}
}

func (s *sseChannel) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// --------------------------------------------------------------------------
// WebSocket
// --------------------------------------------------------------------------

type wsChannel struct {
	url    string
	h      Handlers
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	cancel context.CancelFunc

	// done is closed when the channel is shut down.
	done chan struct{}
}

func newWSChannel(target string, h Handlers, logger *slog.Logger) *wsChannel {
	return &wsChannel{
		url:    target,
		h:      h,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (w *wsChannel) start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-w.done:
		}
	}()
}

func (w *wsChannel) run(ctx context.Context) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		w.fail(ctx, fmt.Errorf("predictapi/ws: connect: %w: %v", domain.ErrConnection, err))
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		_ = conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()

	// Set up pong handler for keep-alive.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if w.h.OnOpen != nil {
		w.h.OnOpen()
	}

	go w.pingLoop(conn)
	w.readLoop(ctx, conn)
}

// readLoop continuously reads messages and forwards them to the frame handler.
func (w *wsChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			w.fail(ctx, fmt.Errorf("predictapi/ws: read: %w: %v", domain.ErrConnection, err))
			return
		}
		if w.h.OnFrame != nil {
			w.h.OnFrame("", message)
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (w *wsChannel) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			w.mu.Unlock()
			if err != nil {
				w.logger.Debug("ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// fail reports err unless the channel was closed locally.
func (w *wsChannel) fail(ctx context.Context, err error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed || ctx.Err() != nil {
		return
	}
	if w.h.OnError != nil {
		w.h.OnError(err)
	}
}

func (w *wsChannel) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	if w.cancel != nil {
		w.cancel()
	}

	if w.conn != nil {
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return w.conn.Close()
	}
	return nil
}
