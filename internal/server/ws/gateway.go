// Package ws relays the cross-context bridge over WebSocket so an
// out-of-process front-end can act as a popup or a content tab.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/predictlive/internal/bridge"
	"github.com/alanyoungcy/predictlive/internal/server/middleware"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1 << 16

	sendBufferSize = 64
)

// Frame types sent to clients.
const (
	FrameHello    = "hello"
	FrameResponse = "response"
	FramePush     = "push"
)

// requestFrame is what a client sends: one bridge request.
type requestFrame struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type helloFrame struct {
	Type   string `json:"type"`
	Kind   string `json:"kind"`
	TabID  string `json:"tabId,omitempty"`
	PortID string `json:"portId"`
}

type responseFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	bridge.Response
}

type pushFrame struct {
	Type string `json:"type"`
	bridge.Push
}

// Gateway manages WebSocket clients, each backed by its own bridge port.
type Gateway struct {
	bus      *bridge.Bus
	upgrader websocket.Upgrader
	logger   *slog.Logger

	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewGateway creates a gateway over bus. Handshakes from origins outside
// allowedOrigins are refused; an empty list allows all.
func NewGateway(bus *bridge.Bus, allowedOrigins []string, logger *slog.Logger) *Gateway {
	g := &Gateway{
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws_gateway")),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
		},
	}
	return g
}

// Run handles client registration until ctx is cancelled, then closes every
// client.
func (g *Gateway) Run(ctx context.Context) error {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			g.mu.Lock()
			for c := range g.clients {
				c.close()
				delete(g.clients, c)
			}
			g.mu.Unlock()
			return ctx.Err()

		case c := <-g.register:
			g.mu.Lock()
			g.clients[c] = true
			g.mu.Unlock()
			g.logger.Info("client connected",
				slog.String("kind", c.port.Kind()),
				slog.Int("total_clients", g.ClientCount()),
			)

		case c := <-g.unregister:
			g.mu.Lock()
			if _, ok := g.clients[c]; ok {
				delete(g.clients, c)
				c.close()
			}
			g.mu.Unlock()
			g.logger.Info("client disconnected",
				slog.Int("total_clients", g.ClientCount()),
			)
		}
	}
}

// ClientCount returns the number of connected clients.
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// HandleWS upgrades the request and opens a bridge port for it. The query
// selects the context: ?kind=popup (default) or ?kind=content&tab=<id>.
// GET /ws
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = bridge.KindPopup
	}
	tab := r.URL.Query().Get("tab")
	if kind == bridge.KindContent && tab == "" {
		tab = uuid.NewString()
	}

	port, err := g.bus.Connect(kind, tab)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		port.Close()
		g.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		gw:     g,
		conn:   conn,
		port:   port,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	c.enqueue(helloFrame{Type: FrameHello, Kind: kind, TabID: tab, PortID: port.ID()})
	port.OnPush(func(p bridge.Push) {
		c.enqueue(pushFrame{Type: FramePush, Push: p})
	})

	select {
	case g.register <- c:
	case <-g.done:
		c.close()
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// client is one WebSocket connection.
type client struct {
	gw     *Gateway
	conn   *websocket.Conn
	port   *bridge.Port
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// enqueue drops the frame if the client is slow or gone.
func (c *client) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.gw.logger.Warn("dropping frame for slow client", slog.String("port", c.port.ID()))
	}
}

// close releases the port and ends the write pump. Safe to call twice.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	c.cancel()
	c.port.Close()
}

// readPump turns every text frame into a bridge request. Requests run
// concurrently; each gets exactly one response frame.
func (c *client) readPump() {
	defer func() {
		select {
		case c.gw.unregister <- c:
		case <-c.gw.done:
			c.close()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.logger.Warn("unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var req requestFrame
		if err := json.Unmarshal(message, &req); err != nil || req.Action == "" {
			c.enqueue(responseFrame{Type: FrameResponse, ID: req.ID, Response: bridge.Response{Error: "malformed request"}})
			continue
		}
		go c.serve(req)
	}
}

func (c *client) serve(req requestFrame) {
	resp, err := c.port.Send(c.ctx, req.Action, req.Payload)
	if err != nil {
		resp = bridge.Response{Success: false, Error: err.Error()}
	}
	c.enqueue(responseFrame{Type: FrameResponse, ID: req.ID, Response: resp})
}

// writePump sends queued frames and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
