package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// pushBuffer is the number of undelivered pushes a port holds before new ones
// are dropped.
const pushBuffer = 16

// latestOnly pushes carry full state, so a port only needs the newest one.
// They bypass the buffer and are never dropped.
var latestOnly = map[string]bool{
	PushWalletStatusChanged: true,
}

// Handler serves requests in the background context.
type Handler func(ctx context.Context, req Request) (any, error)

// Bus routes requests from content and popup ports to the background
// handler, and pushes from the background to ports.
type Bus struct {
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	handler Handler
	ports   map[string]*Port

	dropped atomic.Uint64
}

// NewBus creates a Bus. timeout bounds every background handler call.
func NewBus(timeout time.Duration, logger *slog.Logger) *Bus {
	if timeout <= 0 {
		timeout = 35 * time.Second
	}
	return &Bus{
		timeout: timeout,
		logger:  logger.With(slog.String("component", "bridge")),
		ports:   make(map[string]*Port),
	}
}

// Serve attaches the background handler. Passing nil tears the background
// down; requests then fail with domain.ErrBridge.
func (b *Bus) Serve(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Connect opens a port for a content tab or the popup.
func (b *Bus) Connect(kind, tabID string) (*Port, error) {
	if kind != KindContent && kind != KindPopup {
		return nil, fmt.Errorf("bridge: connect: unknown context kind %q", kind)
	}
	p := &Port{
		id:     uuid.NewString(),
		kind:   kind,
		tabID:  tabID,
		bus:    b,
		pushes: make(chan Push, pushBuffer),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.ports[p.id] = p
	b.mu.Unlock()

	go p.pump()
	b.logger.Debug("port connected", slog.String("kind", kind), slog.String("tab", tabID))
	return p, nil
}

// Broadcast delivers push to every open port of kind ("" for all kinds) and
// returns the number of ports it reached. Delivery never blocks. A
// latest-only push replaces the port's undelivered one; any other push that a
// full port cannot take is skipped and counted in Dropped.
func (b *Bus) Broadcast(kind string, push Push) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, p := range b.ports {
		if kind != "" && p.kind != kind {
			continue
		}
		if latestOnly[push.Action] {
			p.setLatest(push)
			delivered++
			continue
		}
		select {
		case p.pushes <- push:
			delivered++
		default:
			b.dropped.Add(1)
			b.logger.Debug("push dropped", slog.String("action", push.Action), slog.String("tab", p.tabID))
		}
	}
	return delivered
}

// Ports returns the number of open ports of kind ("" for all).
func (b *Bus) Ports(kind string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, p := range b.ports {
		if kind == "" || p.kind == kind {
			n++
		}
	}
	return n
}

// Dropped is the number of pushes that could not be delivered.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// dispatch produces exactly one response for req, whatever the handler does.
func (b *Bus) dispatch(ctx context.Context, req Request) (Response, error) {
	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h == nil {
		return Response{}, fmt.Errorf("bridge: %s: %w: background not running", req.Action, domain.ErrBridge)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan Response, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("handler panic",
					slog.String("action", req.Action),
					slog.Any("panic", r),
				)
				done <- Response{Success: false, Error: fmt.Sprintf("internal error: %v", r)}
			}
		}()
		data, err := h(ctx, req)
		done <- toResponse(data, err)
	}()

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return Response{Success: false, Error: fmt.Sprintf("%s: %v", req.Action, ctx.Err())}, nil
	}
}

func toResponse(data any, err error) Response {
	raw, merr := marshalPayload(data)
	if merr != nil {
		return Response{Success: false, Error: fmt.Sprintf("encode response: %v", merr)}
	}
	if err != nil {
		return Response{Success: false, Error: err.Error(), Data: raw}
	}
	return Response{Success: true, Data: raw}
}

func (b *Bus) remove(p *Port) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ports[p.id]; !ok {
		return
	}
	delete(b.ports, p.id)
	close(p.pushes)
}

// Port is one context's end of the bus.
type Port struct {
	id    string
	kind  string
	tabID string
	bus   *Bus

	mu       sync.Mutex
	closed   bool
	handlers []func(Push)
	latest   map[string]Push

	pushes chan Push
	wake   chan struct{}
	done   chan struct{}
}

// ID is the port's unique id.
func (p *Port) ID() string { return p.id }

// Kind is the context kind of the port.
func (p *Port) Kind() string { return p.kind }

// TabID is the tab the port belongs to; empty for the popup.
func (p *Port) TabID() string { return p.tabID }

// OnPush registers a push listener. Listeners run on the port's own
// goroutine; a panicking listener is recovered.
func (p *Port) OnPush(fn func(Push)) {
	p.mu.Lock()
	p.handlers = append(p.handlers, fn)
	p.mu.Unlock()
}

// Send issues a request to the background and waits for its response.
func (p *Port) Send(ctx context.Context, action string, payload any) (Response, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return Response{}, fmt.Errorf("bridge: %s: %w: port closed", action, domain.ErrBridge)
	}

	raw, err := marshalPayload(payload)
	if err != nil {
		return Response{}, fmt.Errorf("bridge: %s: encode payload: %w", action, err)
	}
	return p.bus.dispatch(ctx, Request{
		ID:      uuid.NewString(),
		Action:  action,
		From:    p.kind,
		TabID:   p.tabID,
		Payload: raw,
	})
}

// Close detaches the port. Further sends fail with domain.ErrBridge.
func (p *Port) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.bus.remove(p)
}

// setLatest replaces any undelivered push of the same action.
func (p *Port) setLatest(push Push) {
	p.mu.Lock()
	if p.latest == nil {
		p.latest = make(map[string]Push)
	}
	p.latest[push.Action] = push
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Port) pump() {
	defer close(p.done)
	for {
		select {
		case push, ok := <-p.pushes:
			if !ok {
				return
			}
			p.dispatch(push)
		case <-p.wake:
			p.mu.Lock()
			latest := p.latest
			p.latest = nil
			p.mu.Unlock()
			for _, push := range latest {
				p.dispatch(push)
			}
		}
	}
}

func (p *Port) dispatch(push Push) {
	p.mu.Lock()
	handlers := p.handlers
	p.mu.Unlock()
	for _, fn := range handlers {
		p.deliver(fn, push)
	}
}

func (p *Port) deliver(fn func(Push), push Push) {
	defer func() {
		if r := recover(); r != nil {
			p.bus.dropped.Add(1)
			p.bus.logger.Warn("push listener panic",
				slog.String("action", push.Action),
				slog.Any("panic", r),
			)
		}
	}()
	fn(push)
}
