// Package client runs the single goroutine that owns all client-side state.
// Inbound messages, timer callbacks and user actions are all serialized
// through it, so the mirror and registry never need locks.
package client

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/transport"
)

type Handler func(data json.RawMessage)

// Decode wraps a typed handler. Payloads that fail to decode are dropped.
func Decode[T any](log *zap.Logger, h func(T)) Handler {
	return func(data json.RawMessage) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			log.Debug("ignoring malformed payload", zap.Error(err))
			return
		}
		h(v)
	}
}

// Router picks a handler by event tag.
type Router struct {
	routes map[string]Handler
	log    *zap.Logger
}

func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{routes: make(map[string]Handler), log: log}
}

func (r *Router) Handle(event string, h Handler) { r.routes[event] = h }

func (r *Router) Logger() *zap.Logger { return r.log }

// Dispatch reports whether env had a handler. Unknown events are ignored.
func (r *Router) Dispatch(env protocol.Envelope) bool {
	h, ok := r.routes[env.Event]
	if !ok {
		r.log.Debug("ignoring unknown event", zap.String("event", env.Event))
		return false
	}
	h(env.Data)
	return true
}

type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d, on the owner's goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Client struct {
	events  <-chan transport.Event
	router  *Router
	inbox   chan func()
	done    chan struct{}
	onOpen  []func()
	onClose []func()
	log     *zap.Logger
}

func New(events <-chan transport.Event, router *Router, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		events: events,
		router: router,
		inbox:  make(chan func(), 64), // Small buffer
		done:   make(chan struct{}),
		log:    log.Named("client"),
	}
}

// OnOpen registers f to run on the loop whenever a new session opens.
// Register before Run.
func (c *Client) OnOpen(f func()) { c.onOpen = append(c.onOpen, f) }

// OnClose registers f to run on the loop whenever a session closes.
func (c *Client) OnClose(f func()) { c.onClose = append(c.onClose, f) }

// Post queues f to run on the loop. It is dropped once the loop has exited.
func (c *Client) Post(f func()) {
	select {
	case c.inbox <- f:
	case <-c.done:
	}
}

// AfterFunc implements Scheduler.
func (c *Client) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { c.Post(f) })
}

// Run processes events until ctx ends or the event stream closes.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-c.events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case transport.EventOpened:
				c.log.Info("session opened")
				for _, f := range c.onOpen {
					f()
				}
			case transport.EventMessage:
				c.router.Dispatch(ev.Message)
			case transport.EventClosed:
				for _, f := range c.onClose {
					f()
				}
			}

		case f := <-c.inbox:
			f()
		}
	}
}
