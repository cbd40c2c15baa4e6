package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
)

var ErrClosedByPeer = errors.New("connection closed by server")

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventClosed
)

type Event struct {
	Kind    EventKind
	Message protocol.Envelope // EventMessage only
	Err     error             // EventClosed only; why the session ended
}

type Options struct {
	Dial         *websocket.DialOptions
	WriteTimeout time.Duration
	OutboxSize   int
	EventBuffer  int
	ReadLimit    int64
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 16
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Session owns one WebSocket connection. It is single-use: after its
// EventClosed the events channel is closed and a new Session must be opened.
//
// Send never blocks and never reports failure. Frames sent while the session
// is not Open, or while the outbox is full, are dropped.
type Session struct {
	url    string
	opts   Options
	log    *zap.Logger
	state  atomic.Int32
	events chan Event
	outbox chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts dialing url in the background and returns immediately in the
// Connecting state.
func Open(parent context.Context, url string, opts Options) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		url:    url,
		opts:   opts,
		log:    opts.Logger.With(zap.String("url", url)),
		events: make(chan Event, opts.EventBuffer),
		outbox: make(chan []byte, opts.OutboxSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) Events() <-chan Event { return s.events }
func (s *Session) State() State { return State(s.state.Load()) }
func (s *Session) Done() <-chan struct{} { return s.done }

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() { s.cancel() }

func (s *Session) Send(env protocol.Envelope) {
	if s.State() != StateOpen {
		s.log.Debug("dropping send, session not open", zap.String("event", env.Event))
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		s.log.Debug("dropping unencodable message", zap.String("event", env.Event), zap.Error(err))
		return
	}
	select {
	case s.outbox <- frame:
	default:
		s.log.Debug("dropping send, outbox full", zap.String("event", env.Event))
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	conn, _, err := websocket.Dial(s.ctx, s.url, s.opts.Dial)
	if err != nil {
		s.finish(err)
		return
	}
	if s.opts.ReadLimit > 0 {
		conn.SetReadLimit(s.opts.ReadLimit)
	}
	s.state.Store(int32(StateOpen))
	s.emit(Event{Kind: EventOpened})

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(s.ctx)
	writerDone := make(chan struct{})
	go s.writeLoop(writeCtx, conn, writerDone)

	err = s.readLoop(conn)

	s.state.Store(int32(StateClosed))
	writeCancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	s.finish(err)
}

func (s *Session) writeLoop(ctx context.Context, conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.outbox:
			wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				s.log.Debug("write failed", zap.Error(err))
			}
		}
	}
}

func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(s.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return ErrClosedByPeer
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		env, err := protocol.Decode(data)
		if err != nil {
			s.log.Debug("ignoring malformed frame", zap.Error(err))
			continue
		}
		s.emit(Event{Kind: EventMessage, Message: env})
	}
}

func (s *Session) finish(err error) {
	s.state.Store(int32(StateClosed))
	s.log.Debug("session closed", zap.Error(err))
	s.emit(Event{Kind: EventClosed, Err: err})
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
		// Owner is gone; keep the closed notification if there is room.
		if ev.Kind == EventClosed {
			select {
			case s.events <- ev:
			default:
			}
		}
	}
}
