// Package supervisor keeps a transport session alive. When a session closes
// it polls the server's liveness endpoint on a fixed interval, forever, and
// opens a fresh session as soon as the server answers.
package supervisor

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/render"
	"github.com/DoyleJ11/combo-overlay/internal/transport"
)

type State int32

const (
	Connected State = iota
	Probing
)

func (s State) String() string {
	if s == Probing {
		return "probing"
	}
	return "connected"
}

// Prober reports whether the server is reachable again.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HTTPProber issues a GET to URL. Any response at all, whatever its status
// or body, means the server is back.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

type Config struct {
	URL           string
	ProbeURL      string // used when Prober is nil
	RetryInterval time.Duration
	Prober        Prober
	Indicator     render.Indicator
	Transport     transport.Options
	Logger        *zap.Logger
}

type nopIndicator struct{}

func (nopIndicator) ShowDisconnected() {}
func (nopIndicator) HideDisconnected() {}

type Supervisor struct {
	cfg    Config
	log    *zap.Logger
	events chan transport.Event
	state  atomic.Int32

	mu      sync.Mutex
	current *transport.Session
	opened  int
}

func New(cfg Config) *Supervisor {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Prober == nil {
		cfg.Prober = HTTPProber{URL: cfg.ProbeURL}
	}
	if cfg.Indicator == nil {
		cfg.Indicator = nopIndicator{}
	}
	if cfg.Transport.Logger == nil {
		cfg.Transport.Logger = cfg.Logger
	}
	return &Supervisor{
		cfg:    cfg,
		log:    cfg.Logger.Named("supervisor"),
		events: make(chan transport.Event, 64),
	}
}

// Events merges the events of every session the supervisor opens. It is
// closed when Run returns.
func (s *Supervisor) Events() <-chan transport.Event { return s.events }

func (s *Supervisor) State() State { return State(s.state.Load()) }

// Current returns the live session, or nil while probing.
func (s *Supervisor) Current() *transport.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Sessions counts the sessions opened so far.
func (s *Supervisor) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Send encodes and sends through the current session. Without one, or while
// it is not open, the message is dropped.
func (s *Supervisor) Send(event string, data any) {
	env, err := protocol.NewEnvelope(event, data)
	if err != nil {
		s.log.Warn("dropping unencodable message", zap.Error(err))
		return
	}
	sess := s.Current()
	if sess == nil {
		s.log.Debug("dropping send while disconnected", zap.String("event", event))
		return
	}
	sess.Send(env)
}

// Run supervises sessions until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.events)
	for {
		sess := transport.Open(ctx, s.cfg.URL, s.cfg.Transport)
		s.setCurrent(sess)
		err := s.forward(ctx, sess)
		s.setCurrent(nil)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Info("connection lost", zap.Error(err))

		s.state.Store(int32(Probing))
		s.cfg.Indicator.ShowDisconnected()
		if err := s.probe(ctx); err != nil {
			return err
		}
		s.state.Store(int32(Connected))
		s.cfg.Indicator.HideDisconnected()
		s.log.Info("server reachable, reconnecting")
	}
}

func (s *Supervisor) setCurrent(sess *transport.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
	if sess != nil {
		s.opened++
	}
}

// forward relays sess events until the session ends and returns the close
// reason.
func (s *Supervisor) forward(ctx context.Context, sess *transport.Session) error {
	var closeErr error
	for ev := range sess.Events() {
		if ev.Kind == transport.EventClosed {
			closeErr = ev.Err
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			sess.Close()
		}
	}
	return closeErr
}

func (s *Supervisor) probe(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := s.cfg.Prober.Probe(ctx)
		if err == nil {
			return nil
		}
		s.log.Debug("liveness probe failed", zap.Int("attempt", attempt), zap.Error(err))

		t := time.NewTimer(s.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
