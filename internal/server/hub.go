package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
)

var errHubStopped = errors.New("hub stopped")

type Msg interface{ isHubMsg() }

type FromClient struct {
	ClientID string
	Env      protocol.Envelope
}

func (FromClient) isHubMsg() {}

type Join struct {
	ClientID string
	Outbox   chan protocol.Envelope // where this client wants to receive events
}

func (Join) isHubMsg() {}

type Leave struct{ ClientID string }

func (Leave) isHubMsg() {}

// ChatLine feeds one chat message to the combo tracker.
type ChatLine struct{ Text string }

func (ChatLine) isHubMsg() {}

// SetConnected records whether the chat source is attached.
type SetConnected struct{ Connected bool }

func (SetConnected) isHubMsg() {}

// Sweep expires combos as of At. The hub's own ticker sends these too.
type Sweep struct{ At time.Time }

func (Sweep) isHubMsg() {}

// DropClients disconnects every client but keeps the hub running.
type DropClients struct{}

func (DropClients) isHubMsg() {}

type Shutdown struct{}

func (Shutdown) isHubMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isHubMsg() {}

type View struct {
	NumClients int
	Connected  bool
	LiveCombos int
	Config     protocol.ConfigDump
}

type HubOptions struct {
	Defaults      map[string]protocol.Value
	Emotes        map[string]string
	SweepInterval time.Duration // zero disables the internal ticker
	Now           func() time.Time
	// OnShutdown runs, on its own goroutine, when a client asks the server
	// to stop.
	OnShutdown func()
	Logger     *zap.Logger
}

// Hub owns the authoritative config and combo state and fans events out to
// every connected client.
type Hub struct {
	inbox     chan Msg
	store     *Store
	tracker   *Tracker
	clients   map[string]chan protocol.Envelope
	connected bool
	opts      HubOptions
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewHub(parent context.Context, opts HubOptions) *Hub {
	if opts.Defaults == nil {
		opts.Defaults = DefaultSettings()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan Msg, 64), // Small buffer
		store:   NewStore(opts.Defaults),
		tracker: NewTracker(opts.Emotes),
		clients: make(map[string]chan protocol.Envelope),
		opts:    opts,
		log:     opts.Logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

// Expose the inbox so tests or the WS layer can send messages.
func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Send delivers m unless the hub has stopped. A message queued just as the
// loop exits is never handled, so callers waiting on a reply should use
// State or watch Done.
func (h *Hub) Send(m Msg) error {
	select {
	case <-h.done:
		return errHubStopped
	default:
	}
	select {
	case <-h.done:
		return errHubStopped
	case h.inbox <- m:
		return nil
	}
}

// State asks the loop for a View. It fails once the hub has stopped instead
// of waiting for a reply that will never come.
func (h *Hub) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := h.Send(GetState{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return View{}, errHubStopped
		}
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (h *Hub) loop() {
	defer close(h.done)

	var tick <-chan time.Time
	if h.opts.SweepInterval > 0 {
		t := time.NewTicker(h.opts.SweepInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case now := <-tick:
			h.broadcastAll(h.tracker.Sweep(now))

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current state immediately
				h.clients[msg.ClientID] = msg.Outbox
				h.sendTo(msg.ClientID, h.dumpEnvelope())
				h.sendTo(msg.ClientID, h.connectEnvelope())
				h.log.Info("client joined", zap.String("client", msg.ClientID), zap.Int("clients", len(h.clients)))

			case Leave:
				delete(h.clients, msg.ClientID)

			case FromClient:
				h.handleClient(msg)

			case ChatLine:
				h.broadcastAll(h.tracker.Read(msg.Text, h.opts.Now(), settingsFrom(h.store)))

			case SetConnected:
				h.connected = msg.Connected
				h.broadcast(h.connectEnvelope())

			case Sweep:
				h.broadcastAll(h.tracker.Sweep(msg.At))

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					NumClients: len(h.clients),
					Connected:  h.connected,
					LiveCombos: h.tracker.Live(),
					Config:     h.store.Dump(),
				}

			case DropClients:
				h.dropClients()

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) handleClient(msg FromClient) {
	log := h.log.With(zap.String("client", msg.ClientID), zap.String("event", msg.Env.Event))
	switch msg.Env.Event {
	case protocol.EvtConfigSet:
		var set protocol.ConfigSet
		if err := json.Unmarshal(msg.Env.Data, &set); err != nil {
			log.Debug("ignoring malformed config_set", zap.Error(err))
			return
		}
		v, err := h.store.Set(set.Key, set.Value)
		if err != nil {
			log.Debug("rejected config_set", zap.Error(err))
			return
		}
		env, err := protocol.NewEnvelope(protocol.EvtConfigChange, protocol.ConfigChange{Key: set.Key, Value: v})
		if err != nil {
			return
		}
		h.broadcast(env)

	case protocol.EvtConfigReset:
		h.store.ResetAll()
		h.broadcast(h.dumpEnvelope())

	case protocol.EvtShutdown:
		log.Info("shutdown requested")
		if h.opts.OnShutdown != nil {
			go h.opts.OnShutdown()
		}

	default:
		log.Debug("ignoring unknown event")
	}
}

func (h *Hub) dumpEnvelope() protocol.Envelope {
	env, _ := protocol.NewEnvelope(protocol.EvtConfig, h.store.Dump())
	return env
}

func (h *Hub) connectEnvelope() protocol.Envelope {
	env, _ := protocol.NewEnvelope(protocol.EvtConnect, protocol.Connect{Connected: h.connected})
	return env
}

func (h *Hub) shutdown() {
	h.dropClients()
	h.cancel()
}

func (h *Hub) dropClients() {
	for id, ch := range h.clients {
		close(ch) // Tell client no more events
		delete(h.clients, id)
	}
}

func (h *Hub) broadcastAll(envs []protocol.Envelope) {
	for _, env := range envs {
		h.broadcast(env)
	}
}

func (h *Hub) broadcast(env protocol.Envelope) {
	for id := range h.clients {
		h.sendTo(id, env)
	}
}

func (h *Hub) sendTo(id string, env protocol.Envelope) {
	ch, ok := h.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- env:
		//ok
	default:
		// Client is slow/full - drop them.
		h.log.Warn("dropping slow client", zap.String("client", id))
		close(ch)
		delete(h.clients, id)
	}
}
