// Package combo keeps the overlay's set of live combos in step with the
// server's combo_create / combo_update / combo_remove events.
//
// Policies for the racy cases:
//   - create for a key that is Active is ignored.
//   - create for a key that is Exiting cancels its removal, detaches the old
//     node at once and installs a brand-new entry.
//   - update for a key that is Exiting is ignored; the entry is still
//     deleted when its grace period ends.
package combo

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/client"
	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/render"
)

const DefaultGrace = 200 * time.Millisecond

type State int

const (
	Active State = iota
	Exiting
)

func (s State) String() string {
	if s == Exiting {
		return "exiting"
	}
	return "active"
}

type Entry struct {
	Text  string
	Count int
	Parts []protocol.EmotePart
	State State

	node    render.Node
	removal client.Timer
}

// Registry is owned by the client loop and is not safe for concurrent use.
// Scheduled removals must run on that same loop.
type Registry struct {
	entries map[string]*Entry
	surface render.Surface
	sched   client.Scheduler
	grace   time.Duration
	log     *zap.Logger
}

func NewRegistry(surface render.Surface, sched client.Scheduler, grace time.Duration, log *zap.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		surface: surface,
		sched:   sched,
		grace:   grace,
		log:     log.Named("combo"),
	}
}

// comboCount is the count-bearing part of combo_create and combo_update,
// with the count's presence visible.
type comboCount struct {
	Text  string               `json:"text"`
	Combo *int                 `json:"combo"`
	Emote []protocol.EmotePart `json:"emote"`
}

// Register binds the combo events to r. Payloads missing text or count are
// ignored.
func (r *Registry) Register(rt *client.Router) {
	log := rt.Logger()
	rt.Handle(protocol.EvtComboCreate, client.Decode(log, func(c comboCount) {
		if c.Text == "" || c.Combo == nil {
			log.Debug("ignoring incomplete combo_create", zap.String("text", c.Text))
			return
		}
		r.Create(c.Text, *c.Combo, c.Emote)
	}))
	rt.Handle(protocol.EvtComboUpdate, client.Decode(log, func(c comboCount) {
		if c.Text == "" || c.Combo == nil {
			log.Debug("ignoring incomplete combo_update", zap.String("text", c.Text))
			return
		}
		r.Update(c.Text, *c.Combo)
	}))
	rt.Handle(protocol.EvtComboRemove, client.Decode(log, func(c protocol.ComboRemove) {
		r.Remove(c.Text)
	}))
}

func (r *Registry) Create(text string, count int, parts []protocol.EmotePart) {
	if text == "" {
		return
	}
	if prev, ok := r.entries[text]; ok {
		if prev.State == Active {
			r.log.Debug("ignoring create for live combo", zap.String("text", text))
			return
		}
		r.purge(prev)
	}
	if len(parts) == 0 {
		parts = []protocol.EmotePart{{Type: protocol.PartText, Value: text}}
	}
	e := &Entry{Text: text, Count: count, Parts: parts, State: Active}
	e.node = r.surface.Materialize(render.ComboView{Text: text, Count: count, Parts: parts})
	r.entries[text] = e
	r.surface.Play(e.node, render.BounceTransition)
}

func (r *Registry) Update(text string, count int) {
	e, ok := r.entries[text]
	if !ok || e.State == Exiting {
		return
	}
	e.Count = count
	r.surface.SetCount(e.node, count)
	r.surface.Play(e.node, render.BounceTransition)
}

// Remove starts the exit animation; the entry is purged after the grace
// period.
func (r *Registry) Remove(text string) {
	e, ok := r.entries[text]
	if !ok || e.State == Exiting {
		return
	}
	e.State = Exiting
	r.surface.Play(e.node, render.ShrinkTransition)
	e.removal = r.sched.AfterFunc(r.grace, func() {
		// The key may have been re-created since; only purge this entry.
		if cur, ok := r.entries[text]; ok && cur == e {
			r.purge(e)
		}
	})
}

// Reset drops every entry. Used when a new session starts, since the server
// never re-sends live combos.
func (r *Registry) Reset() {
	for _, e := range r.entries {
		r.purge(e)
	}
}

func (r *Registry) purge(e *Entry) {
	if e.removal != nil {
		e.removal.Stop()
		e.removal = nil
	}
	r.surface.Detach(e.node)
	delete(r.entries, e.Text)
}

// Lookup returns a copy of the entry for text.
func (r *Registry) Lookup(text string) (Entry, bool) {
	e, ok := r.entries[text]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (r *Registry) Len() int { return len(r.entries) }
