package mirror

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/render"
)

// Sender delivers a message to the server. Delivery is best effort.
type Sender interface {
	Send(event string, data any)
}

// Mirror is the client's believed copy of the server's config map. It is
// owned by the client loop and is not safe for concurrent use.
type Mirror struct {
	state map[string]protocol.Value
	form  render.Form
	out   Sender
	log   *zap.Logger
}

func New(form render.Form, out Sender, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{
		state: make(map[string]protocol.Value),
		form:  form,
		out:   out,
		log:   log.Named("mirror"),
	}
}

// ApplyDump replaces the whole mirror with d and pushes every value into its
// control.
func (m *Mirror) ApplyDump(d protocol.ConfigDump) {
	m.state = make(map[string]protocol.Value, len(d))
	for k, v := range d {
		m.state[k] = v
		m.bind(k, v)
	}
}

// ApplyPatch sets one key. A key already mirrored keeps the kind it was
// dumped with; a value that cannot take that kind is dropped. It reports
// whether the patch was applied.
func (m *Mirror) ApplyPatch(key string, v protocol.Value) bool {
	if prev, ok := m.state[key]; ok {
		v = protocol.Coerce(prev.Kind(), v)
		if v.Kind() != prev.Kind() {
			m.log.Debug("dropping patch of the wrong kind",
				zap.String("key", key), zap.Stringer("want", prev.Kind()), zap.Stringer("got", v.Kind()))
			return false
		}
	}
	m.state[key] = v
	m.bind(key, v)
	return true
}

func (m *Mirror) bind(key string, v protocol.Value) {
	if !m.form.Bind(key, v) {
		m.log.Debug("no control bound for key", zap.String("key", key))
	}
}

// SubmitLocalEdits sends config_set for every control whose value differs
// from the mirror and records the new value immediately, without waiting
// for the server. It returns how many changes were sent.
func (m *Mirror) SubmitLocalEdits() int {
	sent := 0
	for _, key := range slices.Sorted(maps.Keys(m.state)) {
		cur := m.state[key]
		ctl, ok := m.form.Read(key)
		if !ok {
			continue
		}
		text := ctl.Value
		if cur.IsBool() {
			text = protocol.Bool(ctl.Checked).String()
		}
		if text == cur.String() {
			continue
		}
		next, err := protocol.ParseAs(cur.Kind(), text)
		if err != nil {
			m.log.Warn("skipping invalid edit", zap.String("key", key), zap.Error(err))
			continue
		}
		m.out.Send(protocol.EvtConfigSet, protocol.ConfigSet{Key: key, Value: next})
		m.state[key] = next
		sent++
	}
	return sent
}

func (m *Mirror) RequestReset() { m.out.Send(protocol.EvtConfigReset, protocol.Empty{}) }

func (m *Mirror) RequestShutdown() { m.out.Send(protocol.EvtShutdown, protocol.Empty{}) }

func (m *Mirror) Get(key string) (protocol.Value, bool) {
	v, ok := m.state[key]
	return v, ok
}

// Snapshot returns a copy of the mirrored map.
func (m *Mirror) Snapshot() map[string]protocol.Value {
	return maps.Clone(m.state)
}
