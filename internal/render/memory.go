package render

import (
	"sync"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
)

// Op is one recorded call on a Memory adapter.
type Op struct {
	Kind       string // materialize | count | play | detach | show | hide
	Text       string
	Count      int
	Transition TransitionName
}

type memNode struct {
	id    int
	view  ComboView
	alive bool
}

// Memory implements Surface, Form and Indicator without drawing anything.
// The dashboard command uses it as its form; tests use it to observe effects.
type Memory struct {
	mu           sync.Mutex
	nextID       int
	nodes        []*memNode
	ops          []Op
	controls     map[string]*Control
	description  string
	connectOn    bool
	disconnected bool
}

// NewMemory returns an adapter with one control per key.
func NewMemory(keys ...string) *Memory {
	m := &Memory{
		controls:  make(map[string]*Control),
		connectOn: true,
	}
	for _, k := range keys {
		m.controls[k] = &Control{}
	}
	return m
}

func (m *Memory) record(op Op) { m.ops = append(m.ops, op) }

func (m *Memory) Materialize(c ComboView) Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n := &memNode{id: m.nextID, view: c, alive: true}
	m.nodes = append(m.nodes, n)
	m.record(Op{Kind: "materialize", Text: c.Text, Count: c.Count})
	return n
}

func (m *Memory) SetCount(n Node, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := n.(*memNode)
	mn.view.Count = count
	m.record(Op{Kind: "count", Text: mn.view.Text, Count: count})
}

func (m *Memory) Play(n Node, t Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := n.(*memNode)
	m.record(Op{Kind: "play", Text: mn.view.Text, Transition: t.Name})
}

func (m *Memory) Detach(n Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mn := n.(*memNode)
	mn.alive = false
	m.record(Op{Kind: "detach", Text: mn.view.Text})
}

// Visible returns the combos currently attached, in materialize order.
func (m *Memory) Visible() []ComboView {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ComboView
	for _, n := range m.nodes {
		if n.alive {
			out = append(out, n.view)
		}
	}
	return out
}

func (m *Memory) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.ops...)
}

func (m *Memory) Bind(key string, v protocol.Value) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[key]
	if !ok {
		return false
	}
	if v.IsBool() {
		c.Checked = v.BoolVal()
	} else {
		c.Value = v.String()
	}
	return true
}

func (m *Memory) Read(key string) (Control, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[key]
	if !ok {
		return Control{}, false
	}
	return *c, true
}

func (m *Memory) SetEnabled(key string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[key]
	if !ok {
		return false
	}
	c.Disabled = !enabled
	return true
}

func (m *Memory) SetConnectEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectOn = enabled
}

func (m *Memory) ConnectEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectOn
}

func (m *Memory) ShowDescription(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.description = text
}

func (m *Memory) Description() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.description
}

// Edit simulates the user typing into a text control.
func (m *Memory) Edit(key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[key]
	if !ok || c.Disabled {
		return false
	}
	c.Value = value
	return true
}

// Check simulates the user toggling a checkbox.
func (m *Memory) Check(key string, checked bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[key]
	if !ok || c.Disabled {
		return false
	}
	c.Checked = checked
	return true
}

func (m *Memory) ShowDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
	m.record(Op{Kind: "show", Transition: SlideIn})
}

func (m *Memory) HideDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = false
	m.record(Op{Kind: "hide", Transition: SlideOut})
}

func (m *Memory) Disconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnected
}
