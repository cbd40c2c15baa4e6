// Package overlay draws the combo widget in a terminal. Adapter turns render
// calls into bubbletea messages, so it is safe to call from any goroutine.
package overlay

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
	"github.com/DoyleJ11/combo-overlay/internal/render"
)

type materializeMsg struct {
	id   int64
	view render.ComboView
}

type countMsg struct {
	id    int64
	count int
}

type playMsg struct {
	id int64
	t  render.Transition
}

type detachMsg struct{ id int64 }

type indicatorMsg struct{ shown bool }

type tickMsg time.Time

type node int64

// Adapter implements render.Surface and render.Indicator.
type Adapter struct {
	send func(tea.Msg)
	next atomic.Int64
}

func NewAdapter(send func(tea.Msg)) *Adapter {
	return &Adapter{send: send}
}

func (a *Adapter) Materialize(c render.ComboView) render.Node {
	id := a.next.Add(1)
	a.send(materializeMsg{id: id, view: c})
	return node(id)
}

func (a *Adapter) SetCount(n render.Node, count int) {
	a.send(countMsg{id: int64(n.(node)), count: count})
}

func (a *Adapter) Play(n render.Node, t render.Transition) {
	a.send(playMsg{id: int64(n.(node)), t: t})
}

func (a *Adapter) Detach(n render.Node) {
	a.send(detachMsg{id: int64(n.(node))})
}

func (a *Adapter) ShowDisconnected() { a.send(indicatorMsg{shown: true}) }
func (a *Adapter) HideDisconnected() { a.send(indicatorMsg{shown: false}) }

type row struct {
	id        int64
	view      render.ComboView
	anim      render.TransitionName
	animUntil time.Time
}

var (
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	emoteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	bounceStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	shrinkStyle = lipgloss.NewStyle().Faint(true)
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Padding(0, 1)
)

type Model struct {
	rows         []*row
	disconnected bool
	now          func() time.Time
}

func NewModel() Model {
	return Model{now: time.Now}
}

const frame = 50 * time.Millisecond

func tick() tea.Cmd {
	return tea.Tick(frame, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) find(id int64) *row {
	for _, r := range m.rows {
		if r.id == id {
			return r
		}
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case materializeMsg:
		m.rows = append(m.rows, &row{id: msg.id, view: msg.view})

	case countMsg:
		if r := m.find(msg.id); r != nil {
			r.view.Count = msg.count
		}

	case playMsg:
		if r := m.find(msg.id); r != nil {
			r.anim = msg.t.Name
			r.animUntil = m.now().Add(msg.t.Duration)
		}

	case detachMsg:
		kept := m.rows[:0]
		for _, r := range m.rows {
			if r.id != msg.id {
				kept = append(kept, r)
			}
		}
		m.rows = kept

	case indicatorMsg:
		m.disconnected = msg.shown

	case tickMsg:
		now := time.Time(msg)
		for _, r := range m.rows {
			// Shrink holds until the node is detached.
			if r.anim == render.Bounce && now.After(r.animUntil) {
				r.anim = ""
			}
		}
		return m, tick()
	}
	return m, nil
}

func renderParts(parts []protocol.EmotePart) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteString(" ")
		}
		switch p.Type {
		case protocol.PartEmote:
			name := p.Text
			if name == "" {
				name = "emote"
			}
			b.WriteString(emoteStyle.Render(":" + name + ":"))
		default:
			b.WriteString(textStyle.Render(p.Value))
		}
	}
	return b.String()
}

func (m Model) View() string {
	var b strings.Builder
	if m.disconnected {
		b.WriteString(bannerStyle.Render("disconnected, waiting for server"))
		b.WriteString("\n\n")
	}
	for _, r := range m.rows {
		line := renderParts(r.view.Parts) + " " + countStyle.Render(fmt.Sprintf("x%d", r.view.Count))
		switch r.anim {
		case render.Bounce:
			line = bounceStyle.Render(line)
		case render.Shrink:
			line = shrinkStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
