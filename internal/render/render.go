// Package render is the boundary between the sync core and whatever draws it.
// The core only speaks in nodes, field bindings and named transitions.
package render

import (
	"time"

	"github.com/DoyleJ11/combo-overlay/internal/protocol"
)

type TransitionName string

const (
	Bounce   TransitionName = "bounce"
	Shrink   TransitionName = "shrink"
	SlideIn  TransitionName = "slide-in"
	SlideOut TransitionName = "slide-out"
)

type Transition struct {
	Name     TransitionName
	Duration time.Duration
	Easing   string
}

var (
	BounceTransition   = Transition{Name: Bounce, Duration: 200 * time.Millisecond, Easing: "ease"}
	ShrinkTransition   = Transition{Name: Shrink, Duration: 200 * time.Millisecond, Easing: "ease-in"}
	SlideInTransition  = Transition{Name: SlideIn, Duration: 400 * time.Millisecond, Easing: "ease"}
	SlideOutTransition = Transition{Name: SlideOut, Duration: 400 * time.Millisecond, Easing: "ease"}
)

// Node is an opaque handle to something materialized on a Surface.
type Node interface{}

// ComboView is what a surface needs to draw a combo.
type ComboView struct {
	Text  string
	Count int
	Parts []protocol.EmotePart
}

// Surface draws combo entries.
type Surface interface {
	Materialize(c ComboView) Node
	SetCount(n Node, count int)
	Play(n Node, t Transition)
	Detach(n Node)
}

// Control is the current state of one form field.
type Control struct {
	Value    string
	Checked  bool
	Disabled bool
}

// Form holds the dashboard's bound controls, one per config key. Methods
// return false when no control exists for key.
type Form interface {
	Bind(key string, v protocol.Value) bool
	Read(key string) (Control, bool)
	SetEnabled(key string, enabled bool) bool
	SetConnectEnabled(enabled bool)
	ShowDescription(text string)
}

// Indicator is the "disconnected" banner. Implementations must tolerate
// calls from a goroutine other than the client loop.
type Indicator interface {
	ShowDisconnected()
	HideDisconnected()
}
