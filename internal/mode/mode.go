// Package mode maps stable object labels to desk modes and reports changes.
package mode

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode is the externally consumed desk mode.
type Mode string

const (
	Normal Mode = "Normal"
	Study  Mode = "Study"
	Relax  Mode = "Relax"
)

// UnknownLabel is the label recorded before any decision has been made.
const UnknownLabel = "Unknown"

// ForLabel maps a stable object label to its mode.
func ForLabel(label string) Mode {
	switch label {
	case "Pen", "Book":
		return Study
	case "Cup", "Bottle":
		return Relax
	default:
		return Normal
	}
}

// State is the recorded mode and the label that produced it.
type State struct {
	Mode  Mode   `json:"mode"`
	Label string `json:"label"`
}

// String renders the state as "Mode (Label)".
func (s State) String() string {
	return fmt.Sprintf("%s (%s)", s.Mode, s.Label)
}

// Transition describes a change of recorded state.
type Transition struct {
	ID    uuid.UUID `json:"id"`
	From  State     `json:"from"`
	To    State     `json:"to"`
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

// ModeChanged reports whether the mode itself changed, as opposed to only
// the triggering label.
func (t Transition) ModeChanged() bool {
	return t.From.Mode != t.To.Mode
}

// Decider holds the recorded state. It is not safe for concurrent use.
type Decider struct {
	state State
	now   func() time.Time
}

// NewDecider creates a decider in the initial {Normal, Unknown} state.
func NewDecider() *Decider {
	return &Decider{
		state: initialState(),
		now:   time.Now,
	}
}

func initialState() State {
	return State{Mode: Normal, Label: UnknownLabel}
}

// Observe records a stable label. It returns a transition when the mapped
// mode or the label differs from the recorded state, and nil when the
// (mode, label) pair repeats.
func (d *Decider) Observe(label string) *Transition {
	next := State{Mode: ForLabel(label), Label: label}
	if next == d.state {
		return nil
	}

	t := &Transition{
		ID:    uuid.New(),
		From:  d.state,
		To:    next,
		Label: label,
		At:    d.now(),
	}
	d.state = next
	return t
}

// State returns the recorded state.
func (d *Decider) State() State {
	return d.state
}

// Reset returns to the initial state without firing a transition.
func (d *Decider) Reset() {
	d.state = initialState()
}
