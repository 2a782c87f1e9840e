package provision

import "fmt"

// State is a pipeline state. States advance strictly in declaration order;
// any non-terminal state may move to StateFailed.
type State int

const (
	StateStart State = iota
	StatePinsResolved
	StateMaterialized
	StateExtracted
	StateOverlaid
	StateDepsInstalled
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStart:         "START",
	StatePinsResolved:  "PINS_RESOLVED",
	StateMaterialized:  "MATERIALIZED",
	StateExtracted:     "EXTRACTED",
	StateOverlaid:      "OVERLAID",
	StateDepsInstalled: "DEPS_INSTALLED",
	StateDone:          "DONE",
	StateFailed:        "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Machine tracks the pipeline state and every state it passed through.
type Machine struct {
	state State
	trail []State
}

// NewMachine returns a machine in StateStart.
func NewMachine() *Machine {
	return &Machine{state: StateStart, trail: []State{StateStart}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Trail returns the states visited so far, oldest first.
func (m *Machine) Trail() []State { return append([]State(nil), m.trail...) }

// Transition moves from one state to another. The caller states the
// expected current state so out-of-order stage execution is caught.
func (m *Machine) Transition(from, to State) error {
	if m.state != from {
		return fmt.Errorf("invalid transition: expected %s, got %s", from, m.state)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	m.state = to
	m.trail = append(m.trail, to)
	return nil
}

// Fail moves any non-terminal state to StateFailed. Failing a terminal
// machine is a no-op.
func (m *Machine) Fail() {
	if !m.state.IsTerminal() {
		m.state = StateFailed
		m.trail = append(m.trail, StateFailed)
	}
}

func isAllowedTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	return to == StateFailed || to == from+1
}
