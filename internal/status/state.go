// Package status tracks the lifecycle of the call session.
package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/types"
)

// State is a call session stage.
type State = types.CallStatus

const (
	Idle      = types.CallIdle
	Calling   = types.CallCalling
	Connected = types.CallConnected
	Ended     = types.CallEnded
)

// validTransitions defines allowed state transitions. A new call may start
// straight from Ended without passing through Idle.
var validTransitions = map[State][]State{
	Idle:      {Calling},
	Calling:   {Connected, Ended},
	Connected: {Ended},
	Ended:     {Idle, Calling},
}

// Machine tracks and enforces call state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	m.bus.Publish(bus.Event{
		Kind:      bus.KindCallStatus,
		Timestamp: m.since,
		Payload: StatusChange{
			From: from,
			To:   to,
		},
	})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
