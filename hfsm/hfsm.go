// Package hfsm is the hierarchical state machine runtime. States form a
// tree via Parent pointers; events dispatch to the current state and
// propagate to super-states until one handles them. Transition
// primitives exit inner states bottom-up and enter destinations in
// Harel order, so a super-state can install default handling that peer
// states override.
package hfsm

import (
	"errors"

	"github.com/amenzhinsky/azcore/pipeline"
	"github.com/amenzhinsky/azcore/platform"
	"github.com/amenzhinsky/azcore/result"
)

// ErrHandleBySuperstate is returned by a state handler to propagate the
// event to its parent.
var ErrHandleBySuperstate = errors.New("handle by superstate")

// Lifecycle events delivered by the runtime itself. They carry no data.
var (
	EventEntry = pipeline.MakeEventType(result.FacilityCore, 1)
	EventExit  = pipeline.MakeEventType(result.FacilityCore, 2)
)

var (
	entryEvent = pipeline.Event{Type: EventEntry}
	exitEvent  = pipeline.Event{Type: EventExit}
)

// State is a node of the machine's state tree. States are identified by
// pointer; the root's Parent is nil and must handle every event.
type State struct {
	Name   string
	Parent *State
	Handle func(m *Machine, e pipeline.Event) error
}

// Machine is an HFSM that doubles as a pipeline policy: both directions
// dispatch into the state tree.
type Machine struct {
	Policy pipeline.Policy

	current *State
}

// Init stores the root state, wires the policy handlers and
// synchronously delivers ENTRY to the root. After Init returns the
// current state is never nil.
func (m *Machine) Init(root *State, outbound, inbound *pipeline.Policy) error {
	if root == nil || root.Parent != nil {
		return result.ErrInvalidArg
	}
	m.current = root
	m.Policy.OutboundHandler = m.Send
	m.Policy.InboundHandler = m.Send
	m.Policy.LinkOutbound(outbound)
	m.Policy.LinkInbound(inbound)
	return root.Handle(m, entryEvent)
}

// Current returns the machine's current state.
func (m *Machine) Current() *State {
	return m.current
}

// Send dispatches e to the current state, walking to super-states while
// handlers return ErrHandleBySuperstate. A nil parent at that point
// means no top-level handler claims the event: the critical-error hook
// is invoked.
func (m *Machine) Send(e pipeline.Event) error {
	cur := m.current
	err := cur.Handle(m, e)
	for errors.Is(err, ErrHandleBySuperstate) {
		cur = cur.Parent
		if cur == nil {
			platform.CriticalError()
			return result.ErrHFSMInvalidState
		}
		err = cur.Handle(m, e)
	}
	return err
}

// recursiveExit dispatches EXIT to every state between the current one
// and source, bottom-up, leaving current == source.
func (m *Machine) recursiveExit(source *State) error {
	for m.current != source {
		if m.current == nil {
			platform.CriticalError()
			return result.ErrHFSMInvalidState
		}
		if err := m.current.Handle(m, exitEvent); result.Failed(err) {
			return err
		}
		m.current = m.current.Parent
	}
	return nil
}

// TransitionPeer moves from source to a peer state: exit inner states,
// exit source, enter destination.
func (m *Machine) TransitionPeer(source, destination *State) error {
	if err := m.recursiveExit(source); result.Failed(err) {
		return err
	}
	if err := m.current.Handle(m, exitEvent); result.Failed(err) {
		return err
	}
	if err := destination.Handle(m, entryEvent); result.Failed(err) {
		return err
	}
	m.current = destination
	return nil
}

// TransitionSubstate moves from source into one of its children:
// exit inner states, enter destination without exiting source.
func (m *Machine) TransitionSubstate(source, destination *State) error {
	if err := m.recursiveExit(source); result.Failed(err) {
		return err
	}
	if err := destination.Handle(m, entryEvent); result.Failed(err) {
		return err
	}
	m.current = destination
	return nil
}

// TransitionSuperstate moves from source to its parent: exit inner
// states and source itself, without re-entering the destination.
func (m *Machine) TransitionSuperstate(source, destination *State) error {
	if err := m.recursiveExit(source); result.Failed(err) {
		return err
	}
	if err := m.current.Handle(m, exitEvent); result.Failed(err) {
		return err
	}
	m.current = destination
	return nil
}
