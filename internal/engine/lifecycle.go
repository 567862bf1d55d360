package engine

import "github.com/rushilpunu/cortex/internal/transport"

// State is the connection lifecycle state.
type State int

const (
	// StateIdle is pre-boot: the stack has not come up yet.
	StateIdle State = iota
	// StateAdvertising means discoverable, no central attached.
	StateAdvertising
	// StateConnected means one central is attached; transmission is allowed.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvertising:
		return "advertising"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// lifecycleEvent feeds the transition function.
type lifecycleEvent int

const (
	evStackUp lifecycleEvent = iota
	evConnect
	evDisconnect
)

// Action is the side effect a transition demands. The engine applies it
// synchronously, on its own goroutine, never from stack callback context.
type Action int

const (
	ActionNone Action = iota
	// ActionAdvertise re-arms discoverability.
	ActionAdvertise
)

// transition is the pure state machine. Unexpected events leave the state
// unchanged: a disconnect while advertising, or a connect while idle, is a
// stack quirk to ignore, not a crash.
func transition(s State, ev lifecycleEvent) (State, Action) {
	switch {
	case s == StateIdle && ev == evStackUp:
		return StateAdvertising, ActionAdvertise
	case s == StateAdvertising && ev == evConnect:
		return StateConnected, ActionNone
	case s == StateConnected && ev == evDisconnect:
		return StateAdvertising, ActionAdvertise
	default:
		return s, ActionNone
	}
}

func toLifecycleEvent(ev transport.Event) lifecycleEvent {
	if ev.Kind == transport.Connected {
		return evConnect
	}
	return evDisconnect
}
