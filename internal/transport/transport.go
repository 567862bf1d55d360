// Package transport defines the narrow interface the engine needs from the
// wireless stack, plus the service identity shared by node, hub and tooling.
package transport

// The advertised service and its single telemetry characteristic. The
// characteristic carries one wire record (Read + Notify, fixed 44 bytes).
const (
	ServiceUUID        = "6b3a0001-b5a3-f393-e0a9-e50e24dcca9e"
	CharacteristicUUID = "6b3a0002-b5a3-f393-e0a9-e50e24dcca9e"
)

// EventKind is a lifecycle signal from the wireless stack.
type EventKind int

const (
	// Connected means a central attached.
	Connected EventKind = iota
	// Disconnected means the central dropped; the engine re-arms advertising.
	Disconnected
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is delivered on the Events channel. Stack callbacks only enqueue;
// all state mutation happens on the engine goroutine.
type Event struct {
	Kind EventKind
}

// Transport is the capability the engine drives. Implementations must never
// block in Notify beyond handing the record to the stack, and must deliver
// events without blocking the stack's callback (drop-and-log if the engine
// is behind).
type Transport interface {
	// Start brings the stack up and registers the telemetry service.
	// A Start failure is fatal to the node.
	Start() error
	// Advertise (re)arms discoverability.
	Advertise() error
	// Notify pushes one complete wire record to the subscribed central.
	// Delivery is best-effort; link-layer retries are the stack's business.
	Notify(record []byte) error
	// Events streams connect/disconnect signals.
	Events() <-chan Event
}
