// Event provides the immutable event record processed by the interpreter.
//
// Events are value types. Once created they should not be mutated; the
// interpreter copies them into queues and hands copies to actions and guards.
//
// Example:
//
//	evt := NewEvent("order.paid", map[string]any{"amount": 42})
package primitives

import "strings"

// EventType classifies where an event came from.
type EventType int

const (
	// ExternalEvent arrives from outside the chart or from an invocation.
	ExternalEvent EventType = iota
	// InternalEvent is produced by the chart's own actions (raise, send to #_internal).
	InternalEvent
	// PlatformEvent is produced by the interpreter itself (done.*, error.*).
	PlatformEvent
)

func (t EventType) String() string {
	switch t {
	case ExternalEvent:
		return "external"
	case InternalEvent:
		return "internal"
	case PlatformEvent:
		return "platform"
	default:
		return "unknown"
	}
}

// Well-known event names.
const (
	EventErrorExecution     = "error.execution"
	EventErrorCommunication = "error.communication"
	EventErrorPlatform      = "error.platform"

	DoneStatePrefix  = "done.state."
	DoneInvokePrefix = "done.invoke."
)

// Event is a named occurrence with optional origin metadata and an opaque payload.
type Event struct {
	Name       string    `json:"name" yaml:"name"`
	Type       EventType `json:"type" yaml:"type"`
	Origin     string    `json:"origin,omitempty" yaml:"origin,omitempty"`
	OriginType string    `json:"originType,omitempty" yaml:"originType,omitempty"`
	SendID     string    `json:"sendID,omitempty" yaml:"sendID,omitempty"`
	InvokeID   string    `json:"invokeID,omitempty" yaml:"invokeID,omitempty"`
	Data       any       `json:"data,omitempty" yaml:"data,omitempty"`
}

// NewEvent creates an external event.
func NewEvent(name string, data any) Event {
	return Event{
		Name: strings.TrimSpace(name),
		Type: ExternalEvent,
		Data: data,
	}
}

// NewInternalEvent creates an event raised by the chart itself.
func NewInternalEvent(name string, data any) Event {
	return Event{
		Name: strings.TrimSpace(name),
		Type: InternalEvent,
		Data: data,
	}
}

// NewPlatformEvent creates an interpreter-generated event.
func NewPlatformEvent(name string, data any) Event {
	return Event{
		Name: strings.TrimSpace(name),
		Type: PlatformEvent,
		Data: data,
	}
}

// DoneStateEvent is raised when the state with the given id completes.
func DoneStateEvent(stateID string, data any) Event {
	return NewPlatformEvent(DoneStatePrefix+stateID, data)
}

// DoneInvokeEvent is sent to a parent when the invocation with the given id completes.
func DoneInvokeEvent(invokeID string, data any) Event {
	evt := NewEvent(DoneInvokePrefix+invokeID, data)
	evt.InvokeID = invokeID
	return evt
}

// ErrorEvent builds an error.* platform event carrying a detail string.
func ErrorEvent(name, detail string) Event {
	return NewPlatformEvent(name, map[string]any{"detail": detail})
}

// IsError reports whether the event is one of the error.* family.
func (e Event) IsError() bool {
	return e.Name == "error" || strings.HasPrefix(e.Name, "error.")
}

// MatchesDescriptor reports whether an event name matches a single transition
// event descriptor. "*" matches everything; "a.b" matches "a.b" and "a.b.c" but
// not "a.bc"; a trailing ".*" on the descriptor is ignored.
func MatchesDescriptor(descriptor, name string) bool {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" || name == "" {
		return false
	}
	if descriptor == "*" {
		return true
	}
	descriptor = strings.TrimSuffix(descriptor, ".*")
	descriptor = strings.TrimSuffix(descriptor, ".")
	if name == descriptor {
		return true
	}
	return strings.HasPrefix(name, descriptor+".")
}
