package resource

import "strconv"

// Handle is the guest-visible number of a host object.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tags what a handle refers to.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindSource
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindSource:
		return "source"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// EventType distinguishes lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnResourceEvent calls f.
func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Closer is optionally implemented by values that hold host resources.
// It runs when the handle is removed or the table is closed.
type Closer interface {
	Close() error
}
