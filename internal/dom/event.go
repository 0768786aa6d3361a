package dom

import "golang.org/x/net/html"

// Event types delivered to document listeners.
const (
	EventMouseMove = "mousemove"
	EventClick     = "click"
)

// Event is a DOM event dispatched at the document level.
type Event struct {
	Type   string
	Target *html.Node

	defaultPrevented   bool
	propagationStopped bool
}

// NewEvent creates an event of the given type targeting n.
func NewEvent(typ string, target *html.Node) *Event {
	return &Event{Type: typ, Target: target}
}

// PreventDefault suppresses the event's default action.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation stops delivery to listeners registered after the current one.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// PropagationStopped reports whether a listener called StopPropagation.
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// Listener handles a dispatched event.
type Listener func(*Event)

// ListenerID identifies a registered listener for removal.
type ListenerID int

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// AddEventListener registers fn for events of type typ.
func (d *Document) AddEventListener(typ string, fn Listener) ListenerID {
	d.nextID++
	d.listeners[typ] = append(d.listeners[typ], listenerEntry{id: d.nextID, fn: fn})
	return d.nextID
}

// RemoveEventListener unregisters a listener. Unknown ids are ignored.
func (d *Document) RemoveEventListener(typ string, id ListenerID) {
	entries := d.listeners[typ]
	for i, e := range entries {
		if e.id == id {
			d.listeners[typ] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(d.listeners[typ]) == 0 {
		delete(d.listeners, typ)
	}
}

// ListenerCount returns the number of listeners registered for typ.
func (d *Document) ListenerCount(typ string) int {
	return len(d.listeners[typ])
}

// Dispatch delivers ev to the listeners registered for its type, in
// registration order. The listener set is snapshotted first, so listeners may
// add or remove registrations while handling the event.
func (d *Document) Dispatch(ev *Event) {
	entries := append([]listenerEntry(nil), d.listeners[ev.Type]...)
	for _, e := range entries {
		e.fn(ev)
		if ev.propagationStopped {
			return
		}
	}
}
