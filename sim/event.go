package sim

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// An Event is something going to happen in the future.
type Event interface {
	// Return the time that the event should happen
	Time() VTimeInSec

	// Returns the handler that can should handle the event
	Handler() Handler

	// Priority orders same-time events. Lower values run first. Events with
	// the same time and priority run in the order they were scheduled.
	Priority() int
}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	ID       string
	time     VTimeInSec
	handler  Handler
	priority int
}

// NewEventBase creates a new EventBase
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	e := new(EventBase)
	e.ID = GetIDGenerator().Generate()
	e.time = t
	e.handler = handler
	return e
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// Priority returns the same-time ordering key of the event.
func (e EventBase) Priority() int {
	return e.priority
}

// SetPriority changes the same-time ordering key of the event.
func (e *EventBase) SetPriority(p int) {
	e.priority = p
}

// A Handler defines a domain for the events.
//
// One event is always constraint to one Handler, which means the event can
// only be scheduled by one handler and can only directly modify that handler.
type Handler interface {
	Handle(e Event) error
}

// A HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(e Event) error

// Handle calls f(e).
func (f HandlerFunc) Handle(e Event) error {
	return f(e)
}

// CallbackEvent runs a function when it fires. It is how the rest of the
// simulator schedules "call this at time t" without defining a new event
// type for every call site.
type CallbackEvent struct {
	*EventBase

	Name     string
	Callback func()
}

// NewCallbackEvent creates an event that invokes fn at time t.
func NewCallbackEvent(t VTimeInSec, name string, fn func()) *CallbackEvent {
	evt := &CallbackEvent{Name: name, Callback: fn}
	evt.EventBase = NewEventBase(t, callbackHandler{})
	return evt
}

// WithPriority sets the same-time priority and returns the event.
func (e *CallbackEvent) WithPriority(p int) *CallbackEvent {
	e.SetPriority(p)
	return e
}

type callbackHandler struct{}

func (callbackHandler) Handle(e Event) error {
	evt := e.(*CallbackEvent)
	evt.Callback()
	return nil
}
