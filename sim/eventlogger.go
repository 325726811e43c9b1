package sim

import (
	"reflect"

	"github.com/sirupsen/logrus"
)

// EventLogger is an hook that prints the event information
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which will write in to the logger
func NewEventLogger(logger logrus.FieldLogger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger
	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	entry := h.Logger.WithFields(logrus.Fields{
		"time":  float64(evt.Time()),
		"event": reflect.TypeOf(evt).String(),
	})

	if named, ok := evt.Handler().(Named); ok {
		entry = entry.WithField("handler", named.Name())
	}

	if cb, ok := evt.(*CallbackEvent); ok {
		entry = entry.WithField("callback", cb.Name)
	}

	entry.Debug("event")
}

// A Named object is an object that has a name.
type Named interface {
	Name() string
}
