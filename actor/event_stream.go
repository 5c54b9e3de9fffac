package actor

import (
	"context"
	"log/slog"
)

// eventSub subscribes a PID to the event stream.
type eventSub struct {
	pid *PID
}

// eventUnsub reverses a prior eventSub.
type eventUnsub struct {
	pid *PID
}

// eventStream is the well-known actor every engine spawns at startup.
// Every event BroadcastEvent sends flows through it: subscription
// bookkeeping messages (eventSub/eventUnsub) are handled directly,
// everything else is optionally logged and forwarded to every
// subscriber.
type eventStream struct {
	subs map[*PID]bool
}

// newEventStream returns the Producer for the event stream actor.
func newEventStream() Producer {
	return func() Receiver {
		return &eventStream{
			subs: make(map[*PID]bool),
		}
	}
}

// Receive handles subscription changes and fans out every other message
// to current subscribers, logging it first if it implements EventLogger.
func (e *eventStream) Receive(c *Context) {
	switch msg := c.Message().(type) {
	case eventSub:
		e.subs[msg.pid] = true
	case eventUnsub:
		delete(e.subs, msg.pid)
	default:
		if logMsg, ok := c.Message().(EventLogger); ok {
			level, msg, attr := logMsg.Log()
			slog.Log(context.Background(), level, msg, attr...)
		}
		for sub := range e.subs {
			c.Forward(sub)
		}
	}
}
