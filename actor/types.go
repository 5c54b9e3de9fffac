package actor

import "context"

// InternalError is panicked internally to signal a condition that should
// retry the owning actor indefinitely rather than count against its
// restart budget.
type InternalError struct {
	From string
	Err  error
}

// poisonPill stops a process, either immediately or after it drains its
// mailbox.
type poisonPill struct {
	cancel   context.CancelFunc
	graceful bool
}

// Initialized is delivered to a Receiver before Started, once per actor
// lifetime.
type Initialized struct{}

// Started is delivered to a Receiver once it is ready to process
// messages.
type Started struct{}

// Stopped is delivered to a Receiver as the last message it will ever
// see.
type Stopped struct{}

// Watch asks the local kernel to notify Watcher when the actor a Watch
// message is sent to terminates.
type Watch struct {
	Watcher *PID
}

// Unwatch reverses a prior Watch.
type Unwatch struct {
	Watcher *PID
}

// Terminated is delivered to a watcher when a watched actor stops.
// AddressTerminated distinguishes a graceful local/remote stop (false)
// from the loss of the entire node hosting the watchee (true).
type Terminated struct {
	Who               *PID
	AddressTerminated bool
}
