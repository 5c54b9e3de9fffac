package actor

import (
	"log/slog"
	"time"
)

// EventLogger lets an event opt into being logged by the event stream.
// Any event broadcast that implements it is logged via slog before being
// forwarded to subscribers.
type EventLogger interface {
	Log() (slog.Level, string, []any)
}

// ActorStartedEvent is broadcast once a Receiver has processed its
// Started message and is ready to receive ordinary messages.
type ActorStartedEvent struct {
	PID       *PID
	Timestamp time.Time
}

func (e ActorStartedEvent) Log() (slog.Level, string, []any) {
	return slog.LevelDebug, "actor started", []any{"pid", e.PID}
}

// ActorInitializedEvent is broadcast before Started, once per actor
// lifetime.
type ActorInitializedEvent struct {
	PID       *PID
	Timestamp time.Time
}

func (e ActorInitializedEvent) Log() (slog.Level, string, []any) {
	return slog.LevelDebug, "actor initialized", []any{"pid", e.PID}
}

// ActorStoppedEvent is broadcast whenever a process terminates.
type ActorStoppedEvent struct {
	PID       *PID
	Timestamp time.Time
}

func (e ActorStoppedEvent) Log() (slog.Level, string, []any) {
	return slog.LevelDebug, "actor stopped", []any{"pid", e.PID}
}

// ActorRestartedEvent is broadcast whenever an actor panics and is
// restarted.
type ActorRestartedEvent struct {
	PID        *PID
	Timestamp  time.Time
	Stacktrace []byte
	Reason     any
	Restarts   int32
}

func (e ActorRestartedEvent) Log() (slog.Level, string, []any) {
	return slog.LevelError, "actor crashed and restarted",
		[]any{"pid", e.PID.ID, "stack", string(e.Stacktrace),
			"reason", e.Reason, "restarts", e.Restarts}
}

// ActorMaxRestartsExceededEvent is broadcast when an actor has crashed
// more times than its budget allows and is torn down for good.
type ActorMaxRestartsExceededEvent struct {
	PID       *PID
	Timestamp time.Time
}

func (e ActorMaxRestartsExceededEvent) Log() (slog.Level, string, []any) {
	return slog.LevelError, "actor exceeded max restarts", []any{"pid", e.PID.ID}
}

// ActorDuplicateIdEvent is broadcast when something tries to register a
// second actor under an id that's already taken.
type ActorDuplicateIdEvent struct {
	PID *PID
}

func (e ActorDuplicateIdEvent) Log() (slog.Level, string, []any) {
	return slog.LevelError, "actor id already registered", []any{"pid", e.PID.ID}
}

// EngineRemoteMissingEvent is broadcast when a message is addressed to a
// remote PID but the engine has no remote transport configured.
type EngineRemoteMissingEvent struct {
	Target  *PID
	Sender  *PID
	Message any
}

func (e EngineRemoteMissingEvent) Log() (slog.Level, string, []any) {
	return slog.LevelError, "engine has no remote configured", []any{"target", e.Target.ID}
}

// RemoteUnreachableEvent is broadcast once the endpoint writer for
// ListenAddr has exhausted its dial retries.
type RemoteUnreachableEvent struct {
	ListenAddr string
	Err        error
}

func (e RemoteUnreachableEvent) Log() (slog.Level, string, []any) {
	return slog.LevelWarn, "remote unreachable", []any{"address", e.ListenAddr, "err", e.Err}
}

// EndpointConnectedEvent is broadcast once an endpoint writer completes
// its connect handshake with a peer.
type EndpointConnectedEvent struct {
	Address string
}

func (e EndpointConnectedEvent) Log() (slog.Level, string, []any) {
	return slog.LevelInfo, "endpoint connected", []any{"address", e.Address}
}

// EndpointTerminatedEvent is broadcast when an endpoint writer gives up
// on its peer after its dial or reconnect retries are exhausted; a
// writer shut down on purpose does not broadcast it. The
// endpoint watcher reacts to it by synthesizing Terminated for every
// local actor watching something at Address.
type EndpointTerminatedEvent struct {
	Address string
	Err     error
}

func (e EndpointTerminatedEvent) Log() (slog.Level, string, []any) {
	return slog.LevelWarn, "endpoint terminated", []any{"address", e.Address, "err", e.Err}
}

// DeadLetterEvent is broadcast whenever a message cannot be delivered to
// its target, whether because the target was never registered locally
// or because the remote peer hosting it is unreachable.
type DeadLetterEvent struct {
	Target  *PID
	Message any
	Sender  *PID
}

func (e DeadLetterEvent) Log() (slog.Level, string, []any) {
	return slog.LevelWarn, "dead letter", []any{"target", e.Target, "message", e.Message}
}
