package remote

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"storj.io/drpc/drpcconn"

	"github.com/wireactor/wireactor/actor"
)

// streamDeliver is the envelope an endpoint writer's mailbox actually
// carries: one outbound application message plus its target/sender,
// queued by remote.Send or the endpoint manager.
type streamDeliver struct {
	target *actor.PID
	sender *actor.PID
	msg    any
}

// endpointWriter owns one outbound drpc stream to a single peer
// address, batching everything addressed there into Envelope frames.
// It is a custom actor.Processer (not the default process) so it can
// drive its own two-queue mailbox instead of actor.Inbox, following
// the teacher's streamWriter in remote/stream_writer.go.
type endpointWriter struct {
	address    string
	engine     *actor.Engine
	pid        *actor.PID
	inbox      *endpointMailbox
	config     Config
	registry   *Registry
	managerPID *actor.PID

	rawconn net.Conn
	conn    *drpcconn.Conn
	client  DRPCRemoteClient
	stream  DRPCRemote_ReceiveStream
	state   endpointState
	metrics *Metrics
}

func newEndpointWriter(e *actor.Engine, address string, config Config, registry *Registry, metrics *Metrics, managerPID *actor.PID) *endpointWriter {
	w := &endpointWriter{
		address:    address,
		engine:     e,
		config:     config,
		registry:   registry,
		metrics:    metrics,
		managerPID: managerPID,
		state:      endpointConnecting,
	}
	w.pid = actor.NewPID(e.Address(), "endpointwriter/"+address)
	w.inbox = newEndpointMailbox(config.BatchSize)
	return w
}

func (w *endpointWriter) PID() *actor.PID { return w.pid }

func (w *endpointWriter) Send(_ *actor.PID, msg any, sender *actor.PID) {
	w.inbox.Send(actor.Envelope{Msg: msg, Sender: sender})
}

func (w *endpointWriter) Shutdown() {
	_ = w.inbox.Stop()
	w.closeConn()
}

// Start kicks off the connect-with-retry loop on its own goroutine so
// the actor registry's synchronous proc.Start() call (Registry.add)
// never blocks on network I/O; the mailbox only starts draining once
// the dial actually succeeds.
func (w *endpointWriter) Start() {
	go w.connectLoop()
}

// connectLoop dials address with the configured retry policy. When the
// initial dial and all MaxRetries retries fail, it broadcasts RemoteUnreachableEvent and
// tears the writer down instead of retrying forever, per spec.md §4.3
// (the teacher's stream_writer.go retries exactly 3 times the same
// way).
func (w *endpointWriter) connectLoop() {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			d := w.config.RetryBackOff(attempt, w.config.RetryTimeSpan)
			slog.Error("remote: dial failed, retrying", "address", w.address, "attempt", attempt, "max", w.config.MaxRetries, "delay", d, "err", lastErr)
			time.Sleep(d)
		}
		if err := w.dial(); err != nil {
			lastErr = err
			continue
		}
		w.state = endpointConnected
		slog.Debug("remote: endpoint connected", "address", w.address)
		w.engine.BroadcastEvent(actor.EndpointConnectedEvent{Address: w.address})
		w.inbox.Start(w)
		return
	}
	slog.Error("remote: endpoint unreachable, giving up", "address", w.address, "attempts", w.config.MaxRetries+1, "err", lastErr)
	w.metrics.DialFailures.Inc()
	w.engine.BroadcastEvent(actor.RemoteUnreachableEvent{ListenAddr: w.address, Err: lastErr})
	w.terminate(lastErr)
}

func (w *endpointWriter) dial() error {
	rawconn, err := net.DialTimeout("tcp", w.address, w.config.RetryTimeSpan)
	if err != nil {
		return err
	}
	if w.config.TLSConfig != nil {
		rawconn = tls.Client(rawconn, w.config.TLSConfig)
	}
	opts := drpcconn.Options{}
	if w.config.BuffSize > 0 {
		opts.Manager.Reader.MaximumBufferSize = w.config.BuffSize
	}
	conn := drpcconn.NewWithOptions(rawconn, opts)
	client := NewDRPCRemoteClient(conn)
	stream, err := client.Receive(context.Background(), w.engine.Address())
	if err != nil {
		_ = conn.Close()
		return err
	}
	w.rawconn = rawconn
	w.conn = conn
	w.client = client
	w.stream = stream
	return nil
}

func (w *endpointWriter) closeConn() {
	if w.conn != nil {
		_ = w.conn.Close()
	}
}

func (w *endpointWriter) terminate(err error) {
	w.state = endpointTerminated
	w.closeConn()
	slog.Debug("remote: endpoint terminated", "address", w.address, "err", err)
	w.engine.BroadcastEvent(actor.EndpointTerminatedEvent{Address: w.address, Err: err})
}

// Invoke builds one Envelope per call from whatever streamDeliver
// messages the mailbox batched together and writes it to the stream.
// A write failure suspends the mailbox and kicks off a reconnect
// rather than tearing the writer down immediately, so a transient
// network blip doesn't dead-letter an entire batch.
func (w *endpointWriter) Invoke(msgs []actor.Envelope) {
	if w.state != endpointConnected || len(msgs) == 0 {
		w.deadLetterAll(msgs)
		return
	}

	env := &Envelope{}
	typeNames := map[string]int32{}
	targetIdx := map[string]int32{}
	senderIdx := map[string]int32{}

	lookupTypeName := func(name string) int32 {
		if idx, ok := typeNames[name]; ok {
			return idx
		}
		idx := int32(len(env.TypeNames))
		env.TypeNames = append(env.TypeNames, name)
		typeNames[name] = idx
		return idx
	}
	lookupPID := func(pid *actor.PID, pool *[]*actor.PID, pids map[string]int32) int32 {
		if pid == nil {
			return -1
		}
		key := pid.String()
		if idx, ok := pids[key]; ok {
			return idx
		}
		idx := int32(len(*pool))
		*pool = append(*pool, pid)
		pids[key] = idx
		return idx
	}

	for _, e := range msgs {
		sd, ok := e.Msg.(streamDeliver)
		if !ok {
			continue
		}
		payload, ok := w.toWire(sd.msg)
		if !ok {
			w.deadLetter(sd.target, sd.msg, sd.sender)
			continue
		}
		data, err := w.registry.Serialize(payload, SerializerIdBinary)
		if err != nil {
			w.deadLetter(sd.target, sd.msg, sd.sender)
			continue
		}
		typeIdx := lookupTypeName(w.registry.GetTypeName(payload, SerializerIdBinary))
		tIdx := lookupPID(sd.target, &env.Targets, targetIdx)
		sIdx := lookupPID(sd.sender, &env.Senders, senderIdx)
		env.Messages = append(env.Messages, &Message{
			Data:          data,
			TypeNameIndex: typeIdx,
			TargetIndex:   tIdx,
			SenderIndex:   sIdx,
			SerializerId:  SerializerIdBinary,
		})
	}

	if len(env.Messages) == 0 {
		return
	}
	if err := w.stream.Send(env); err != nil {
		w.suspendAndReconnect(msgs, err)
		return
	}
	w.metrics.BatchesSent.Inc()
}

// toWire translates the local message types a writer is ever asked to
// deliver (ordinary user messages, plus the actor-kernel Watch/Unwatch)
// into their remote/wire.go counterparts.
func (w *endpointWriter) toWire(msg any) (any, bool) {
	switch m := msg.(type) {
	case actor.Watch:
		return &Watch{Watcher: m.Watcher}, true
	case actor.Unwatch:
		return &Unwatch{Watcher: m.Watcher}, true
	case actor.Terminated:
		return &Terminated{Who: m.Who, AddressTerminated: m.AddressTerminated}, true
	default:
		if _, ok := msg.(VTMarshaler); ok {
			return msg, true
		}
		if _, ok := msg.(Named); ok {
			return msg, true
		}
		return nil, false
	}
}

func (w *endpointWriter) deadLetterAll(msgs []actor.Envelope) {
	for _, e := range msgs {
		if sd, ok := e.Msg.(streamDeliver); ok {
			w.deadLetter(sd.target, sd.msg, sd.sender)
		}
	}
}

func (w *endpointWriter) deadLetter(target *actor.PID, msg any, sender *actor.PID) {
	w.metrics.DeadLetters.Inc()
	w.engine.BroadcastEvent(actor.DeadLetterEvent{Target: target, Message: msg, Sender: sender})
}

// suspendAndReconnect marks the mailbox suspended, re-dials in the
// background, and resumes once reconnected. If retries are exhausted
// the writer terminates and the pending batch is dead-lettered.
func (w *endpointWriter) suspendAndReconnect(pending []actor.Envelope, sendErr error) {
	w.state = endpointSuspended
	slog.Warn("remote: endpoint suspended, reconnecting", "address", w.address, "err", sendErr)
	w.inbox.postSystem(actor.Envelope{Msg: suspendMailbox{}})
	w.closeConn()
	go func() {
		var lastErr error
		for attempt := 1; attempt <= w.config.MaxRetries; attempt++ {
			d := w.config.RetryBackOff(attempt, w.config.RetryTimeSpan)
			time.Sleep(d)
			err := w.dial()
			if err == nil {
				w.state = endpointConnected
				slog.Debug("remote: endpoint reconnected", "address", w.address)
				w.inbox.postSystem(actor.Envelope{Msg: resumeMailbox{}})
				w.Invoke(pending)
				return
			}
			lastErr = err
			slog.Error("remote: reconnect attempt failed", "address", w.address, "attempt", attempt, "max", w.config.MaxRetries, "delay", d, "err", err)
		}
		slog.Error("remote: reconnect exhausted, terminating endpoint", "address", w.address, "err", lastErr)
		w.deadLetterAll(pending)
		w.terminate(lastErr)
	}()
}
