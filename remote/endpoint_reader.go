package remote

import (
	"io"
	"log/slog"

	"github.com/wireactor/wireactor/actor"
)

// endpointReader implements DRPCRemoteServer: it serves every inbound
// stream a peer opens, translating each Envelope batch back into local
// SendLocal calls. Grounded in the teacher's stream_reader.go, adapted
// to this package's hand-authored wire types instead of generated
// protobuf messages.
type endpointReader struct {
	DRPCRemoteUnimplementedServer
	engine     *actor.Engine
	registry   *Registry
	metrics    *Metrics
	watcherPID *actor.PID
}

func newEndpointReader(e *actor.Engine, registry *Registry, metrics *Metrics, watcherPID *actor.PID) *endpointReader {
	return &endpointReader{engine: e, registry: registry, metrics: metrics, watcherPID: watcherPID}
}

// Receive drains one peer's stream until it closes or errors, per
// spec.md §4.4's two-step handshake: (1) the first frame is always the
// Connect envelope, registering the dialing peer's advertised address;
// (2) every frame after that is an Envelope whose messages are
// resolved against its own TypeNames/Targets/Senders pools and handed
// to the engine.
func (r *endpointReader) Receive(stream DRPCRemote_ReceiveStream) error {
	conn, err := stream.RecvConnect()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		slog.Error("remote: failed to read connect handshake", "err", err)
		return err
	}
	slog.Debug("remote: peer connected", "address", conn.Address)
	r.engine.BroadcastEvent(actor.EndpointConnectedEvent{Address: conn.Address})

	for {
		env, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				slog.Debug("remote: peer stream closed", "address", conn.Address)
				return nil
			}
			slog.Error("remote: stream receive failed", "address", conn.Address, "err", err)
			return err
		}
		r.metrics.BatchesReceived.Inc()
		r.deliver(env)
	}
}

func (r *endpointReader) deliver(env *Envelope) {
	for _, msg := range env.Messages {
		if msg.TypeNameIndex < 0 || int(msg.TypeNameIndex) >= len(env.TypeNames) {
			slog.Error("remote: message has out-of-range type index", "index", msg.TypeNameIndex)
			continue
		}
		typeName := env.TypeNames[msg.TypeNameIndex]
		payload, err := r.registry.Deserialize(typeName, msg.Data, msg.SerializerId)
		if err != nil {
			slog.Error("remote: failed to deserialize inbound message", "type", typeName, "err", err)
			continue
		}
		target := pidAt(env.Targets, msg.TargetIndex)
		sender := pidAt(env.Senders, msg.SenderIndex)
		if target == nil {
			slog.Error("remote: inbound message has no target", "type", typeName)
			continue
		}
		if term, ok := payload.(*Terminated); ok && !term.AddressTerminated {
			r.engine.SendLocal(r.watcherPID, relayTerminated{Watcher: target, Who: term.Who}, sender)
			continue
		}
		r.engine.SendLocal(target, r.toLocal(payload), sender)
	}
}

func pidAt(pool []*actor.PID, idx int32) *actor.PID {
	if idx < 0 || int(idx) >= len(pool) {
		return nil
	}
	return pool[idx]
}

// toLocal reverses endpointWriter.toWire, translating the wire control
// messages back into the actor-kernel types process.invokeMsg expects.
func (r *endpointReader) toLocal(payload any) any {
	switch m := payload.(type) {
	case *Watch:
		return actor.Watch{Watcher: m.Watcher}
	case *Unwatch:
		return actor.Unwatch{Watcher: m.Watcher}
	case *Terminated:
		return actor.Terminated{Who: m.Who, AddressTerminated: m.AddressTerminated}
	default:
		return payload
	}
}
