package remote

import (
	"log/slog"

	"github.com/wireactor/wireactor/actor"
	"github.com/wireactor/wireactor/safemap"
)

// endpointManager owns the writer half of every peer address this node
// has ever sent to, spawning one lazily on first use and tearing it
// down once its endpoint terminates (spec.md §4.5). Grounded in the
// teacher's streamRouter (remote/stream_router.go), with the per-address
// writer PIDs kept in a SafeMap.
type endpointManager struct {
	engine   *actor.Engine
	config   Config
	registry *Registry
	metrics  *Metrics
	writers  *safemap.SafeMap[string, *actor.PID]
	pid      *actor.PID
}

func newEndpointManager(e *actor.Engine, config Config, registry *Registry, metrics *Metrics) actor.Producer {
	return func() actor.Receiver {
		return &endpointManager{
			engine:   e,
			config:   config,
			registry: registry,
			metrics:  metrics,
			writers:  safemap.New[string, *actor.PID](),
		}
	}
}

func (m *endpointManager) Receive(c *actor.Context) {
	switch msg := c.Message().(type) {
	case actor.Started:
		m.pid = c.PID()
		c.Engine().Subscribe(c.PID())
	case *streamDeliver:
		m.deliver(msg)
	case actor.EndpointTerminatedEvent:
		slog.Warn("remote: evicting writer after endpoint termination", "address", msg.Address, "err", msg.Err)
		m.evict(msg.Address)
	case actor.RemoteUnreachableEvent:
		slog.Warn("remote: evicting writer after dial exhaustion", "address", msg.ListenAddr, "err", msg.Err)
		m.evict(msg.ListenAddr)
	}
}

func (m *endpointManager) deliver(sd *streamDeliver) {
	_, existed := m.writers.Get(sd.target.Address)
	writerPID := m.writers.GetOrCreate(sd.target.Address, func() *actor.PID {
		slog.Debug("remote: spawning endpoint writer", "address", sd.target.Address)
		w := newEndpointWriter(m.engine, sd.target.Address, m.config, m.registry, m.metrics, m.pid)
		return m.engine.SpawnProc(w)
	})
	if !existed {
		m.metrics.Endpoints.Inc()
	}
	m.engine.SendLocal(writerPID, *sd, nil)
}

func (m *endpointManager) evict(address string) {
	if pid, ok := m.writers.Get(address); ok {
		m.engine.Stop(pid)
		m.engine.Registry.Remove(pid)
		m.metrics.Endpoints.Dec()
	}
	m.writers.Delete(address)
}
