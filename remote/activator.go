package remote

import (
	"log/slog"

	"github.com/wireactor/wireactor/actor"
)

// activator answers ActorPidRequest frames by spawning a registered
// kind locally, per spec.md §4.7. There is no teacher equivalent
// (TAnNbR-Distributed-framework has no remote-activation feature); this
// follows the same spawned-actor shape as endpointManager and
// endpointWatcher (without their event-stream subscription), reusing Config.RemoteKinds
// from the SPEC_FULL.md supplemented remote-spawn feature.
type activator struct {
	engine *actor.Engine
	kinds  map[string]KindProducer
	// byName remembers the PID spawned for each name so a second
	// request for the same name returns the existing actor instead of
	// spawning a duplicate (spec.md §4.7 edge case).
	byName map[string]*actor.PID
}

func newActivator(e *actor.Engine, kinds map[string]KindProducer) actor.Producer {
	return func() actor.Receiver {
		return &activator{
			engine: e,
			kinds:  kinds,
			byName: make(map[string]*actor.PID),
		}
	}
}

func (a *activator) Receive(c *actor.Context) {
	switch msg := c.Message().(type) {
	case *ActorPidRequest:
		c.Respond(a.activate(msg))
	}
}

// activate spawns req.Kind under req.Name, generating a fresh name when
// req.Name is empty (spec.md §4.7: "generating one if empty") so two
// anonymous requests never collide with each other in byName.
func (a *activator) activate(req *ActorPidRequest) *ActorPidResponse {
	if req.Name != "" {
		if pid, ok := a.byName[req.Name]; ok {
			slog.Debug("remote: activation name already exists", "name", req.Name, "pid", pid)
			return &ActorPidResponse{Pid: pid, StatusCode: StatusProcessNameAlreadyExist}
		}
	}
	producer, ok := a.kinds[req.Kind]
	if !ok {
		slog.Error("remote: activation requested unknown kind", "kind", req.Kind)
		return &ActorPidResponse{StatusCode: StatusError}
	}

	var pid *actor.PID
	if req.Name != "" {
		pid = a.engine.Spawn(producer, req.Kind, actor.WithID(req.Name))
		a.byName[req.Name] = pid
	} else {
		pid = a.engine.Spawn(producer, req.Kind)
		a.byName[pid.ID] = pid
	}
	slog.Debug("remote: activated actor", "kind", req.Kind, "pid", pid)
	return &ActorPidResponse{Pid: pid, StatusCode: StatusOK}
}
