package actor

import (
	"sync"
)

// LocalLookupAddr is the address an Engine uses for itself when it has
// no remote transport configured.
const LocalLookupAddr = "local"

// Registry tracks every process currently running on an Engine, keyed by
// PID id.
type Registry struct {
	mu     sync.RWMutex
	lookup map[string]Processer
	engine *Engine
}

// newRegistry creates a new, empty Registry bound to e.
func newRegistry(e *Engine) *Registry {
	return &Registry{
		lookup: make(map[string]Processer, 1024),
		engine: e,
	}
}

// GetPID returns the PID registered under kind/id, or nil if none is.
func (r *Registry) GetPID(kind, id string) *PID {
	proc := r.getByID(kind + pidSeparator + id)
	if proc != nil {
		return proc.PID()
	}
	return nil
}

// Remove unregisters pid.
func (r *Registry) Remove(pid *PID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lookup, pid.ID)
}

// get returns the Processer registered under pid, or nil. Callers must
// treat nil as "route to dead letters", not panic.
func (r *Registry) get(pid *PID) Processer {
	if pid == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if proc, ok := r.lookup[pid.ID]; ok {
		return proc
	}
	return nil
}

// getByID looks a Processer up by its raw id string.
func (r *Registry) getByID(id string) Processer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup[id]
}

// add registers and starts proc, or broadcasts ActorDuplicateIdEvent if
// its id is already taken.
func (r *Registry) add(proc Processer) {
	r.mu.Lock()
	id := proc.PID().ID
	if _, ok := r.lookup[id]; ok {
		r.mu.Unlock()
		r.engine.BroadcastEvent(ActorDuplicateIdEvent{PID: proc.PID()})
		return
	}
	r.lookup[id] = proc
	r.mu.Unlock()
	proc.Start()
}
