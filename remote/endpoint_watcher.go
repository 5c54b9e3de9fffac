package remote

import (
	"log/slog"

	"golang.org/x/exp/maps"

	"github.com/wireactor/wireactor/actor"
)

// RemoteWatch asks the local endpoint watcher to track watcher's
// interest in watchee (a remote PID) and forward a Watch frame to its
// address, per spec.md §4.6.
type RemoteWatch struct {
	Watcher *actor.PID
	Watchee *actor.PID
}

// RemoteUnwatch reverses a prior RemoteWatch.
type RemoteUnwatch struct {
	Watcher *actor.PID
	Watchee *actor.PID
}

// relayTerminated carries a Terminated frame the endpoint reader
// received from a peer through the watcher before it reaches the
// actual watcher PID, so the pair's bookkeeping clears in the same
// step as delivery instead of racing EndpointTerminatedEvent.
type relayTerminated struct {
	Watcher *actor.PID
	Who     *actor.PID
}

// watchKey identifies one (watcher, watchee) pair so the at-most-one-
// Terminated-per-pair invariant can be enforced with a plain map.
// actor.PID has only comparable string fields, so copying it by value
// into the key (rather than stringifying and reparsing it) is exact
// even when an id itself contains the "/" address/id separator.
type watchKey struct {
	watcher actor.PID
	watchee actor.PID
}

// endpointWatcher is the single per-node remote watch registry: a
// multimap from peer address to every (watcher, watchee) pair a local
// actor has registered against it. When that address's endpoint
// terminates unexpectedly, every pair is resolved to a synthesized
// Terminated{AddressTerminated: true} exactly once, then forgotten.
// There is no teacher equivalent (TAnNbR-Distributed-framework has no
// remote watch/death-notification feature at all); this is grounded in
// the same event-stream subscription idiom the teacher's streamRouter
// uses, generalized with golang.org/x/exp/maps for bulk iteration over
// the per-address pair set (SPEC_FULL.md domain stack).
type endpointWatcher struct {
	engine     *actor.Engine
	managerPID *actor.PID
	metrics    *Metrics
	byAddress  map[string]map[watchKey]struct{}
	terminated map[watchKey]struct{}
}

func newEndpointWatcher(e *actor.Engine, managerPID *actor.PID, metrics *Metrics) actor.Producer {
	return func() actor.Receiver {
		return &endpointWatcher{
			engine:     e,
			managerPID: managerPID,
			metrics:    metrics,
			byAddress:  make(map[string]map[watchKey]struct{}),
			terminated: make(map[watchKey]struct{}),
		}
	}
}

func (w *endpointWatcher) Receive(c *actor.Context) {
	switch msg := c.Message().(type) {
	case actor.Started:
		c.Engine().Subscribe(c.PID())
	case RemoteWatch:
		w.watch(msg.Watcher, msg.Watchee)
	case RemoteUnwatch:
		w.unwatch(msg.Watcher, msg.Watchee)
	case relayTerminated:
		// A natural Terminated arrived from the watchee itself; clear the
		// bookkeeping so a later EndpointTerminatedEvent for the same
		// address doesn't also synthesize one for this pair, then deliver
		// it on to the actual watcher.
		w.forget(msg.Who)
		w.engine.SendWithSender(msg.Watcher, actor.Terminated{Who: msg.Who}, msg.Who)
	case actor.EndpointTerminatedEvent:
		slog.Debug("remote: resolving watch pairs for terminated address", "address", msg.Address, "err", msg.Err)
		w.resolveAddress(msg.Address)
	}
}

// watch records the pair and forwards the raw Watch frame to the
// endpoint manager directly (as a streamDeliver, not via engine.Watch)
// so Remote.Send's Watch/Unwatch interception doesn't loop the request
// straight back to this actor.
func (w *endpointWatcher) watch(watcher, watchee *actor.PID) {
	key := watchKey{watcher: *watcher, watchee: *watchee}
	set, ok := w.byAddress[watchee.Address]
	if !ok {
		set = make(map[watchKey]struct{})
		w.byAddress[watchee.Address] = set
	}
	if _, already := set[key]; !already {
		set[key] = struct{}{}
		delete(w.terminated, key)
		w.metrics.WatchPairs.Inc()
		slog.Debug("remote: registered watch pair", "watcher", watcher, "watchee", watchee)
	}
	w.forward(watchee, watcher, actor.Watch{Watcher: watcher})
}

func (w *endpointWatcher) unwatch(watcher, watchee *actor.PID) {
	key := watchKey{watcher: *watcher, watchee: *watchee}
	if set, ok := w.byAddress[watchee.Address]; ok {
		if _, existed := set[key]; existed {
			delete(set, key)
			w.metrics.WatchPairs.Dec()
			slog.Debug("remote: cleared watch pair", "watcher", watcher, "watchee", watchee)
		}
		if len(set) == 0 {
			delete(w.byAddress, watchee.Address)
		}
	}
	w.forward(watchee, watcher, actor.Unwatch{Watcher: watcher})
}

func (w *endpointWatcher) forward(target, sender *actor.PID, msg any) {
	w.engine.SendLocal(w.managerPID, &streamDeliver{target: target, sender: sender, msg: msg}, sender)
}

// forget drops every pair watching who, regardless of address, so a
// watchee that stops normally never also gets an address-terminated
// Terminated synthesized for it later.
func (w *endpointWatcher) forget(who *actor.PID) {
	set, ok := w.byAddress[who.Address]
	if !ok {
		return
	}
	for key := range set {
		if key.watchee == *who {
			delete(set, key)
			w.metrics.WatchPairs.Dec()
		}
	}
	if len(set) == 0 {
		delete(w.byAddress, who.Address)
	}
}

func (w *endpointWatcher) resolveAddress(address string) {
	set, ok := w.byAddress[address]
	if !ok {
		return
	}
	for key := range maps.Clone(set) {
		if _, already := w.terminated[key]; already {
			continue
		}
		w.terminated[key] = struct{}{}
		w.metrics.WatchPairs.Dec()
		w.notify(key)
	}
	delete(w.byAddress, address)
}

func (w *endpointWatcher) notify(key watchKey) {
	watcher, watchee := key.watcher, key.watchee
	slog.Debug("remote: synthesizing address-terminated", "watcher", &watcher, "watchee", &watchee)
	w.engine.SendWithSender(&watcher, actor.Terminated{Who: &watchee, AddressTerminated: true}, &watchee)
}
