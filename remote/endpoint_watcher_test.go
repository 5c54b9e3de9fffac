package remote

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wireactor/wireactor/actor"
)

func newTestEngine(t *testing.T) *actor.Engine {
	t.Helper()
	e, err := actor.NewEngine(actor.NewEngineConfig())
	require.NoError(t, err)
	return e
}

// forwardCapture stands in for endpointManager: it only records the
// streamDeliver frames it's handed, so watcher tests don't need a real
// drpc connection.
func newForwardCapture(e *actor.Engine) (*actor.PID, <-chan *streamDeliver) {
	out := make(chan *streamDeliver, 16)
	pid := e.SpawnFunc(func(c *actor.Context) {
		if sd, ok := c.Message().(*streamDeliver); ok {
			out <- sd
		}
	}, "manager-stub")
	return pid, out
}

func TestEndpointWatcherForwardsWatchFrame(t *testing.T) {
	e := newTestEngine(t)
	managerPID, captured := newForwardCapture(e)
	metrics := NewMetrics(prometheus.NewRegistry())
	watcherPID := e.Spawn(newEndpointWatcher(e, managerPID, metrics), "endpointwatcher")

	watcher := actor.NewPID(e.Address(), "local-watcher")
	watchee := actor.NewPID("peer:4000", "remote-actor")

	e.Send(watcherPID, RemoteWatch{Watcher: watcher, Watchee: watchee})

	select {
	case sd := <-captured:
		require.True(t, sd.target.Equals(watchee))
		w, ok := sd.msg.(actor.Watch)
		require.True(t, ok)
		require.True(t, w.Watcher.Equals(watcher))
	case <-time.After(time.Second):
		t.Fatal("watcher never forwarded a Watch frame")
	}
}

func TestEndpointWatcherResolvesAddressExactlyOnce(t *testing.T) {
	e := newTestEngine(t)
	managerPID, _ := newForwardCapture(e)
	metrics := NewMetrics(prometheus.NewRegistry())
	watcherPID := e.Spawn(newEndpointWatcher(e, managerPID, metrics), "endpointwatcher")

	terminated := make(chan actor.Terminated, 4)
	watcher := e.SpawnFunc(func(c *actor.Context) {
		if tm, ok := c.Message().(actor.Terminated); ok {
			terminated <- tm
		}
	}, "watcher")
	watchee := actor.NewPID("peer:4000", "remote-actor")

	e.Send(watcherPID, RemoteWatch{Watcher: watcher, Watchee: watchee})
	// give the watch time to register before the address terminates
	time.Sleep(20 * time.Millisecond)

	e.Send(watcherPID, actor.EndpointTerminatedEvent{Address: "peer:4000"})
	e.Send(watcherPID, actor.EndpointTerminatedEvent{Address: "peer:4000"})

	select {
	case tm := <-terminated:
		require.True(t, tm.AddressTerminated)
		require.True(t, tm.Who.Equals(watchee))
	case <-time.After(time.Second):
		t.Fatal("watcher never received Terminated for lost address")
	}

	select {
	case tm := <-terminated:
		t.Fatalf("got a second Terminated for the same pair: %+v", tm)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEndpointWatcherRelayTerminatedClearsBookkeeping(t *testing.T) {
	e := newTestEngine(t)
	managerPID, _ := newForwardCapture(e)
	metrics := NewMetrics(prometheus.NewRegistry())
	w := &endpointWatcher{
		engine:     e,
		managerPID: managerPID,
		metrics:    metrics,
		byAddress:  make(map[string]map[watchKey]struct{}),
		terminated: make(map[watchKey]struct{}),
	}

	watcher := actor.NewPID(e.Address(), "local-watcher")
	watchee := actor.NewPID("peer:4000", "remote-actor")
	w.watch(watcher, watchee)
	require.Len(t, w.byAddress["peer:4000"], 1)

	w.forget(watchee)
	require.Len(t, w.byAddress["peer:4000"], 0)

	// A later address-loss event for the same address now has nothing
	// left to resolve for this pair.
	w.resolveAddress("peer:4000")
	require.Empty(t, w.terminated)
}

func TestEndpointWatcherUnwatchRemovesPair(t *testing.T) {
	e := newTestEngine(t)
	managerPID, captured := newForwardCapture(e)
	metrics := NewMetrics(prometheus.NewRegistry())
	w := &endpointWatcher{
		engine:     e,
		managerPID: managerPID,
		metrics:    metrics,
		byAddress:  make(map[string]map[watchKey]struct{}),
		terminated: make(map[watchKey]struct{}),
	}

	watcher := actor.NewPID(e.Address(), "local-watcher")
	watchee := actor.NewPID("peer:4000", "remote-actor")
	w.watch(watcher, watchee)
	w.unwatch(watcher, watchee)

	require.Empty(t, w.byAddress)

	// both watch and unwatch forward a frame to the manager stub
	<-captured
	<-captured
}
