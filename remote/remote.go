package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"storj.io/drpc/drpcmanager"
	"storj.io/drpc/drpcmux"
	"storj.io/drpc/drpcserver"
	"storj.io/drpc/drpcwire"

	"github.com/wireactor/wireactor/actor"
)

func init() {
	RegisterType(&actor.PID{})
	RegisterType(&Connect{})
	RegisterType(&Envelope{})
	RegisterType(&Watch{})
	RegisterType(&Unwatch{})
	RegisterType(&Terminated{})
	RegisterType(&ActorPidRequest{})
	RegisterType(&ActorPidResponse{})
}

const (
	stateInvalid uint32 = iota
	stateInitialized
	stateRunning
	stateStopped
)

// Remote is the actor.Remoter implementation wiring a node's actor
// engine to storj.io/drpc: it listens for inbound streams (via
// endpointReader), dispatches outbound traffic to per-address
// endpointWriter actors (via endpointManager), and answers remote spawn
// requests (via activator). Grounded in the teacher's remote/remote.go,
// generalized from a single streamRouter into the writer/watcher/
// activator split spec.md §4 calls for.
type Remote struct {
	addr     string
	config   Config
	registry *Registry
	metrics  *Metrics

	engine         *actor.Engine
	managerPID     *actor.PID
	watcherPID     *actor.PID
	activatorPID   *actor.PID

	ln       net.Listener
	srv      *drpcserver.Server
	stopCh   chan struct{}
	stopWg   sync.WaitGroup
	state    uint32
}

// New returns a Remote that will listen on addr once Start is called.
func New(addr string, config Config) *Remote {
	return &Remote{
		addr:     addr,
		config:   config,
		registry: NewRegistry(),
		metrics:  NewMetrics(prometheus.NewRegistry()),
		stopCh:   make(chan struct{}),
		state:    stateInitialized,
	}
}

// Address reports the address peers should use to reach this node: the
// advertised host/port if configured, otherwise the listen address.
func (r *Remote) Address() string {
	if r.config.AdvertisedHost != "" {
		return fmt.Sprintf("%s:%d", r.config.AdvertisedHost, r.config.AdvertisedPort)
	}
	return r.addr
}

// Start implements actor.Remoter: it binds the listener, registers the
// drpc service, and spawns the endpoint manager/watcher/activator
// actors that carry out every other remote operation.
func (r *Remote) Start(e *actor.Engine) error {
	r.engine = e

	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		slog.Error("remote: failed to bind listener", "address", r.addr, "err", err)
		return fmt.Errorf("remote: listen on %s: %w", r.addr, err)
	}
	r.ln = ln
	slog.Info("remote: listening", "address", r.addr, "advertised", r.Address())

	r.managerPID = e.Spawn(newEndpointManager(e, r.config, r.registry, r.metrics), "endpointmanager", actor.WithID("manager"))
	r.watcherPID = e.Spawn(newEndpointWatcher(e, r.managerPID, r.metrics), "endpointwatcher", actor.WithID("watcher"))
	r.activatorPID = e.Spawn(newActivator(e, r.config.RemoteKinds), "activator", actor.WithID("activator"))

	mux := drpcmux.New()
	reader := newEndpointReader(e, r.registry, r.metrics, r.watcherPID)
	if err := DRPCRegisterRemote(mux, reader); err != nil {
		return fmt.Errorf("remote: register service: %w", err)
	}

	opts := drpcserver.Options{}
	if r.config.BuffSize > 0 {
		opts.Manager = drpcmanager.Options{
			Reader: drpcwire.ReaderOptions{MaximumBufferSize: r.config.BuffSize},
		}
	}
	r.srv = drpcserver.NewWithOptions(mux, opts)

	r.stopWg.Add(1)
	go func() {
		defer r.stopWg.Done()
		if err := r.srv.Serve(context.Background(), ln); err != nil {
			slog.Debug("remote: serve loop exited", "address", r.addr, "err", err)
		}
	}()

	r.state = stateRunning
	return nil
}

// Send implements actor.Remoter. Watch/Unwatch are routed through the
// endpoint watcher so it can track the pair for address-loss detection
// before the frame is forwarded to the peer; everything else goes
// straight to the endpoint manager to be batched out.
func (r *Remote) Send(target *actor.PID, msg any, sender *actor.PID) {
	switch m := msg.(type) {
	case actor.Watch:
		r.engine.SendLocal(r.watcherPID, RemoteWatch{Watcher: m.Watcher, Watchee: target}, sender)
		return
	case actor.Unwatch:
		r.engine.SendLocal(r.watcherPID, RemoteUnwatch{Watcher: m.Watcher, Watchee: target}, sender)
		return
	}
	r.engine.SendLocal(r.managerPID, &streamDeliver{target: target, sender: sender, msg: msg}, sender)
}

// Stop closes the listener and poisons the endpoint manager, watcher
// and activator actors; it does not close the endpoint writers'
// outbound connections. The returned WaitGroup is Done once the accept
// loop has fully exited.
func (r *Remote) Stop() *sync.WaitGroup {
	slog.Info("remote: stopping", "address", r.addr)
	if r.ln != nil {
		_ = r.ln.Close()
	}
	if r.engine != nil {
		<-r.engine.Poison(r.managerPID).Done()
		<-r.engine.Poison(r.watcherPID).Done()
		<-r.engine.Poison(r.activatorPID).Done()
	}
	r.state = stateStopped
	return &r.stopWg
}

// SpawnRemote asks the activator at address to spawn kind under name,
// per spec.md §4.7. A second call for the same name on the same peer
// returns that actor's existing PID instead of erroring.
func SpawnRemote(e *actor.Engine, address, kind, name string, timeout time.Duration) (*actor.PID, error) {
	activatorPID := actor.NewPID(address, "activator/activator")
	resp := e.Request(activatorPID, &ActorPidRequest{Name: name, Kind: kind}, timeout)
	res, err := resp.Result()
	if err != nil {
		slog.Error("remote: spawn request failed", "kind", kind, "name", name, "address", address, "err", err)
		return nil, fmt.Errorf("remote: spawn %s/%s at %s: %w", kind, name, address, err)
	}
	pidResp, ok := res.(*ActorPidResponse)
	if !ok {
		return nil, fmt.Errorf("remote: unexpected activation response %T", res)
	}
	switch pidResp.StatusCode {
	case StatusOK, StatusProcessNameAlreadyExist:
		return pidResp.Pid, nil
	default:
		return nil, fmt.Errorf("remote: activation failed: %s", pidResp.StatusCode)
	}
}
