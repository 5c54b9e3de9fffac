package actor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// Remoter abstracts the transport bound to an engine so the engine never
// needs to know whether a peer is reached over drpc, a test stub, or
// anything else.
type Remoter interface {
	Address() string
	Send(*PID, any, *PID)
	Start(*Engine) error
	Stop() *sync.WaitGroup
}

// Producer manufactures a fresh Receiver. Engine.Spawn calls it once per
// actor instance (and again on every restart), which keeps actor state
// confined to the Receiver value it returns.
type Producer func() Receiver

// Receiver processes one message per call.
type Receiver interface {
	Receive(*Context)
}

// Engine is the root of an actor system: it owns the process registry,
// the optional remote transport, and the event stream every actor can
// subscribe to.
type Engine struct {
	Registry    *Registry
	address     string
	remote      Remoter
	eventStream *PID
}

// EngineConfig configures a new Engine.
type EngineConfig struct {
	remote Remoter
}

// NewEngineConfig returns a new, empty EngineConfig.
func NewEngineConfig() EngineConfig {
	return EngineConfig{}
}

// WithRemote attaches a Remoter, giving the engine a network address and
// the ability to exchange messages with other nodes.
func (config EngineConfig) WithRemote(remote Remoter) EngineConfig {
	config.remote = remote
	return config
}

// NewEngine constructs an Engine from config, starting its remote
// transport (if any) and its event stream actor.
func NewEngine(config EngineConfig) (*Engine, error) {
	e := &Engine{}
	e.Registry = newRegistry(e)
	e.address = LocalLookupAddr
	if config.remote != nil {
		e.remote = config.remote
		e.address = config.remote.Address()
		err := config.remote.Start(e)
		if err != nil {
			return nil, fmt.Errorf("actor: start remote: %w", err)
		}
	}
	e.eventStream = e.Spawn(newEventStream(), "eventstream")
	return e, nil
}

// Spawn creates a process for the actor p produces, applying opts, and
// returns its PID.
func (e *Engine) Spawn(p Producer, kind string, opts ...OptFunc) *PID {
	options := DefaultOpts(p)
	options.Kind = kind
	for _, opt := range opts {
		opt(&options)
	}
	if len(options.ID) == 0 {
		id := strconv.Itoa(rand.Intn(math.MaxInt))
		options.ID = id
	}
	proc := newProcess(e, options)
	return e.SpawnProc(proc)
}

// SpawnFunc spawns a stateless actor backed directly by f.
func (e *Engine) SpawnFunc(f func(*Context), kind string, opts ...OptFunc) *PID {
	return e.Spawn(newFuncReceiver(f), kind, opts...)
}

// SpawnProc registers a custom Processer directly, for callers that need
// something other than the default process (see remote.endpointWriter).
func (e *Engine) SpawnProc(p Processer) *PID {
	e.Registry.add(p)
	return p.PID()
}

// Address returns "local" when no remote transport is configured,
// otherwise the transport's advertised listen address.
func (e *Engine) Address() string {
	return e.address
}

// Request sends msg to pid and returns a Response that resolves once
// pid replies or timeout elapses.
func (e *Engine) Request(pid *PID, msg any, timeout time.Duration) *Response {
	resp := NewResponse(e, timeout)
	e.Registry.add(resp)

	e.SendWithSender(pid, msg, resp.PID())

	return resp
}

// SendWithSender sends msg to pid, attaching sender so pid's Receiver can
// call Context.Sender() or Context.Respond().
func (e *Engine) SendWithSender(pid *PID, msg any, sender *PID) {
	e.send(pid, msg, sender)
}

// Send sends msg to pid without a sender.
func (e *Engine) Send(pid *PID, msg any) {
	e.send(pid, msg, nil)
}

// BroadcastEvent publishes msg on the event stream for every subscriber
// to observe.
func (e *Engine) BroadcastEvent(msg any) {
	if e.eventStream != nil {
		e.send(e.eventStream, msg, nil)
	}
}

func (e *Engine) send(pid *PID, msg any, sender *PID) {
	if pid == nil {
		return
	}
	if e.isLocalMessage(pid) {
		e.SendLocal(pid, msg, sender)
		return
	}
	if e.remote == nil {
		e.BroadcastEvent(EngineRemoteMissingEvent{Target: pid, Sender: sender, Message: msg})
		return
	}
	e.remote.Send(pid, msg, sender)
}

// Watch registers watcher to be notified with Terminated when the actor
// at pid stops. pid may be local or remote; remote watches are routed
// through the endpoint watcher on the way out.
func (e *Engine) Watch(pid, watcher *PID) {
	e.send(pid, Watch{Watcher: watcher}, watcher)
}

// Unwatch reverses a prior Watch.
func (e *Engine) Unwatch(pid, watcher *PID) {
	e.send(pid, Unwatch{Watcher: watcher}, watcher)
}

// SendRepeater sends a message to a fixed target at a fixed interval
// until Stop is called.
type SendRepeater struct {
	engine   *Engine
	self     *PID
	target   *PID
	msg      any
	interval time.Duration
	cancelch chan struct{}
}

func (sr SendRepeater) start() {
	ticker := time.NewTicker(sr.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				sr.engine.SendWithSender(sr.target, sr.msg, sr.self)
			case <-sr.cancelch:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the repeated sends.
func (sr SendRepeater) Stop() {
	close(sr.cancelch)
}

// SendRepeat sends msg to pid every interval until the returned
// SendRepeater is stopped.
func (e *Engine) SendRepeat(pid *PID, msg any, interval time.Duration) SendRepeater {
	clonedPID := *pid.Clone()
	sr := SendRepeater{
		engine:   e,
		self:     nil,
		target:   &clonedPID,
		interval: interval,
		msg:      msg,
		cancelch: make(chan struct{}, 1),
	}
	sr.start()
	return sr
}

// Stop sends a non-graceful poison pill to pid: the process is torn down
// immediately, discarding whatever is left in its mailbox. The returned
// context is Done once the process has finished cleaning up.
func (e *Engine) Stop(pid *PID) context.Context {
	return e.sendPoisonPill(context.Background(), false, pid)
}

// Poison sends a graceful poison pill to pid: the process drains its
// mailbox before stopping. The returned context is Done once the
// process has finished cleaning up.
func (e *Engine) Poison(pid *PID) context.Context {
	return e.sendPoisonPill(context.Background(), true, pid)
}

// PoisonCtx behaves like Poison but accepts a context for the caller to
// control cancellation/timeout of the wait.
func (e *Engine) PoisonCtx(ctx context.Context, pid *PID) context.Context {
	return e.sendPoisonPill(ctx, true, pid)
}

func (e *Engine) sendPoisonPill(ctx context.Context, graceful bool, pid *PID) context.Context {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(ctx)
	pill := poisonPill{
		cancel:   cancel,
		graceful: graceful,
	}
	if e.Registry.get(pid) == nil {
		e.BroadcastEvent(DeadLetterEvent{
			Target:  pid,
			Message: pill,
			Sender:  nil,
		})
		cancel()
		return ctx
	}
	e.SendLocal(pid, pill, nil)
	return ctx
}

// SendLocal delivers msg directly to the process registered under pid,
// broadcasting a DeadLetterEvent if no such process exists.
func (e *Engine) SendLocal(pid *PID, msg any, sender *PID) {
	proc := e.Registry.get(pid)
	if proc == nil {
		e.BroadcastEvent(DeadLetterEvent{
			Target:  pid,
			Message: msg,
			Sender:  sender,
		})
		return
	}
	proc.Send(pid, msg, sender)
}

// Subscribe registers pid to receive every event broadcast on the event
// stream.
func (e *Engine) Subscribe(pid *PID) {
	e.Send(e.eventStream, eventSub{pid: pid})
}

// Unsubscribe reverses a prior Subscribe.
func (e *Engine) Unsubscribe(pid *PID) {
	e.Send(e.eventStream, eventUnsub{pid: pid})
}

func (e *Engine) isLocalMessage(pid *PID) bool {
	if pid == nil {
		return false
	}
	return e.address == pid.Address
}

type funcReceiver struct {
	f func(*Context)
}

func newFuncReceiver(f func(*Context)) Producer {
	return func() Receiver {
		return &funcReceiver{
			f: f,
		}
	}
}

// Receive runs the wrapped function, making a stateless func behave as a
// full Receiver.
func (r *funcReceiver) Receive(c *Context) {
	r.f(c)
}
