package actor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/DataDog/gostackparse"
)

// Envelope pairs a message with the PID of whoever sent it, if any.
type Envelope struct {
	Msg    any
	Sender *PID
}

// Processer abstracts the behavior the registry and inbox need from an
// actor's runtime process, independent of how it schedules itself.
type Processer interface {
	Start()
	PID() *PID
	Send(*PID, any, *PID)
	Invoke([]Envelope)
	Shutdown()
}

// process is the concrete Processer backing every locally-spawned actor.
type process struct {
	Opts

	inbox    Inboxer
	context  *Context
	pid      *PID
	restarts int32
	mbuffer  []Envelope
	watchers *PIDSet
}

// newProcess creates a new process for a locally-spawned actor.
func newProcess(e *Engine, opts Opts) *process {
	pid := NewPID(e.address, opts.Kind+pidSeparator+opts.ID)
	ctx := newContext(opts.Context, e, pid)
	p := &process{
		pid:      pid,
		inbox:    NewInbox(opts.InboxSize),
		Opts:     opts,
		context:  ctx,
		mbuffer:  nil,
		watchers: NewPIDSet(),
	}
	return p
}

// applyMiddleware wraps rcv with middleware, outermost first.
func applyMiddleware(rcv ReceiveFunc, middleware ...MiddlewareFunc) ReceiveFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		rcv = middleware[i](rcv)
	}
	return rcv
}

// Invoke processes a batch of messages handed to it by the inbox.
func (p *process) Invoke(msgs []Envelope) {
	var (
		nmsg      = len(msgs)
		nproc     = 0
		processed = 0
	)
	defer func() {
		// A panic mid-batch buffers whatever wasn't processed yet so it
		// can be retried once the actor restarts.
		if v := recover(); v != nil {
			p.context.message = Stopped{}
			p.context.receiver.Receive(p.context)

			p.mbuffer = make([]Envelope, nmsg-nproc)
			for i := 0; i < nmsg-nproc; i++ {
				p.mbuffer[i] = msgs[i+nproc]
			}
			p.tryRestart(v)
		}
	}()

	for i := 0; i < len(msgs); i++ {
		nproc++
		msg := msgs[i]
		if pill, ok := msg.Msg.(poisonPill); ok {
			// A graceful stop drains whatever is left in this batch first;
			// an ungraceful one discards it.
			if pill.graceful {
				msgsToProcess := msgs[processed:]
				for _, m := range msgsToProcess {
					p.invokeMsg(m)
				}
			}
			p.cleanup(pill.cancel)
			return
		}
		p.invokeMsg(msg)
		processed++
	}
}

// invokeMsg dispatches a single message, intercepting the kernel-private
// ones (poisonPill, Watch, Unwatch) before they reach the Receiver.
func (p *process) invokeMsg(msg Envelope) {
	if _, ok := msg.Msg.(poisonPill); ok {
		return
	}
	if w, ok := msg.Msg.(Watch); ok {
		p.watchers.Add(w.Watcher)
		return
	}
	if u, ok := msg.Msg.(Unwatch); ok {
		p.watchers.Remove(u.Watcher)
		return
	}
	p.context.message = msg.Msg
	p.context.sender = msg.Sender
	recv := p.context.receiver
	if len(p.Opts.Middleware) > 0 {
		applyMiddleware(recv.Receive, p.Opts.Middleware...)(p.context)
	} else {
		recv.Receive(p.context)
	}
}

// Start runs an actor's Initialized/Started lifecycle and hands it off to
// the inbox for scheduling.
func (p *process) Start() {
	recv := p.Producer()
	p.context.receiver = recv
	defer func() {
		if v := recover(); v != nil {
			p.context.message = Stopped{}
			p.context.receiver.Receive(p.context)
			p.tryRestart(v)
		}
	}()
	p.context.message = Initialized{}
	applyMiddleware(recv.Receive, p.Opts.Middleware...)(p.context)
	p.context.engine.BroadcastEvent(ActorInitializedEvent{PID: p.pid, Timestamp: time.Now()})

	p.context.message = Started{}
	applyMiddleware(recv.Receive, p.Opts.Middleware...)(p.context)
	p.context.engine.BroadcastEvent(ActorStartedEvent{PID: p.pid, Timestamp: time.Now()})
	// Replay anything buffered from a pre-restart panic.
	if len(p.mbuffer) > 0 {
		p.Invoke(p.mbuffer)
		p.mbuffer = nil
	}

	p.inbox.Start(p)
}

// tryRestart decides whether a panic should restart the actor or tear it
// down for good, and does so after RestartDelay.
func (p *process) tryRestart(v any) {
	// InternalError never counts against MaxRestarts: a process that
	// panics with one is restarted after RestartDelay however many
	// times it has already restarted.
	if msg, ok := v.(*InternalError); ok {
		slog.Error("actor: internal error, retrying", "from", msg.From, "err", msg.Err)
		time.Sleep(p.Opts.RestartDelay)
		p.Start()
		return
	}
	stackTrace := cleanTrace(debug.Stack())
	if p.restarts == p.MaxRestarts {
		p.context.engine.BroadcastEvent(ActorMaxRestartsExceededEvent{
			PID:       p.pid,
			Timestamp: time.Now(),
		})
		p.cleanup(nil)
		return
	}

	p.restarts++
	p.context.engine.BroadcastEvent(ActorRestartedEvent{
		PID:        p.pid,
		Timestamp:  time.Now(),
		Stacktrace: stackTrace,
		Reason:     v,
		Restarts:   p.restarts,
	})
	time.Sleep(p.Opts.RestartDelay)
	p.Start()
}

// cleanup tears down a terminated process: its children are poisoned
// first, then it's removed from the registry and every watcher is
// notified with Terminated.
func (p *process) cleanup(cancel context.CancelFunc) {
	if cancel != nil {
		defer cancel()
	}

	if p.context.parentCtx != nil {
		p.context.parentCtx.children.Remove(p.pid)
	}

	if p.context.children.Len() > 0 {
		children := p.context.Children()
		for _, pid := range children {
			<-p.context.engine.Poison(pid).Done()
		}
	}

	p.inbox.Stop()
	p.context.engine.Registry.Remove(p.pid)
	p.context.message = Stopped{}
	applyMiddleware(p.context.receiver.Receive, p.Opts.Middleware...)(p.context)

	p.context.engine.BroadcastEvent(ActorStoppedEvent{PID: p.pid, Timestamp: time.Now()})

	p.watchers.ForEach(func(_ int, watcher *PID) {
		p.context.engine.SendWithSender(watcher, Terminated{Who: p.pid}, p.pid)
	})
}

// PID returns the process's own PID.
func (p *process) PID() *PID { return p.pid }

// Send delivers a message to this process's inbox.
func (p *process) Send(_ *PID, msg any, sender *PID) {
	p.inbox.Send(Envelope{Msg: msg, Sender: sender})
}

// Shutdown stops the process immediately, bypassing the inbox.
func (p *process) Shutdown() {
	p.cleanup(nil)
}

// cleanTrace strips the panic-recovery frames off a stack trace so
// restart events carry just the caller's own stack.
func cleanTrace(stack []byte) []byte {
	goros, err := gostackparse.Parse(bytes.NewReader(stack))
	if err != nil {
		slog.Error("actor: failed to parse stack trace", "err", err)
		return stack
	}
	if len(goros) != 1 {
		slog.Error("actor: expected exactly one goroutine in stack trace", "goroutines", len(goros))
		return stack
	}
	goros[0].Stack = goros[0].Stack[4:]
	buf := bytes.NewBuffer(nil)
	_, _ = fmt.Fprintf(buf, "goroutine %d [%s]\n", goros[0].ID, goros[0].State)
	for _, frame := range goros[0].Stack {
		_, _ = fmt.Fprintf(buf, "%s\n", frame.Func)
		_, _ = fmt.Fprint(buf, "\t", frame.File, ":", frame.Line, "\n")
	}
	return buf.Bytes()
}
