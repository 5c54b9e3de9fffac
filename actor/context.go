package actor

import (
	"context"
)

// Context is passed to every Receive call. It carries the message
// currently being processed together with everything a Receiver needs
// to respond, forward, watch, or spawn children of its own.
type Context struct {
	ctx       context.Context
	engine    *Engine
	pid       *PID
	parentCtx *Context
	children  *PIDSet
	receiver  Receiver
	message   any
	sender    *PID
}

// newContext returns a new Context bound to the given PID and running
// inside the given Engine.
func newContext(ctx context.Context, e *Engine, pid *PID) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		ctx:      ctx,
		engine:   e,
		pid:      pid,
		children: NewPIDSet(),
	}
}

// Context returns the Go context.Context this actor was started with.
func (c *Context) Context() context.Context { return c.ctx }

// Engine returns the actor engine driving this context.
func (c *Context) Engine() *Engine { return c.engine }

// PID returns the PID of the actor that owns this context.
func (c *Context) PID() *PID { return c.pid }

// Parent returns the parent context, or nil if this actor has no parent.
func (c *Context) Parent() *Context { return c.parentCtx }

// Children returns the PIDs of every child spawned through this context.
func (c *Context) Children() []*PID { return c.children.Values() }

// Message returns the message currently being processed.
func (c *Context) Message() any { return c.message }

// Sender returns the PID of the actor that sent the current message, if
// any. It is nil for messages sent without a sender (e.g. via Engine.Send).
func (c *Context) Sender() *PID { return c.sender }

// Send sends msg to pid without attaching a sender.
func (c *Context) Send(pid *PID, msg any) {
	c.engine.Send(pid, msg)
}

// SendWithSender sends msg to pid, attaching this actor's PID as sender.
func (c *Context) SendWithSender(pid *PID, msg any) {
	c.engine.SendWithSender(pid, msg, c.pid)
}

// Forward re-sends the message currently being processed, together with
// its original sender, to pid.
func (c *Context) Forward(pid *PID) {
	c.engine.SendWithSender(pid, c.message, c.sender)
}

// Respond sends msg back to the sender of the message currently being
// processed. It is a no-op if there is no sender.
func (c *Context) Respond(msg any) {
	if c.sender == nil {
		return
	}
	c.engine.SendWithSender(c.sender, msg, c.pid)
}

// Spawn creates a new actor as a child of this context. The child is
// torn down automatically when its parent is poisoned.
func (c *Context) Spawn(p Producer, kind string, opts ...OptFunc) *PID {
	pid := c.engine.Spawn(p, kind, opts...)
	c.children.Add(pid)
	if child := c.engine.Registry.get(pid); child != nil {
		if cp, ok := child.(*process); ok {
			cp.context.parentCtx = c
		}
	}
	return pid
}

// Self is an alias for PID, matching the common actor-model vocabulary.
func (c *Context) Self() *PID { return c.pid }
