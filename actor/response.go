package actor

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// Response is a one-shot Processer standing in for the caller of
// Engine.Request: it has a PID like any other actor so the remote
// reply can be addressed to it, but it only ever receives one message.
type Response struct {
	engine  *Engine
	pid     *PID
	result  chan any
	timeout time.Duration
}

// NewResponse creates a Response with a freshly minted PID.
func NewResponse(e *Engine, timeout time.Duration) *Response {
	return &Response{
		engine:  e,
		result:  make(chan any, 1),
		timeout: timeout,
		pid:     NewPID(e.address, "response"+pidSeparator+strconv.Itoa(rand.Intn(math.MaxInt32))),
	}
}

// Result blocks until a reply arrives or timeout elapses.
func (r *Response) Result() (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer func() {
		cancel()
		r.engine.Registry.Remove(r.pid)
	}()

	select {
	case resp := <-r.result:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send implements Processer: it delivers the reply to Result.
func (r *Response) Send(_ *PID, msg any, _ *PID) {
	r.result <- msg
}

// PID returns the Response's own PID.
func (r *Response) PID() *PID { return r.pid }

// Shutdown implements Processer; a Response has nothing to clean up.
func (r *Response) Shutdown() {}

// Start implements Processer; a Response needs no startup.
func (r *Response) Start() {}

// Invoke implements Processer; a Response is never batch-scheduled.
func (r *Response) Invoke([]Envelope) {}
