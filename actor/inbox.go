package actor

import (
	"runtime"
	"sync/atomic"

	"github.com/wireactor/wireactor/ringbuffer"
)

const (
	defaultThroughput = 300
	messageBatchSize  = 1024 * 4
)

const (
	stopped int32 = iota
	starting
	idle
	running
)

// Scheduler decides how an inbox's drain loop is run.
type Scheduler interface {
	Schedule(fn func())
	Throughput() int
}

// goscheduler runs the drain loop on its own goroutine; Inbox.run yields
// after every Throughput batch pops so a single busy actor can't starve
// the runtime.
type goscheduler int

func (goscheduler) Schedule(fn func()) {
	go fn()
}

func (sched goscheduler) Throughput() int {
	return int(sched)
}

// NewScheduler returns the default goroutine-based Scheduler.
func NewScheduler(throughput int) Scheduler {
	return goscheduler(throughput)
}

// Inboxer is the mailbox contract a process hands its messages to.
type Inboxer interface {
	Send(Envelope)
	Start(Processer)
	Stop() error
}

// Inbox is a ring-buffer-backed mailbox. Sends are mutex-guarded pushes
// onto the ring buffer; draining is scheduled via CAS so at most one goroutine processes a
// given inbox at a time, and a send that lands between the last pop and
// the transition back to idle reschedules itself.
type Inbox struct {
	rb         *ringbuffer.RingBuffer[Envelope]
	proc       Processer
	scheduler  Scheduler
	procStatus int32
}

// NewInbox creates an Inbox with the given initial ring-buffer capacity.
func NewInbox(size int) *Inbox {
	return &Inbox{
		rb:         ringbuffer.New[Envelope](int64(size)),
		scheduler:  NewScheduler(defaultThroughput),
		procStatus: stopped,
	}
}

// Send enqueues msg and schedules draining if the inbox is idle.
func (in *Inbox) Send(msg Envelope) {
	in.rb.Push(msg)
	in.schedule()
}

func (in *Inbox) schedule() {
	if atomic.CompareAndSwapInt32(&in.procStatus, idle, running) {
		in.scheduler.Schedule(in.process)
	}
}

func (in *Inbox) process() {
	in.run()
	if atomic.CompareAndSwapInt32(&in.procStatus, running, idle) && in.rb.Len() > 0 {
		in.schedule()
	}
}

func (in *Inbox) run() {
	i, t := 0, in.scheduler.Throughput()
	for atomic.LoadInt32(&in.procStatus) != stopped {
		if i > t {
			i = 0
			runtime.Gosched()
		}
		i++

		if msgs, ok := in.rb.PopN(messageBatchSize); ok && len(msgs) > 0 {
			in.proc.Invoke(msgs)
		} else {
			return
		}
	}
}

// Start transitions the inbox from stopped to idle and kicks off
// draining if anything is already queued.
func (in *Inbox) Start(proc Processer) {
	if atomic.CompareAndSwapInt32(&in.procStatus, stopped, starting) {
		in.proc = proc
		atomic.SwapInt32(&in.procStatus, idle)
		in.schedule()
	}
}

// Stop halts the drain loop.
func (in *Inbox) Stop() error {
	atomic.StoreInt32(&in.procStatus, stopped)
	return nil
}
