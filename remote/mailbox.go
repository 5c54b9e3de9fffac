package remote

import (
	"sync"
	"sync/atomic"

	"github.com/wireactor/wireactor/actor"
)

const (
	mailboxIdle int32 = iota
	mailboxBusy
)

// systemMessage marks a message that preempts the user queue and is
// always processed one at a time, per spec.md §4.2.
type systemMessage interface{ systemMessage() }

// suspendMailbox stops user-queue draining until resumeMailbox arrives;
// posted by the writer itself after a transport failure it wants to
// retry rather than escalate.
type suspendMailbox struct{}

func (suspendMailbox) systemMessage() {}

type resumeMailbox struct{}

func (resumeMailbox) systemMessage() {}

// drainMailbox asks the mailbox to hand whatever is left in the user
// queue to the Processer as one final batch, even while suspended; done
// is closed once that batch has been invoked. The mailbox keeps
// accepting and scheduling messages afterwards.
type drainMailbox struct{ done chan struct{} }

func (drainMailbox) systemMessage() {}

// endpointMailbox is the endpoint writer's mailbox: a system queue
// drained one message at a time ahead of a user queue drained up to
// batchSize messages at a time, with an atomic idle/busy status so at
// most one goroutine ever drains it. Unlike actor.Inbox's single
// ring buffer, the two queues let connection-control traffic
// (suspend/resume/drain) cut the line in front of whatever user
// messages are waiting to be batched.
type endpointMailbox struct {
	mu        sync.Mutex
	system    []actor.Envelope
	user      []actor.Envelope
	suspended bool
	batchSize int
	status    int32
	proc      actor.Processer
	scheduler actor.Scheduler
}

func newEndpointMailbox(batchSize int) *endpointMailbox {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &endpointMailbox{
		batchSize: batchSize,
		scheduler: actor.NewScheduler(defaultBatchSize),
		status:    mailboxIdle,
	}
}

// Start implements actor.Inboxer.
func (m *endpointMailbox) Start(proc actor.Processer) {
	m.proc = proc
	m.schedule()
}

// Stop implements actor.Inboxer: it drains synchronously so nothing
// queued at shutdown is silently dropped.
func (m *endpointMailbox) Stop() error {
	done := make(chan struct{})
	m.postSystem(actor.Envelope{Msg: drainMailbox{done: done}})
	<-done
	return nil
}

// Send implements actor.Inboxer, routing system-tagged messages ahead
// of ordinary user traffic.
func (m *endpointMailbox) Send(e actor.Envelope) {
	if _, ok := e.Msg.(systemMessage); ok {
		m.postSystem(e)
		return
	}
	m.mu.Lock()
	m.user = append(m.user, e)
	m.mu.Unlock()
	m.schedule()
}

func (m *endpointMailbox) postSystem(e actor.Envelope) {
	m.mu.Lock()
	m.system = append(m.system, e)
	m.mu.Unlock()
	m.schedule()
}

func (m *endpointMailbox) schedule() {
	if m.proc == nil {
		return
	}
	if atomic.CompareAndSwapInt32(&m.status, mailboxIdle, mailboxBusy) {
		m.scheduler.Schedule(m.run)
	}
}

// run keeps popping, one system message at a time ahead of up to
// batchSize user messages at a time (unless suspended), until pop
// reports nothing more to do, then reschedules if work remains.
func (m *endpointMailbox) run() {
	for {
		batch, more, done := m.pop()
		if len(batch) > 0 {
			m.proc.Invoke(batch)
		}
		if done != nil {
			close(done)
		}
		if !more {
			break
		}
	}
	atomic.StoreInt32(&m.status, mailboxIdle)
	if m.hasWork() {
		m.schedule()
	}
}

func (m *endpointMailbox) hasWork() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.system) > 0 || (len(m.user) > 0 && !m.suspended)
}

// pop returns the next batch to hand to Invoke and whether the caller
// should keep draining afterwards. System messages are handled inline
// here (suspend/resume flip m.suspended; drain hands the whole user
// queue to the caller and returns its done channel for the caller to
// close after invoking it) so the Processer never sees them directly.
func (m *endpointMailbox) pop() ([]actor.Envelope, bool, chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.system) > 0 {
		e := m.system[0]
		m.system = m.system[1:]
		switch msg := e.Msg.(type) {
		case suspendMailbox:
			m.suspended = true
			return nil, len(m.system) > 0 || (len(m.user) > 0 && !m.suspended), nil
		case resumeMailbox:
			m.suspended = false
			return nil, len(m.system) > 0 || len(m.user) > 0, nil
		case drainMailbox:
			leftover := m.user
			m.user = nil
			return leftover, len(m.system) > 0, msg.done
		default:
			return []actor.Envelope{e}, len(m.system) > 0 || (len(m.user) > 0 && !m.suspended), nil
		}
	}

	if m.suspended || len(m.user) == 0 {
		return nil, false, nil
	}
	n := m.batchSize
	if n > len(m.user) {
		n = len(m.user)
	}
	batch := m.user[:n]
	m.user = m.user[n:]
	return batch, len(m.user) > 0, nil
}
