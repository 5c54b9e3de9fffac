package remote

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wireactor/wireactor/actor"
)

// recordingProc is a minimal actor.Processer that records every batch
// Invoke is called with, so tests can assert on batching/suspend
// behavior without spinning up a real endpoint writer.
type recordingProc struct {
	mu      sync.Mutex
	batches [][]actor.Envelope
}

func (p *recordingProc) Start()           {}
func (p *recordingProc) PID() *actor.PID  { return actor.NewPID("local", "recorder") }
func (p *recordingProc) Send(*actor.PID, any, *actor.PID) {}
func (p *recordingProc) Shutdown()        {}

func (p *recordingProc) Invoke(batch []actor.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cloned := make([]actor.Envelope, len(batch))
	copy(cloned, batch)
	p.batches = append(p.batches, cloned)
}

func (p *recordingProc) totalMessages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func (p *recordingProc) batchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition never became true")
}

func TestEndpointMailboxBatchesUpToBatchSize(t *testing.T) {
	m := newEndpointMailbox(2)
	proc := &recordingProc{}
	m.Start(proc)

	for i := 0; i < 5; i++ {
		m.Send(actor.Envelope{Msg: i})
	}

	eventually(t, func() bool { return proc.totalMessages() == 5 })
	require.LessOrEqual(t, proc.batchCount(), 5)
	proc.mu.Lock()
	defer proc.mu.Unlock()
	for _, b := range proc.batches {
		require.LessOrEqual(t, len(b), 2)
	}
}

func TestEndpointMailboxSuspendHoldsUserMessages(t *testing.T) {
	m := newEndpointMailbox(10)
	proc := &recordingProc{}
	m.Start(proc)

	m.postSystem(actor.Envelope{Msg: suspendMailbox{}})
	m.Send(actor.Envelope{Msg: "held"})

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, proc.totalMessages())

	m.postSystem(actor.Envelope{Msg: resumeMailbox{}})
	eventually(t, func() bool { return proc.totalMessages() == 1 })
}

func TestEndpointMailboxStopDrainsPendingUserMessages(t *testing.T) {
	m := newEndpointMailbox(10)
	proc := &recordingProc{}
	m.Start(proc)

	m.postSystem(actor.Envelope{Msg: suspendMailbox{}})
	m.Send(actor.Envelope{Msg: "pending"})

	require.NoError(t, m.Stop())
	require.Equal(t, 1, proc.totalMessages())
}
