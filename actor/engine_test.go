package actor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wireactor/wireactor/actor"
)

func newTestEngine(t *testing.T) *actor.Engine {
	t.Helper()
	e, err := actor.NewEngine(actor.NewEngineConfig())
	require.NoError(t, err)
	return e
}

func TestEngineSpawnAndSend(t *testing.T) {
	e := newTestEngine(t)

	received := make(chan string, 1)
	pid := e.SpawnFunc(func(c *actor.Context) {
		if s, ok := c.Message().(string); ok {
			received <- s
		}
	}, "echo")

	e.Send(pid, "hello")

	select {
	case msg := <-received:
		require.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestEngineRequestResponse(t *testing.T) {
	e := newTestEngine(t)

	pid := e.SpawnFunc(func(c *actor.Context) {
		if _, ok := c.Message().(string); ok {
			c.Respond("pong")
		}
	}, "ponger")

	resp := e.Request(pid, "ping", time.Second)
	result, err := resp.Result()
	require.NoError(t, err)
	require.Equal(t, "pong", result)
}

func TestEngineStopDeliversNoMoreMessages(t *testing.T) {
	e := newTestEngine(t)

	var count int
	done := make(chan struct{})
	pid := e.SpawnFunc(func(c *actor.Context) {
		switch c.Message().(type) {
		case int:
			count++
		case actor.Stopped:
			close(done)
		}
	}, "counter")

	e.Send(pid, 1)
	<-e.Stop(pid).Done()
	e.Send(pid, 2)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("actor never observed Stopped")
	}
	require.Equal(t, 1, count)
}

func TestEngineWatchNotifiesOnLocalTermination(t *testing.T) {
	e := newTestEngine(t)

	watchee := e.SpawnFunc(func(*actor.Context) {}, "watchee")

	terminated := make(chan actor.Terminated, 1)
	watcher := e.SpawnFunc(func(c *actor.Context) {
		if t, ok := c.Message().(actor.Terminated); ok {
			terminated <- t
		}
	}, "watcher")

	e.Watch(watchee, watcher)
	<-e.Poison(watchee).Done()

	select {
	case term := <-terminated:
		require.True(t, term.Who.Equals(watchee))
		require.False(t, term.AddressTerminated)
	case <-time.After(time.Second):
		t.Fatal("watcher never received Terminated")
	}
}

func TestEngineUnwatchStopsNotifications(t *testing.T) {
	e := newTestEngine(t)

	watchee := e.SpawnFunc(func(*actor.Context) {}, "watchee")

	terminated := make(chan actor.Terminated, 1)
	watcher := e.SpawnFunc(func(c *actor.Context) {
		if t, ok := c.Message().(actor.Terminated); ok {
			terminated <- t
		}
	}, "watcher")

	e.Watch(watchee, watcher)
	e.Unwatch(watchee, watcher)
	<-e.Poison(watchee).Done()

	select {
	case <-terminated:
		t.Fatal("watcher received Terminated after Unwatch")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineSendToUnknownPIDBroadcastsDeadLetter(t *testing.T) {
	e := newTestEngine(t)

	deadLetters := make(chan actor.DeadLetterEvent, 1)
	sub := e.SpawnFunc(func(c *actor.Context) {
		if dl, ok := c.Message().(actor.DeadLetterEvent); ok {
			deadLetters <- dl
		}
	}, "subscriber")
	e.Subscribe(sub)

	ghost := actor.NewPID(e.Address(), "nobody")
	e.Send(ghost, "anyone there?")

	select {
	case dl := <-deadLetters:
		require.True(t, dl.Target.Equals(ghost))
	case <-time.After(time.Second):
		t.Fatal("no dead letter broadcast for unknown PID")
	}
}
