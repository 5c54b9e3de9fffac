package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wireactor/wireactor/actor"
)

func TestActivatorSpawnsRegisteredKind(t *testing.T) {
	e := newTestEngine(t)

	kinds := map[string]KindProducer{
		"greeter": func() actor.Receiver {
			return receiverFunc(func(c *actor.Context) {})
		},
	}

	activatorPID := e.Spawn(newActivator(e, kinds), "activator")

	resp := e.Request(activatorPID, &ActorPidRequest{Name: "alice", Kind: "greeter"}, time.Second)
	result, err := resp.Result()
	require.NoError(t, err)

	pidResp, ok := result.(*ActorPidResponse)
	require.True(t, ok)
	require.Equal(t, StatusOK, pidResp.StatusCode)
	require.NotNil(t, pidResp.Pid)
}

func TestActivatorReturnsExistingPIDOnNameConflict(t *testing.T) {
	e := newTestEngine(t)

	kinds := map[string]KindProducer{
		"greeter": func() actor.Receiver {
			return receiverFunc(func(c *actor.Context) {})
		},
	}
	activatorPID := e.Spawn(newActivator(e, kinds), "activator")

	first, err := e.Request(activatorPID, &ActorPidRequest{Name: "alice", Kind: "greeter"}, time.Second).Result()
	require.NoError(t, err)
	second, err := e.Request(activatorPID, &ActorPidRequest{Name: "alice", Kind: "greeter"}, time.Second).Result()
	require.NoError(t, err)

	firstPID := first.(*ActorPidResponse)
	secondPID := second.(*ActorPidResponse)

	require.Equal(t, StatusProcessNameAlreadyExist, secondPID.StatusCode)
	require.True(t, firstPID.Pid.Equals(secondPID.Pid))
}

func TestActivatorGeneratesUniqueNamesForEmptyRequests(t *testing.T) {
	e := newTestEngine(t)

	kinds := map[string]KindProducer{
		"greeter": func() actor.Receiver {
			return receiverFunc(func(c *actor.Context) {})
		},
	}
	activatorPID := e.Spawn(newActivator(e, kinds), "activator")

	first, err := e.Request(activatorPID, &ActorPidRequest{Kind: "greeter"}, time.Second).Result()
	require.NoError(t, err)
	second, err := e.Request(activatorPID, &ActorPidRequest{Kind: "greeter"}, time.Second).Result()
	require.NoError(t, err)

	firstPID := first.(*ActorPidResponse)
	secondPID := second.(*ActorPidResponse)

	require.Equal(t, StatusOK, firstPID.StatusCode)
	require.Equal(t, StatusOK, secondPID.StatusCode)
	require.False(t, firstPID.Pid.Equals(secondPID.Pid))
}

func TestActivatorUnknownKindReturnsError(t *testing.T) {
	e := newTestEngine(t)
	activatorPID := e.Spawn(newActivator(e, map[string]KindProducer{}), "activator")

	result, err := e.Request(activatorPID, &ActorPidRequest{Name: "bob", Kind: "missing"}, time.Second).Result()
	require.NoError(t, err)

	pidResp := result.(*ActorPidResponse)
	require.Equal(t, StatusError, pidResp.StatusCode)
}

// receiverFunc adapts a plain function to actor.Receiver for test kinds.
type receiverFunc func(*actor.Context)

func (f receiverFunc) Receive(c *actor.Context) { f(c) }
