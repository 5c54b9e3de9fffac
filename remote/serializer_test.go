package remote

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wireactor/wireactor/actor"
)

func TestRegistryBinaryRoundTrip(t *testing.T) {
	r := NewRegistry()

	original := &Connect{Address: "127.0.0.1:4000"}
	data, err := r.Serialize(original, SerializerIdBinary)
	require.NoError(t, err)

	typeName := r.GetTypeName(original, SerializerIdBinary)
	require.Equal(t, "remote.Connect", typeName)

	decoded, err := r.Deserialize(typeName, data, SerializerIdBinary)
	require.NoError(t, err)

	got, ok := decoded.(*Connect)
	require.True(t, ok)
	require.Equal(t, original.Address, got.Address)
}

func TestRegistryBinaryUnknownTypeErrors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Deserialize("not.a.registered.type", []byte{}, SerializerIdBinary)
	require.Error(t, err)

	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
}

func TestRegistryBinaryRoundTripsPID(t *testing.T) {
	r := NewRegistry()

	pid := actor.NewPID("node-a:4000", "worker/1")
	data, err := r.Serialize(pid, SerializerIdBinary)
	require.NoError(t, err)

	decoded, err := r.Deserialize(pid.WireName(), data, SerializerIdBinary)
	require.NoError(t, err)

	got, ok := decoded.(*actor.PID)
	require.True(t, ok)
	require.True(t, got.Equals(pid))
}

func TestRegistryJSONRoundTripsPID(t *testing.T) {
	r := NewRegistry()

	pid := actor.NewPID("node-a:4000", "worker/1")
	data, err := r.Serialize(pid, SerializerIdJSON)
	require.NoError(t, err)

	decoded, err := r.Deserialize("actor.PID", data, SerializerIdJSON)
	require.NoError(t, err)

	got, ok := decoded.(*actor.PID)
	require.True(t, ok)
	require.True(t, got.Equals(pid))
}
