package remote

import "fmt"

// Named lets a hand-authored wire type report its own fully-qualified
// name. protoc-generated messages get this from their descriptor via
// proto.MessageName; our message set has no .proto files behind it, so
// each type implements Named directly instead (see wire.go,
// actor.PID.WireName).
type Named interface {
	WireName() string
}

// VTUnmarshaler is the vtprotobuf decode-side convention: a type that
// can reconstruct itself from bytes written by its own MarshalVT.
type VTUnmarshaler interface {
	UnmarshalVT([]byte) error
}

// VTMarshaler is the vtprotobuf encode-side convention.
type VTMarshaler interface {
	MarshalVT() ([]byte, error)
}

// typeFactory produces a fresh, empty instance of a registered wire
// type for Deserialize to decode into. Unlike the teacher's original
// registry (which decoded into one shared package-level instance),
// every call gets its own value, so concurrent deserializes of the
// same type never race on shared state.
type typeFactory func() VTUnmarshaler

// typeRegistry is the type-name → decoder half of the serialization
// registry (spec.md §3, §4.1).
type typeRegistry struct {
	factories map[string]typeFactory
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{factories: make(map[string]typeFactory)}
}

// register associates name with a constructor for fresh instances.
// Idempotent: re-registering the same name overwrites the factory.
func (r *typeRegistry) register(name string, factory typeFactory) {
	r.factories[name] = factory
}

// new allocates a fresh instance registered under name.
func (r *typeRegistry) new(name string) (VTUnmarshaler, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("remote: type %q is not registered; call remote.RegisterType before using it across the wire", name)
	}
	return factory(), nil
}
