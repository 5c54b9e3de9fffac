package remote

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/wireactor/wireactor/actor"
)

// Serializer ids, fixed on the wire per spec.md §6. Ids 2+ are reserved
// for user-registered serializers; this registry only implements 0/1.
const (
	SerializerIdBinary = int32(0)
	SerializerIdJSON   = int32(1)
)

// Serializer turns a message into bytes for one serializer id.
type Serializer interface {
	Serialize(msg any) ([]byte, error)
	TypeName(msg any) string
}

// Deserializer turns bytes back into a message, given its wire type
// name.
type Deserializer interface {
	Deserialize(data []byte, typeName string) (any, error)
}

// UnknownTypeError is returned by Deserialize when typeName was never
// registered (spec.md §7).
type UnknownTypeError struct {
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("remote: unknown type %q", e.TypeName)
}

var defaultTypes = newTypeRegistry()

// RegisterType registers the wire type name of v (via its Named
// implementation) so Registry can decode it by name. v is used only as
// a template: reflect.New clones its concrete type to produce a fresh
// instance per Deserialize call.
func RegisterType(v interface {
	Named
	VTUnmarshaler
}) {
	rt := reflect.TypeOf(v).Elem()
	defaultTypes.register(v.WireName(), func() VTUnmarshaler {
		return reflect.New(rt).Interface().(VTUnmarshaler)
	})
}

// VTProtoSerializer is serializer id 0: the fast hand-rolled binary
// path vtprotobuf's convention established, continuing the teacher's
// VTProtoSerializer idiom from remote/serialize.go. Every wire.go type
// and actor.PID implement it; user messages may too.
type VTProtoSerializer struct{}

func (VTProtoSerializer) TypeName(msg any) string {
	named, ok := msg.(Named)
	if !ok {
		return fmt.Sprintf("%T", msg)
	}
	return named.WireName()
}

func (VTProtoSerializer) Serialize(msg any) ([]byte, error) {
	m, ok := msg.(VTMarshaler)
	if !ok {
		return nil, fmt.Errorf("remote: %T does not implement MarshalVT", msg)
	}
	return m.MarshalVT()
}

func (VTProtoSerializer) Deserialize(data []byte, typeName string) (any, error) {
	v, err := defaultTypes.new(typeName)
	if err != nil {
		return nil, &UnknownTypeError{TypeName: typeName}
	}
	if err := v.UnmarshalVT(data); err != nil {
		return nil, err
	}
	return v, nil
}

// JsonMessage wraps an arbitrary message for serializer id 1 when the
// payload has no Go type registered locally — typeName is carried
// alongside the body so the receiving side can route it without a
// shared struct definition (spec.md §4.1).
type JsonMessage struct {
	TypeName string
	Body     []byte
}

func (m *JsonMessage) WireName() string { return "remote.JsonMessage" }

// JSONSerializer is serializer id 1. Messages that implement Named are
// marshaled with encoding/json directly; anything describable only by
// a registered protobuf file descriptor is materialized dynamically via
// protodesc/dynamicpb and rendered with protojson, so schema-only
// message definitions (no compiled Go struct) still round-trip.
type JSONSerializer struct {
	files *protoregistry.Files
}

func newJSONSerializer() *JSONSerializer {
	return &JSONSerializer{files: new(protoregistry.Files)}
}

func (s *JSONSerializer) registerFileDescriptor(fd *descriptorpb.FileDescriptorProto) error {
	file, err := protodesc.NewFile(fd, s.files)
	if err != nil {
		return fmt.Errorf("remote: register file descriptor %q: %w", fd.GetName(), err)
	}
	return s.files.RegisterFile(file)
}

func (s *JSONSerializer) descriptorFor(typeName string) (protoreflect.MessageDescriptor, bool) {
	desc, err := s.files.FindDescriptorByName(protoreflect.FullName(typeName))
	if err != nil {
		return nil, false
	}
	md, ok := desc.(protoreflect.MessageDescriptor)
	return md, ok
}

func (s *JSONSerializer) TypeName(msg any) string {
	if jm, ok := msg.(*JsonMessage); ok {
		return jm.TypeName
	}
	if named, ok := msg.(Named); ok {
		return named.WireName()
	}
	return fmt.Sprintf("%T", msg)
}

func (s *JSONSerializer) Serialize(msg any) ([]byte, error) {
	if jm, ok := msg.(*JsonMessage); ok {
		return jm.Body, nil
	}
	return json.Marshal(msg)
}

func (s *JSONSerializer) Deserialize(data []byte, typeName string) (any, error) {
	if md, ok := s.descriptorFor(typeName); ok {
		dyn := dynamicpb.NewMessage(md)
		if err := protojson.Unmarshal(data, dyn); err != nil {
			return nil, fmt.Errorf("remote: json-unmarshal %q via descriptor: %w", typeName, err)
		}
		return dyn, nil
	}
	if typeName == "actor.PID" {
		pid := &actor.PID{}
		if err := json.Unmarshal(data, pid); err != nil {
			return nil, err
		}
		return pid, nil
	}
	v, err := defaultTypes.new(typeName)
	if err != nil {
		return nil, &UnknownTypeError{TypeName: typeName}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("remote: json-unmarshal %q: %w", typeName, err)
	}
	return v, nil
}

// Registry is the serialization registry of spec.md §3/§4.1: a
// type-name → decoder table behind two selectable serializer ids.
type Registry struct {
	binary VTProtoSerializer
	json   *JSONSerializer
}

// NewRegistry returns a Registry with actor.PID pre-registered, as
// spec.md §4.1 requires.
func NewRegistry() *Registry {
	return &Registry{
		binary: VTProtoSerializer{},
		json:   newJSONSerializer(),
	}
}

// RegisterFileDescriptor merges fd into the descriptor set backing the
// JSON-over-schema fallback. Idempotent per distinct file name.
func (r *Registry) RegisterFileDescriptor(fd *descriptorpb.FileDescriptorProto) error {
	return r.registerFileDescriptorOnce(fd)
}

func (r *Registry) registerFileDescriptorOnce(fd *descriptorpb.FileDescriptorProto) error {
	if _, err := r.json.files.FindFileByPath(fd.GetName()); err == nil {
		return nil
	}
	return r.json.registerFileDescriptor(fd)
}

// Serialize encodes msg with the serializer named by id.
func (r *Registry) Serialize(msg any, serializerId int32) ([]byte, error) {
	switch serializerId {
	case SerializerIdBinary:
		return r.binary.Serialize(msg)
	case SerializerIdJSON:
		return r.json.Serialize(msg)
	default:
		return nil, fmt.Errorf("remote: unsupported serializer id %d", serializerId)
	}
}

// Deserialize decodes data as typeName using the serializer named by
// id.
func (r *Registry) Deserialize(typeName string, data []byte, serializerId int32) (any, error) {
	switch serializerId {
	case SerializerIdBinary:
		return r.binary.Deserialize(data, typeName)
	case SerializerIdJSON:
		return r.json.Deserialize(data, typeName)
	default:
		return nil, fmt.Errorf("remote: unsupported serializer id %d", serializerId)
	}
}

// GetTypeName returns the wire name Serialize(msg, serializerId) would
// file it under.
func (r *Registry) GetTypeName(msg any, serializerId int32) string {
	switch serializerId {
	case SerializerIdJSON:
		return r.json.TypeName(msg)
	default:
		return r.binary.TypeName(msg)
	}
}
