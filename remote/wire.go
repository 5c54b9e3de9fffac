package remote

import (
	"encoding/binary"
	"fmt"

	"github.com/wireactor/wireactor/actor"
)

// wire.go hand-authors the frame types normally produced by
// protoc-gen-go + protoc-gen-go-drpc from a .proto file. No protoc
// toolchain is available here, so each type below implements the same
// three methods generated code would (Reset/String/ProtoMessage, to
// satisfy drpc.Message) plus MarshalVT/UnmarshalVT, continuing the
// teacher's vtprotobuf convention instead of reflection-based
// encoding/json or gob.

// StatusCode mirrors spec.md §6's activation result enum.
type StatusCode int32

const (
	StatusOK StatusCode = iota
	StatusUnavailable
	StatusTimeout
	StatusProcessNameAlreadyExist
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnavailable:
		return "Unavailable"
	case StatusTimeout:
		return "Timeout"
	case StatusProcessNameAlreadyExist:
		return "ProcessNameAlreadyExist"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Connect is the first frame written on every new stream: the dialing
// peer announces the advertised address it can be reached back on.
type Connect struct {
	Address string
}

func (m *Connect) Reset()          { *m = Connect{} }
func (m *Connect) String() string  { return "Connect{" + m.Address + "}" }
func (m *Connect) ProtoMessage()   {}
func (m *Connect) WireName() string { return "remote.Connect" }

func (m *Connect) MarshalVT() ([]byte, error) {
	return appendString(nil, m.Address), nil
}

func (m *Connect) UnmarshalVT(data []byte) error {
	s, rest, err := readString(data)
	if err != nil {
		return fmt.Errorf("remote: decode Connect: %w", err)
	}
	if len(rest) != 0 {
		return fmt.Errorf("remote: Connect has %d trailing bytes", len(rest))
	}
	m.Address = s
	return nil
}

// Message is one entry of a MessageBatch: indexes into the batch's
// shared typeNames/targets/senders pools plus the serialized payload.
type Message struct {
	Data          []byte
	TypeNameIndex int32
	SenderIndex   int32
	TargetIndex   int32
	SerializerId  int32
}

func (m *Message) Reset()         { *m = Message{} }
func (m *Message) String() string { return fmt.Sprintf("Message{type=%d target=%d}", m.TypeNameIndex, m.TargetIndex) }
func (m *Message) ProtoMessage()  {}

func (m *Message) marshalInto(buf []byte) []byte {
	buf = appendVarint(buf, uint64(m.TypeNameIndex))
	buf = appendVarint(buf, uint64(m.SenderIndex))
	buf = appendVarint(buf, uint64(m.TargetIndex))
	buf = appendVarint(buf, uint64(m.SerializerId))
	buf = appendBytes(buf, m.Data)
	return buf
}

func unmarshalMessage(data []byte) (*Message, []byte, error) {
	m := &Message{}
	var err error
	var v uint64
	if v, data, err = readVarint(data); err != nil {
		return nil, nil, err
	}
	m.TypeNameIndex = int32(v)
	if v, data, err = readVarint(data); err != nil {
		return nil, nil, err
	}
	m.SenderIndex = int32(v)
	if v, data, err = readVarint(data); err != nil {
		return nil, nil, err
	}
	m.TargetIndex = int32(v)
	if v, data, err = readVarint(data); err != nil {
		return nil, nil, err
	}
	m.SerializerId = int32(v)
	var payload []byte
	if payload, data, err = readBytes(data); err != nil {
		return nil, nil, err
	}
	m.Data = payload
	return m, data, nil
}

// Envelope is the wire MessageBatch frame: shared type-name and PID
// pools plus the per-message index entries, matching spec.md §6.
type Envelope struct {
	TypeNames []string
	Targets   []*actor.PID
	Senders   []*actor.PID
	Messages  []*Message
}

func (m *Envelope) Reset()          { *m = Envelope{} }
func (m *Envelope) String() string  { return fmt.Sprintf("Envelope{messages=%d}", len(m.Messages)) }
func (m *Envelope) ProtoMessage()   {}
func (m *Envelope) WireName() string { return "remote.Envelope" }

func (m *Envelope) MarshalVT() ([]byte, error) {
	var buf []byte
	buf = appendVarint(buf, uint64(len(m.TypeNames)))
	for _, t := range m.TypeNames {
		buf = appendString(buf, t)
	}
	buf = appendVarint(buf, uint64(len(m.Targets)))
	for _, pid := range m.Targets {
		b, err := pid.MarshalVT()
		if err != nil {
			return nil, err
		}
		buf = appendBytes(buf, b)
	}
	buf = appendVarint(buf, uint64(len(m.Senders)))
	for _, pid := range m.Senders {
		b, err := pid.MarshalVT()
		if err != nil {
			return nil, err
		}
		buf = appendBytes(buf, b)
	}
	buf = appendVarint(buf, uint64(len(m.Messages)))
	for _, msg := range m.Messages {
		buf = msg.marshalInto(buf)
	}
	return buf, nil
}

func (m *Envelope) UnmarshalVT(data []byte) error {
	n, data, err := readVarint(data)
	if err != nil {
		return fmt.Errorf("remote: decode Envelope.TypeNames: %w", err)
	}
	m.TypeNames = make([]string, n)
	for i := range m.TypeNames {
		m.TypeNames[i], data, err = readString(data)
		if err != nil {
			return fmt.Errorf("remote: decode Envelope.TypeNames[%d]: %w", i, err)
		}
	}

	n, data, err = readVarint(data)
	if err != nil {
		return fmt.Errorf("remote: decode Envelope.Targets: %w", err)
	}
	m.Targets = make([]*actor.PID, n)
	for i := range m.Targets {
		var b []byte
		b, data, err = readBytes(data)
		if err != nil {
			return fmt.Errorf("remote: decode Envelope.Targets[%d]: %w", i, err)
		}
		pid := &actor.PID{}
		if err := pid.UnmarshalVT(b); err != nil {
			return err
		}
		m.Targets[i] = pid
	}

	n, data, err = readVarint(data)
	if err != nil {
		return fmt.Errorf("remote: decode Envelope.Senders: %w", err)
	}
	m.Senders = make([]*actor.PID, n)
	for i := range m.Senders {
		var b []byte
		b, data, err = readBytes(data)
		if err != nil {
			return fmt.Errorf("remote: decode Envelope.Senders[%d]: %w", i, err)
		}
		pid := &actor.PID{}
		if err := pid.UnmarshalVT(b); err != nil {
			return err
		}
		m.Senders[i] = pid
	}

	n, data, err = readVarint(data)
	if err != nil {
		return fmt.Errorf("remote: decode Envelope.Messages: %w", err)
	}
	m.Messages = make([]*Message, n)
	for i := range m.Messages {
		m.Messages[i], data, err = unmarshalMessage(data)
		if err != nil {
			return fmt.Errorf("remote: decode Envelope.Messages[%d]: %w", i, err)
		}
	}
	if len(data) != 0 {
		return fmt.Errorf("remote: Envelope has %d trailing bytes", len(data))
	}
	return nil
}

// Watch is the wire control message asking a peer to notify this node
// when the actor named Id terminates.
type Watch struct {
	Watcher *actor.PID
	Id      string
}

func (m *Watch) Reset()          { *m = Watch{} }
func (m *Watch) String() string  { return "Watch{" + m.Id + "}" }
func (m *Watch) ProtoMessage()   {}
func (m *Watch) WireName() string { return "remote.Watch" }

func (m *Watch) MarshalVT() ([]byte, error) {
	wb, err := m.Watcher.MarshalVT()
	if err != nil {
		return nil, err
	}
	buf := appendBytes(nil, wb)
	buf = appendString(buf, m.Id)
	return buf, nil
}

func (m *Watch) UnmarshalVT(data []byte) error {
	wb, data, err := readBytes(data)
	if err != nil {
		return fmt.Errorf("remote: decode Watch.Watcher: %w", err)
	}
	pid := &actor.PID{}
	if err := pid.UnmarshalVT(wb); err != nil {
		return err
	}
	id, data, err := readString(data)
	if err != nil {
		return fmt.Errorf("remote: decode Watch.Id: %w", err)
	}
	if len(data) != 0 {
		return fmt.Errorf("remote: Watch has %d trailing bytes", len(data))
	}
	m.Watcher = pid
	m.Id = id
	return nil
}

// Unwatch reverses a prior Watch.
type Unwatch struct {
	Watcher *actor.PID
	Id      string
}

func (m *Unwatch) Reset()          { *m = Unwatch{} }
func (m *Unwatch) String() string  { return "Unwatch{" + m.Id + "}" }
func (m *Unwatch) ProtoMessage()   {}
func (m *Unwatch) WireName() string { return "remote.Unwatch" }

func (m *Unwatch) MarshalVT() ([]byte, error) {
	return (*Watch)(m).MarshalVT()
}

func (m *Unwatch) UnmarshalVT(data []byte) error {
	return (*Watch)(m).UnmarshalVT(data)
}

// Terminated is delivered over the wire when a watched actor stops or
// its node becomes unreachable.
type Terminated struct {
	Who               *actor.PID
	AddressTerminated bool
}

func (m *Terminated) Reset()         { *m = Terminated{} }
func (m *Terminated) String() string { return fmt.Sprintf("Terminated{%s addrTerm=%v}", m.Who, m.AddressTerminated) }
func (m *Terminated) ProtoMessage()  {}
func (m *Terminated) WireName() string { return "remote.Terminated" }

func (m *Terminated) MarshalVT() ([]byte, error) {
	wb, err := m.Who.MarshalVT()
	if err != nil {
		return nil, err
	}
	buf := appendBytes(nil, wb)
	if m.AddressTerminated {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf, nil
}

func (m *Terminated) UnmarshalVT(data []byte) error {
	wb, data, err := readBytes(data)
	if err != nil {
		return fmt.Errorf("remote: decode Terminated.Who: %w", err)
	}
	pid := &actor.PID{}
	if err := pid.UnmarshalVT(wb); err != nil {
		return err
	}
	if len(data) != 1 {
		return fmt.Errorf("remote: Terminated missing flag byte")
	}
	m.Who = pid
	m.AddressTerminated = data[0] == 1
	return nil
}

// ActorPidRequest asks a peer's activator to spawn kind under name.
type ActorPidRequest struct {
	Name string
	Kind string
}

func (m *ActorPidRequest) Reset()         { *m = ActorPidRequest{} }
func (m *ActorPidRequest) String() string { return "ActorPidRequest{" + m.Kind + "/" + m.Name + "}" }
func (m *ActorPidRequest) ProtoMessage()  {}
func (m *ActorPidRequest) WireName() string { return "remote.ActorPidRequest" }

func (m *ActorPidRequest) MarshalVT() ([]byte, error) {
	buf := appendString(nil, m.Name)
	buf = appendString(buf, m.Kind)
	return buf, nil
}

func (m *ActorPidRequest) UnmarshalVT(data []byte) error {
	name, data, err := readString(data)
	if err != nil {
		return fmt.Errorf("remote: decode ActorPidRequest.Name: %w", err)
	}
	kind, data, err := readString(data)
	if err != nil {
		return fmt.Errorf("remote: decode ActorPidRequest.Kind: %w", err)
	}
	if len(data) != 0 {
		return fmt.Errorf("remote: ActorPidRequest has %d trailing bytes", len(data))
	}
	m.Name = name
	m.Kind = kind
	return nil
}

// ActorPidResponse answers an ActorPidRequest.
type ActorPidResponse struct {
	Pid        *actor.PID
	StatusCode StatusCode
}

func (m *ActorPidResponse) Reset()         { *m = ActorPidResponse{} }
func (m *ActorPidResponse) String() string { return fmt.Sprintf("ActorPidResponse{%s %s}", m.Pid, m.StatusCode) }
func (m *ActorPidResponse) ProtoMessage()  {}
func (m *ActorPidResponse) WireName() string { return "remote.ActorPidResponse" }

func (m *ActorPidResponse) MarshalVT() ([]byte, error) {
	var pb []byte
	var err error
	if m.Pid != nil {
		pb, err = m.Pid.MarshalVT()
		if err != nil {
			return nil, err
		}
	}
	buf := appendBytes(nil, pb)
	buf = appendVarint(buf, uint64(m.StatusCode))
	return buf, nil
}

func (m *ActorPidResponse) UnmarshalVT(data []byte) error {
	pb, data, err := readBytes(data)
	if err != nil {
		return fmt.Errorf("remote: decode ActorPidResponse.Pid: %w", err)
	}
	if len(pb) > 0 {
		pid := &actor.PID{}
		if err := pid.UnmarshalVT(pb); err != nil {
			return err
		}
		m.Pid = pid
	}
	v, data, err := readVarint(data)
	if err != nil {
		return fmt.Errorf("remote: decode ActorPidResponse.StatusCode: %w", err)
	}
	if len(data) != 0 {
		return fmt.Errorf("remote: ActorPidResponse has %d trailing bytes", len(data))
	}
	m.StatusCode = StatusCode(v)
	return nil
}

// --- shared length/varint-prefixed primitives, extending actor.PID's
// own MarshalVT convention to composite wire frames. ---

func appendVarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

func readVarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("remote: malformed varint")
	}
	return v, data[n:], nil
}

func appendBytes(buf, b []byte) []byte {
	buf = appendVarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readBytes(data []byte) ([]byte, []byte, error) {
	n, data, err := readVarint(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(data)) < n {
		return nil, nil, fmt.Errorf("remote: short buffer: need %d bytes, have %d", n, len(data))
	}
	return data[:n], data[n:], nil
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func readString(data []byte) (string, []byte, error) {
	b, rest, err := readBytes(data)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}
