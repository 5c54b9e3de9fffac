package actor

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// pidSeparator separates the address and the id inside a PID's string form.
const pidSeparator = "/"

// PID is a process identifier: an address naming a node (this process's
// own advertised address, or a peer's) plus an id naming a process at
// that address. PIDs are values — they are freely copied, embedded in
// messages, and compared by Equals.
type PID struct {
	Address string
	ID      string
}

// NewPID returns a new process identifier for the given address and id.
func NewPID(address, id string) *PID {
	return &PID{Address: address, ID: id}
}

// WireName is the fully-qualified wire type name the serialization
// registry pre-registers a PID decoder under (spec.md §4.1, §6).
func (pid *PID) WireName() string { return "actor.PID" }

// Reset, String and ProtoMessage give *PID the same method set
// protoc-gen-go would generate for a message type, matching the
// hand-authored frame types in remote/wire.go.
func (pid *PID) Reset() { *pid = PID{} }

func (pid *PID) ProtoMessage() {}

// String returns the canonical "address/id" representation of a PID.
func (pid *PID) String() string {
	return pid.Address + pidSeparator + pid.ID
}

// Equals reports whether two PIDs name the same process.
func (pid *PID) Equals(other *PID) bool {
	if pid == nil || other == nil {
		return pid == other
	}
	return pid.Address == other.Address && pid.ID == other.ID
}

// Child derives a child PID by appending id to the parent's id.
func (pid *PID) Child(id string) *PID {
	return NewPID(pid.Address, pid.ID+pidSeparator+id)
}

// LookupKey returns an xxh3 hash of the PID's address and id, suitable
// for using a PID as a map key on hot paths.
func (pid *PID) LookupKey() uint64 {
	key := make([]byte, 0, len(pid.Address)+len(pid.ID))
	key = append(key, pid.Address...)
	key = append(key, pid.ID...)
	return xxh3.Hash(key)
}

// Clone returns a deep copy of the PID.
func (pid *PID) Clone() *PID {
	if pid == nil {
		return nil
	}
	return &PID{Address: pid.Address, ID: pid.ID}
}

// MarshalVT hand-encodes the PID as a length-prefixed pair of strings.
// It exists so *PID satisfies the VTMarshaler convention used throughout
// remote/serializer.go and remote/wire.go without depending on generated
// protobuf code for such a small, fixed-shape message.
func (pid *PID) MarshalVT() ([]byte, error) {
	if pid == nil {
		return nil, nil
	}
	buf := make([]byte, 0, 4+len(pid.Address)+4+len(pid.ID))
	buf = appendLenPrefixed(buf, pid.Address)
	buf = appendLenPrefixed(buf, pid.ID)
	return buf, nil
}

// UnmarshalVT decodes bytes produced by MarshalVT.
func (pid *PID) UnmarshalVT(data []byte) error {
	addr, rest, err := readLenPrefixed(data)
	if err != nil {
		return fmt.Errorf("pid: decode address: %w", err)
	}
	id, rest, err := readLenPrefixed(rest)
	if err != nil {
		return fmt.Errorf("pid: decode id: %w", err)
	}
	if len(rest) != 0 {
		return fmt.Errorf("pid: %d trailing bytes", len(rest))
	}
	pid.Address = addr
	pid.ID = id
	return nil
}

func appendLenPrefixed(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func readLenPrefixed(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("short buffer: need 4 length bytes, have %d", len(data))
	}
	n := int(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) < n {
		return "", nil, fmt.Errorf("short buffer: need %d bytes, have %d", n, len(data))
	}
	return string(data[:n]), data[n:], nil
}
