package remote

import (
	"context"
	"errors"

	"storj.io/drpc"
	"storj.io/drpc/drpcmux"
)

// drpc_service.go hand-authors the client/server glue protoc-gen-go-drpc
// would normally generate from a remote.proto service definition. No
// protoc toolchain is available in this environment, so the shapes
// below are written directly against storj.io/drpc's public Conn/
// Stream/Encoding/Mux contract, following the same naming convention
// (DRPC<Service>Client, DRPC<Service>_<Method>Stream,
// DRPCRegister<Service>) the generator produces.

const serviceRemote = "remote.Remote"
const methodReceive = "/remote.Remote/Receive"

// wireEncoding adapts the MarshalVT/UnmarshalVT convention (the same
// one Registry's binary serializer relies on) to drpc.Encoding so drpc
// can marshal/unmarshal our hand-authored wire.go types without
// protobuf reflection.
type wireEncoding struct{}

func (wireEncoding) Marshal(msg drpc.Message) ([]byte, error) {
	m, ok := msg.(VTMarshaler)
	if !ok {
		return nil, errNotVTMessage(msg)
	}
	return m.MarshalVT()
}

func (wireEncoding) Unmarshal(buf []byte, msg drpc.Message) error {
	m, ok := msg.(VTUnmarshaler)
	if !ok {
		return errNotVTMessage(msg)
	}
	return m.UnmarshalVT(buf)
}

func errNotVTMessage(msg drpc.Message) error {
	return &unsupportedMessageError{msg: msg}
}

type unsupportedMessageError struct{ msg drpc.Message }

func (e *unsupportedMessageError) Error() string {
	return "remote: message does not implement the vtprotobuf marshal/unmarshal convention"
}

// DRPCRemote_ReceiveStream is the bidirectional stream both the writer
// (as client) and the reader (as server) drive: the client sends the
// one-time Connect handshake first, then only ever Envelope frames,
// per spec.md §4.4/§6.
type DRPCRemote_ReceiveStream interface {
	Context() context.Context
	Send(msg drpc.Message) error
	RecvConnect() (*Connect, error)
	Recv() (*Envelope, error)
	Close() error
	CloseSend() error
}

type drpcRemoteReceiveStream struct {
	drpc.Stream
}

func (s *drpcRemoteReceiveStream) Send(msg drpc.Message) error {
	return s.Stream.MsgSend(msg, wireEncoding{})
}

func (s *drpcRemoteReceiveStream) RecvConnect() (*Connect, error) {
	conn := &Connect{}
	if err := s.Stream.MsgRecv(conn, wireEncoding{}); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *drpcRemoteReceiveStream) Recv() (*Envelope, error) {
	env := &Envelope{}
	if err := s.Stream.MsgRecv(env, wireEncoding{}); err != nil {
		return nil, err
	}
	return env, nil
}

// DRPCRemoteClient is the client side handed to a writer to open the
// stream the endpoint reader on the peer will serve.
type DRPCRemoteClient interface {
	DRPCConn() drpc.Conn
	Receive(ctx context.Context, advertisedAddress string) (DRPCRemote_ReceiveStream, error)
}

type drpcRemoteClient struct {
	cc drpc.Conn
}

// NewDRPCRemoteClient wraps an established drpc.Conn (e.g. one built by
// drpcconn.NewWithOptions over a dialed net.Conn).
func NewDRPCRemoteClient(cc drpc.Conn) DRPCRemoteClient {
	return &drpcRemoteClient{cc: cc}
}

func (c *drpcRemoteClient) DRPCConn() drpc.Conn { return c.cc }

// Receive opens the stream and sends the Connect handshake carrying
// this node's advertised address, per spec.md §4.3/§4.4, before
// returning the stream for Envelope traffic.
func (c *drpcRemoteClient) Receive(ctx context.Context, advertisedAddress string) (DRPCRemote_ReceiveStream, error) {
	stream, err := c.cc.NewStream(ctx, methodReceive, wireEncoding{})
	if err != nil {
		return nil, err
	}
	if err := stream.MsgSend(&Connect{Address: advertisedAddress}, wireEncoding{}); err != nil {
		return nil, err
	}
	return &drpcRemoteReceiveStream{Stream: stream}, nil
}

// DRPCRemoteServer is implemented by whatever accepts inbound Receive
// streams — endpointReader in endpoint_reader.go.
type DRPCRemoteServer interface {
	Receive(DRPCRemote_ReceiveStream) error
}

// DRPCRemoteUnimplementedServer can be embedded to satisfy
// DRPCRemoteServer while only overriding the methods actually needed,
// matching the generator's usual unimplemented-server stub.
type DRPCRemoteUnimplementedServer struct{}

func (DRPCRemoteUnimplementedServer) Receive(DRPCRemote_ReceiveStream) error {
	return errors.New("remote.Remote.Receive not implemented")
}

// drpcRemoteDescription implements drpcmux.Description for the single
// streaming RPC this service exposes.
type drpcRemoteDescription struct{ srv DRPCRemoteServer }

func (drpcRemoteDescription) NumMethods() int { return 1 }

func (d drpcRemoteDescription) Method(n int) (string, drpcmux.Handler, interface{}, bool) {
	if n != 0 {
		return "", nil, nil, false
	}
	handler := func(srv interface{}, ctx context.Context, in1, in2 interface{}) (drpc.Message, error) {
		impl := srv.(DRPCRemoteServer)
		stream := in1.(drpc.Stream)
		return nil, impl.Receive(&drpcRemoteReceiveStream{Stream: stream})
	}
	return methodReceive, handler, d.srv, true
}

// DRPCRegisterRemote wires impl into mux under the Remote service name,
// mirroring the generator's DRPCRegister<Service> function.
func DRPCRegisterRemote(mux *drpcmux.Mux, impl DRPCRemoteServer) error {
	return mux.Register(impl, drpcRemoteDescription{srv: impl})
}
