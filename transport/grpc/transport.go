// Package grpc carries heartbeat digests and shutdown notices over
// gRPC. The service is registered through a hand-written ServiceDesc
// with a gob codec, so no generated protobuf code is involved.
package grpc

import (
	"bytes"
	"context"
	"encoding/gob"
	"net"
	"sync"

	"github.com/arya-analytics/pulse/internal/address"
	"github.com/arya-analytics/pulse/internal/beat"
	"github.com/arya-analytics/pulse/internal/pending"
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	codecName      = "pulse-gob"
	serviceName    = "pulse.v1.Disseminator"
	digestMethod   = "/pulse.v1.Disseminator/Digest"
	shutdownMethod = "/pulse.v1.Disseminator/Shutdown"
)

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes(), err
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (codec) Name() string { return codecName }

func init() { encoding.RegisterCodec(codec{}) }

// ack is the empty response unary gRPC forces us to return. It carries
// no acknowledgment semantics.
type ack struct{ OK bool }

// pool caches one client connection per destination address.
type pool struct {
	mu    sync.Mutex
	conns map[address.Address]*grpc.ClientConn
}

func newPool() *pool { return &pool{conns: make(map[address.Address]*grpc.ClientConn)} }

func (p *pool) acquire(addr address.Address) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.Dial(addr.String(), grpc.WithInsecure())
	if err != nil {
		return nil, errors.Wrapf(err, "grpc: failed to dial %s", addr)
	}
	p.conns[addr] = conn
	return conn, nil
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conn := range p.conns {
		_ = conn.Close()
	}
	p.conns = make(map[address.Address]*grpc.ClientConn)
}

type oneWay[M any] struct {
	pool   *pool
	method string

	mu      sync.RWMutex
	handler func(ctx context.Context, m M) error
}

func (u *oneWay[M]) Send(ctx context.Context, target address.Address, m M) error {
	conn, err := u.pool.acquire(target)
	if err != nil {
		return err
	}
	var res ack
	return conn.Invoke(ctx, u.method, &m, &res, grpc.CallContentSubtype(codecName))
}

func (u *oneWay[M]) Handle(handle func(ctx context.Context, m M) error) {
	u.mu.Lock()
	u.handler = handle
	u.mu.Unlock()
}

func (u *oneWay[M]) receive(ctx context.Context, m M) error {
	u.mu.RLock()
	handler := u.handler
	u.mu.RUnlock()
	if handler == nil {
		return errors.New("grpc: no handler bound")
	}
	return handler(ctx, m)
}

// Transport serves and sends disseminator traffic over gRPC.
type Transport struct {
	pool      *pool
	server    *grpc.Server
	listening chan struct{}
	digests   *oneWay[pending.Digest]
	shutdowns *oneWay[beat.Shutdown]
}

func New() *Transport {
	p := newPool()
	return &Transport{
		pool:      p,
		listening: make(chan struct{}),
		digests:   &oneWay[pending.Digest]{pool: p, method: digestMethod},
		shutdowns: &oneWay[beat.Shutdown]{pool: p, method: shutdownMethod},
	}
}

func (t *Transport) Digests() beat.DigestTransport { return t.digests }

func (t *Transport) Shutdowns() beat.ShutdownTransport { return t.shutdowns }

// WaitUntilListening blocks until Serve has begun accepting traffic.
func (t *Transport) WaitUntilListening(ctx context.Context) error {
	select {
	case <-t.listening:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve registers the disseminator service and serves on lis. Blocks
// until the server stops.
func (t *Transport) Serve(lis net.Listener) error {
	t.server = grpc.NewServer()
	t.server.RegisterService(&serviceDesc, t)
	close(t.listening)
	return t.server.Serve(lis)
}

// Close stops the server and tears down pooled client connections.
func (t *Transport) Close() {
	if t.server != nil {
		t.server.Stop()
	}
	t.pool.close()
}

type disseminatorServer interface{}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*disseminatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Digest", Handler: handleDigest},
		{MethodName: "Shutdown", Handler: handleShutdown},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pulse/v1/disseminator",
}

func handleDigest(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	_ grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var m pending.Digest
	if err := dec(&m); err != nil {
		return nil, err
	}
	return &ack{OK: true}, srv.(*Transport).digests.receive(ctx, m)
}

func handleShutdown(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	_ grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var m beat.Shutdown
	if err := dec(&m); err != nil {
		return nil, err
	}
	return &ack{OK: true}, srv.(*Transport).shutdowns.receive(ctx, m)
}
