package transport

import (
	"context"
	"net"
	"sync"

	"github.com/lanswarm/swarmdns/internal/errors"
)

// MockTransport is a Transport test double. It records every Send() call
// for assertions and lets tests feed canned inbound packets to Receive()
// via Enqueue, so the swarm actors can be exercised without a real socket.
type MockTransport struct {
	mu        sync.Mutex
	sendCalls []SendCall
	closed    bool
	inbound   chan inboundPacket
}

// SendCall records a single Send() invocation.
type SendCall struct {
	Packet []byte
	Dest   net.Addr
}

type inboundPacket struct {
	packet []byte
	from   net.Addr
	err    error
}

// NewMockTransport creates a new mock transport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		sendCalls: make([]SendCall, 0),
		inbound:   make(chan inboundPacket, 64),
	}
}

// Send records the call for verification; it never errors.
func (m *MockTransport) Send(_ context.Context, packet []byte, dest net.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendCalls = append(m.sendCalls, SendCall{
		Packet: append([]byte(nil), packet...),
		Dest:   dest,
	})
	return nil
}

// Enqueue stages a packet to be returned by a future Receive call, as if
// it arrived from addr.
func (m *MockTransport) Enqueue(packet []byte, from net.Addr) {
	m.inbound <- inboundPacket{packet: packet, from: from}
}

// EnqueueError stages a Receive call that returns err.
func (m *MockTransport) EnqueueError(err error) {
	m.inbound <- inboundPacket{err: err}
}

// Receive returns the next enqueued packet, blocking until one is
// available or ctx is done.
func (m *MockTransport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	select {
	case p := <-m.inbound:
		if p.err != nil {
			return nil, nil, p.err
		}
		return p.packet, p.from, nil
	case <-ctx.Done():
		return nil, nil, &errors.NetworkError{Operation: "receive", Err: ctx.Err(), Details: "context canceled"}
	}
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// SendCalls returns a copy of every recorded Send() call.
func (m *MockTransport) SendCalls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]SendCall, len(m.sendCalls))
	copy(calls, m.sendCalls)
	return calls
}
