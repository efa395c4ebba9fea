package transport

import (
	"context"
	"net"
)

// Transport abstracts a single-family multicast UDP socket so the swarm
// actors never touch net.PacketConn directly. Sockets wraps one Transport
// per bound address family; tests substitute MockTransport.
type Transport interface {
	Send(ctx context.Context, packet []byte, dest net.Addr) error
	Receive(ctx context.Context) ([]byte, net.Addr, error)
	Close() error
}
