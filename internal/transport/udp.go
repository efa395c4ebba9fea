package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv4"

	"github.com/lanswarm/swarmdns/internal/errors"
	"github.com/lanswarm/swarmdns/internal/protocol"
)

// UDPv4Transport is the IPv4 multicast transport. One instance is bound
// per swarm member when its configured IPClass admits IPv4.
type UDPv4Transport struct {
	conn net.PacketConn
	pc   *ipv4.PacketConn
}

// NewUDPv4Transport creates a UDP multicast transport bound to mDNS port
// 5353 / 224.0.0.251, with SO_REUSEADDR/SO_REUSEPORT applied via the
// platform control hook so the process can coexist with other mDNS
// implementations (Avahi, Bonjour, systemd-resolved) on the same host.
func NewUDPv4Transport() (*UDPv4Transport, error) {
	lc := net.ListenConfig{Control: PlatformControl}

	pconn, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("", strconv.Itoa(protocol.Port)))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind udp4 port %d", protocol.Port),
		}
	}

	udpConn, ok := pconn.(*net.UDPConn)
	if !ok {
		_ = pconn.Close()
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       fmt.Errorf("unexpected connection type %T", pconn),
		}
	}

	pc := ipv4.NewPacketConn(udpConn)

	group := protocol.MulticastGroupIPv4()
	ifaces, err := multicastInterfaces()
	if err != nil {
		_ = udpConn.Close()
		return nil, &errors.NetworkError{Operation: "enumerate interfaces", Err: err}
	}
	joined := false
	for _, ifi := range ifaces {
		if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err == nil {
			joined = true
		}
	}
	if !joined {
		if err := pc.JoinGroup(nil, &net.UDPAddr{IP: group.IP}); err != nil {
			_ = udpConn.Close()
			return nil, &errors.NetworkError{
				Operation: "join multicast group",
				Err:       err,
				Details:   fmt.Sprintf("failed to join %s", protocol.MulticastAddrIPv4),
			}
		}
	}

	if err := pc.SetMulticastTTL(protocol.MulticastTTLv4); err != nil {
		_ = udpConn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast ttl", Err: err}
	}
	_ = pc.SetMulticastLoopback(true)

	if err := udpConn.SetReadBuffer(65536); err != nil {
		_ = udpConn.Close()
		return nil, &errors.NetworkError{
			Operation: "configure socket",
			Err:       err,
			Details:   "failed to set read buffer size",
		}
	}

	return &UDPv4Transport{conn: udpConn, pc: pc}, nil
}

// multicastInterfaces returns the set of interfaces that support
// multicast, so group membership is joined on every live NIC rather
// than just the OS default route.
func multicastInterfaces() ([]*net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []*net.Interface
	for i := range all {
		ifi := all[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		out = append(out, &ifi)
	}
	return out, nil
}

// Send transmits a packet to the given destination. The swarm only ever
// passes the mDNS multicast group; there is no unicast response path.
func (t *UDPv4Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
	select {
	case <-ctx.Done():
		return &errors.NetworkError{Operation: "send", Err: ctx.Err(), Details: "context canceled before send"}
	default:
	}

	n, err := t.conn.WriteTo(packet, dest)
	if err != nil {
		return &errors.NetworkError{
			Operation: "send",
			Err:       err,
			Details:   fmt.Sprintf("failed to send %d bytes to %s", len(packet), dest),
		}
	}
	if n != len(packet) {
		return &errors.NetworkError{
			Operation: "send",
			Err:       fmt.Errorf("partial write: %d/%d bytes", n, len(packet)),
			Details:   "incomplete transmission",
		}
	}
	return nil
}

// Receive waits for one inbound datagram, honoring ctx's deadline.
func (t *UDPv4Transport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	select {
	case <-ctx.Done():
		return nil, nil, &errors.NetworkError{Operation: "receive", Err: ctx.Err(), Details: "context canceled before receive"}
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return nil, nil, &errors.NetworkError{
				Operation: "set read deadline",
				Err:       err,
				Details:   fmt.Sprintf("failed to set deadline %v", deadline),
			}
		}
	}

	bufPtr := GetBuffer()
	defer PutBuffer(bufPtr)
	buffer := *bufPtr

	n, srcAddr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, &errors.NetworkError{Operation: "receive", Err: err, Details: "timeout"}
		}
		return nil, nil, &errors.NetworkError{Operation: "receive", Err: err, Details: "failed to read from socket"}
	}

	result := make([]byte, n)
	copy(result, buffer[:n])
	return result, srcAddr, nil
}

// Close releases the underlying socket.
func (t *UDPv4Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return &errors.NetworkError{Operation: "close socket", Err: err, Details: "failed to close udp4 connection"}
	}
	return nil
}
