package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/ipv6"

	"github.com/lanswarm/swarmdns/internal/errors"
	"github.com/lanswarm/swarmdns/internal/protocol"
)

// UDPv6Transport is the IPv6 multicast transport, bound to ff02::fb.
// It mirrors UDPv4Transport; the two are kept as separate types rather
// than parameterized over family because the ipv4/ipv6 packages expose
// distinct PacketConn wrappers with distinct option sets (hop limit vs
// TTL, interface-scoped joins being mandatory for link-local groups).
type UDPv6Transport struct {
	conn net.PacketConn
	pc   *ipv6.PacketConn
}

// NewUDPv6Transport creates a UDP multicast transport bound to mDNS port
// 5353 / ff02::fb. Link-local IPv6 multicast requires joining on specific
// interfaces; unlike v4 there is no "join on the default interface"
// fallback, so every up, multicast-capable interface is joined explicitly.
func NewUDPv6Transport() (*UDPv6Transport, error) {
	lc := net.ListenConfig{Control: PlatformControl}

	pconn, err := lc.ListenPacket(context.Background(), "udp6", net.JoinHostPort("", strconv.Itoa(protocol.Port)))
	if err != nil {
		return nil, &errors.NetworkError{
			Operation: "create socket",
			Err:       err,
			Details:   fmt.Sprintf("failed to bind udp6 port %d", protocol.Port),
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

	pc := ipv6.NewPacketConn(udpConn)

	group := protocol.MulticastGroupIPv6()
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
		_ = udpConn.Close()
		return nil, &errors.NetworkError{
			Operation: "join multicast group",
			Err:       fmt.Errorf("no usable multicast interface"),
			Details:   fmt.Sprintf("failed to join %s on any interface", protocol.MulticastAddrIPv6),
		}
	}

	if err := pc.SetMulticastHopLimit(protocol.MulticastTTLv4); err != nil {
		_ = udpConn.Close()
		return nil, &errors.NetworkError{Operation: "set multicast hop limit", Err: err}
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

	return &UDPv6Transport{conn: udpConn, pc: pc}, nil
}

func (t *UDPv6Transport) Send(ctx context.Context, packet []byte, dest net.Addr) error {
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

func (t *UDPv6Transport) Receive(ctx context.Context) ([]byte, net.Addr, error) {
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

func (t *UDPv6Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return &errors.NetworkError{Operation: "close socket", Err: err, Details: "failed to close udp6 connection"}
	}
	return nil
}
