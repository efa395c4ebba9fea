package swarm

import (
	"context"
	"net"

	"github.com/lanswarm/swarmdns/internal/errors"
	"github.com/lanswarm/swarmdns/internal/protocol"
	"github.com/lanswarm/swarmdns/internal/transport"
)

// Sockets binds up to two multicast transports, one per address family,
// per the configured IPClass. In auto mode it succeeds if at least one
// family binds; in an explicit mode every requested family must bind.
type Sockets struct {
	V4 transport.Transport
	V6 transport.Transport
}

// openV4 and openV6 are the seams tests substitute to avoid real sockets.
// A failed open returns a nil interface, never a nil *UDPv4Transport or
// *UDPv6Transport wrapped in a non-nil one.
var (
	openV4 = func() (transport.Transport, error) {
		tr, err := transport.NewUDPv4Transport()
		if err != nil {
			return nil, err
		}
		return tr, nil
	}
	openV6 = func() (transport.Transport, error) {
		tr, err := transport.NewUDPv6Transport()
		if err != nil {
			return nil, err
		}
		return tr, nil
	}
)

// OpenSockets binds the transports required by cls, following the
// selection policy in the contract: auto tries both and needs only one;
// every explicit mode needs everything it names.
func OpenSockets(cls IPClass) (*Sockets, error) {
	var v4, v6 transport.Transport
	var v4err, v6err error

	switch cls {
	case IPClassV4Only:
		v4, v4err = openV4()
		if v4err != nil {
			return nil, cannotBind(v4err, nil)
		}
	case IPClassV6Only:
		v6, v6err = openV6()
		if v6err != nil {
			return nil, cannotBind(nil, v6err)
		}
	case IPClassBothRequired:
		v4, v4err = openV4()
		v6, v6err = openV6()
		if v4err != nil || v6err != nil {
			if v4 != nil {
				_ = v4.Close()
			}
			if v6 != nil {
				_ = v6.Close()
			}
			return nil, cannotBind(v4err, v6err)
		}
	default: // IPClassAuto
		v4, v4err = openV4()
		v6, v6err = openV6()
		if v4err != nil && v6err != nil {
			return nil, cannotBind(v4err, v6err)
		}
	}

	return &Sockets{V4: v4, V6: v6}, nil
}

func cannotBind(v4err, v6err error) error {
	return &errors.ConfigError{
		Field:   "IPClass",
		Value:   nil,
		Message: "CannotBind: " + firstErr(v4err, v6err).Error(),
	}
}

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}

// Close releases every bound transport.
func (s *Sockets) Close() {
	if s.V4 != nil {
		_ = s.V4.Close()
	}
	if s.V6 != nil {
		_ = s.V6.Close()
	}
}

// Send writes packet to the multicast group on the requested family,
// falling back to whichever family is actually bound. FamilyAny prefers
// v4.
func (s *Sockets) Send(ctx context.Context, packet []byte, family Family) error {
	switch family {
	case FamilyV6:
		if s.V6 != nil {
			return s.V6.Send(ctx, packet, protocol.MulticastGroupIPv6())
		}
		if s.V4 != nil {
			return s.V4.Send(ctx, packet, protocol.MulticastGroupIPv4())
		}
	default:
		if s.V4 != nil {
			return s.V4.Send(ctx, packet, protocol.MulticastGroupIPv4())
		}
		if s.V6 != nil {
			return s.V6.Send(ctx, packet, protocol.MulticastGroupIPv6())
		}
	}
	return &errors.NetworkError{Operation: "send", Err: net.ErrClosed, Details: "no transport bound for requested family"}
}
