package swarm

import (
	"fmt"
	"log"
	"net"
	"time"

	iswarm "github.com/lanswarm/swarmdns/internal/swarm"
)

// Peer is an observed swarm member as delivered to the callback passed
// to Spawn.
type Peer = iswarm.Peer

// IPClass selects which address families a node binds its sockets on.
type IPClass = iswarm.IPClass

const (
	// IPClassAuto binds whichever of IPv4/IPv6 is available and succeeds
	// if at least one does. This is the default.
	IPClassAuto = iswarm.IPClassAuto
	// IPClassV4Only binds IPv4 only and fails if it cannot.
	IPClassV4Only = iswarm.IPClassV4Only
	// IPClassV6Only binds IPv6 only and fails if it cannot.
	IPClassV6Only = iswarm.IPClassV6Only
	// IPClassBothRequired binds both families and fails unless both
	// succeed.
	IPClassBothRequired = iswarm.IPClassBothRequired
)

// Proto is the transport-suffix label in the service's DNS name
// (`_udp`/`_tcp`). It labels the advertised service; it never changes
// the transport discovery itself runs over, which is always UDP
// multicast.
type Proto = iswarm.Proto

const (
	ProtoUDP = iswarm.ProtoUDP
	ProtoTCP = iswarm.ProtoTCP
)

// Option is a functional option for configuring a Builder.
//
// Example:
//
//	b := swarm.NewBuilder("myapp", "node-7", swarm.WithCadence(5*time.Second))
type Option func(*Builder) error

// Builder accumulates a node's configuration and initial advertisement
// before Spawn constructs and starts the actor pipeline.
type Builder struct {
	cfg     iswarm.NodeConfig
	initial *iswarm.LocalAdvertisement
	logger  *log.Logger
	err     error
}

// NewBuilder starts a Builder for a node advertising serviceName and
// identifying itself as peerID. Defaults: Proto UDP, IPClassAuto,
// a 10 second cadence, and a response rate of 1 Hz.
func NewBuilder(serviceName, peerID string, opts ...Option) *Builder {
	b := &Builder{
		cfg: iswarm.NodeConfig{
			ServiceName:  serviceName,
			PeerID:       peerID,
			Proto:        iswarm.ProtoUDP,
			IPClass:      iswarm.IPClassAuto,
			Cadence:      iswarm.DefaultCadence,
			ResponseRate: iswarm.DefaultResponseRate,
		},
		initial: iswarm.NewLocalAdvertisement(),
		logger:  log.New(noopWriter{}, "", 0),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.err = err
		}
	}
	return b
}

// WithProto sets the `_udp`/`_tcp` service-name suffix.
func WithProto(p Proto) Option {
	return func(b *Builder) error {
		b.cfg.Proto = p
		return nil
	}
}

// WithIPClass sets the socket-binding policy.
func WithIPClass(cls IPClass) Option {
	return func(b *Builder) error {
		b.cfg.IPClass = cls
		return nil
	}
}

// WithCadence sets τ, the nominal period between this node's own
// queries.
func WithCadence(cadence time.Duration) Option {
	return func(b *Builder) error {
		b.cfg.Cadence = cadence
		return nil
	}
}

// WithResponseRate sets φ, the target aggregate response rate in Hz
// used to derive the suppression cutoff ceil(τ·φ).
func WithResponseRate(rate float64) Option {
	return func(b *Builder) error {
		b.cfg.ResponseRate = rate
		return nil
	}
}

// WithLogger directs diagnostic output (recv errors, dropped events,
// build failures) to logger instead of discarding it.
func WithLogger(logger *log.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		b.logger = logger
		return nil
	}
}

// WithAddr advertises one (port, address) pair from the moment the node
// spawns, before any external Add call.
func WithAddr(port uint16, addr net.IP) Option {
	return func(b *Builder) error {
		b.initial.AddAddr(port, addr)
		return nil
	}
}

// WithAttr sets one TXT attribute from the moment the node spawns.
// value == nil advertises a bare flag with no `=value`.
func WithAttr(key string, value *string) Option {
	return func(b *Builder) error {
		if err := iswarm.ValidateAttr(key, value); err != nil {
			return err
		}
		b.initial.SetAttr(key, value)
		return nil
	}
}

// Spawn validates the accumulated configuration, binds sockets, and
// starts the actor pipeline. callback is invoked once per observed
// peer event (new sighting, refreshed sighting, or expiry tombstone)
// from a single internal goroutine — it must return quickly and must
// not call back into the returned Guard synchronously, since the Guard's
// control channel is drained by that same goroutine's peers.
func (b *Builder) Spawn(callback func(Peer)) (*Guard, error) {
	if b.err != nil {
		return nil, b.err
	}
	if callback == nil {
		callback = func(Peer) {}
	}

	g, err := iswarm.Spawn(b.cfg, b.initial, callback, b.logger)
	if err != nil {
		return nil, err
	}
	return &Guard{g: g}, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
