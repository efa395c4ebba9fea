// Package swarm implements the peer-discovery actor pipeline: Sockets,
// Receiver, Sender, Updater, and the Guardian that supervises them.
package swarm

import (
	"fmt"
	"math"
	"net"
	"sort"
	"time"

	"github.com/lanswarm/swarmdns/internal/errors"
)

// IPClass selects which address families a node binds.
type IPClass int

const (
	IPClassAuto IPClass = iota
	IPClassV4Only
	IPClassV6Only
	IPClassBothRequired
)

// Proto is the transport-suffix label in the service name
// (`_udp`/`_tcp`). It never selects the actual socket transport — mDNS
// discovery always runs over UDP regardless of Proto.
type Proto int

const (
	ProtoUDP Proto = iota
	ProtoTCP
)

func (p Proto) label() string {
	if p == ProtoTCP {
		return "_tcp"
	}
	return "_udp"
}

const (
	// DefaultCadence is τ, the nominal period between this node's own
	// queries.
	DefaultCadence = 10 * time.Second
	// DefaultResponseRate is φ in Hz.
	DefaultResponseRate = 1.0
)

// NodeConfig is the immutable-after-spawn configuration for one swarm
// member.
type NodeConfig struct {
	ServiceName  string
	Proto        Proto
	PeerID       string
	IPClass      IPClass
	Cadence      time.Duration
	ResponseRate float64
}

// Cutoff is ceil(τ·φ): the number of observed responses at which this
// node suppresses its own response. Spec explicitly requires ceil, never
// truncation — an earlier draft of this algorithm used int(τ·φ) and that
// is wrong, it undercounts the suppression target whenever τ·φ isn't a
// whole number.
func (c NodeConfig) Cutoff() int {
	v := c.Cadence.Seconds() * c.ResponseRate
	return int(math.Ceil(v))
}

// Validate checks the invariants the builder must enforce before spawn.
// τ·φ < 1 is a warning (Spawn logs it), not a validation failure —
// suppression still runs: Cutoff rounds τ·φ up to at least 1, so the
// Sender suppresses after the first observed response.
func (c NodeConfig) Validate() error {
	if c.ServiceName == "" {
		return &errors.ConfigError{Field: "ServiceName", Value: c.ServiceName, Message: "service name cannot be empty"}
	}
	if !isValidDNSLabel(c.ServiceName) {
		return &errors.ConfigError{Field: "ServiceName", Value: c.ServiceName, Message: "cannot form a legal DNS label"}
	}
	if c.PeerID == "" {
		return &errors.ConfigError{Field: "PeerID", Value: c.PeerID, Message: "peer id cannot be empty"}
	}
	if !isValidDNSLabel(c.PeerID) {
		return &errors.ConfigError{Field: "PeerID", Value: c.PeerID, Message: "cannot form a legal DNS label"}
	}
	if c.Cadence <= 0 {
		return &errors.ConfigError{Field: "Cadence", Value: c.Cadence, Message: "cadence must be positive"}
	}
	if c.ResponseRate <= 0 {
		return &errors.ConfigError{Field: "ResponseRate", Value: c.ResponseRate, Message: "response rate must be positive"}
	}
	return nil
}

// isValidDNSLabel reports whether s can stand alone as a single RFC 1035
// §3.1 DNS label: 1-63 bytes, ASCII letters/digits/hyphen/underscore,
// hyphen never first or last. ServiceName and PeerID both end up as
// label components of names this node emits on the wire (ServiceName in
// the strictly-encoded PTR query name; PeerID in the per-port SRV target
// `<peer_id>-<port>.local.`, which — unlike the service-instance owner
// name — is not given RFC 6763 §4.3's arbitrary-UTF-8 treatment), so
// both must satisfy the strict label grammar or BuildResponsePacket
// would fail silently every cycle after a Spawn that should have been
// rejected instead.
func isValidDNSLabel(s string) bool {
	if len(s) == 0 || len(s) > 63 {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		valid := (ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '_'
		if !valid {
			return false
		}
		if ch == '-' && (i == 0 || i == len(s)-1) {
			return false
		}
	}
	return true
}

// ServiceFQDN is `_<service>.<_udp|_tcp>.local.`, the PTR query name.
func (c NodeConfig) ServiceFQDN() string {
	return fmt.Sprintf("_%s.%s.local.", c.ServiceName, c.Proto.label())
}

// InstanceFQDN is `<peer_id>._<service>.<_udp|_tcp>.local.`, the SRV/TXT
// owner name this node answers under.
func (c NodeConfig) InstanceFQDN() string {
	return fmt.Sprintf("%s._%s.%s.local.", c.PeerID, c.ServiceName, c.Proto.label())
}

// HostFQDN is the per-port SRV target `<peer_id>-<port>.local.`. One
// target per advertised port lets A/AAAA additionals join back to the
// exact (addr, port) pair they belong to.
func (c NodeConfig) HostFQDN(port uint16) string {
	return fmt.Sprintf("%s-%d.local.", c.PeerID, port)
}

// AddrPort is a comparable (net.IP, port) pair usable as a map key.
// net.IP itself isn't comparable reliably across 4-in-16 vs 4-byte
// representations, so the IP is normalized and stored as its string
// form.
type AddrPort struct {
	Addr string
	Port uint16
}

func NewAddrPort(ip net.IP, port uint16) AddrPort {
	return AddrPort{Addr: ip.String(), Port: port}
}

func (ap AddrPort) IP() net.IP {
	return net.ParseIP(ap.Addr)
}

func (ap AddrPort) IsV6() bool {
	ip := ap.IP()
	return ip != nil && ip.To4() == nil
}

// LocalAdvertisement is the mutable set of addresses and attributes this
// node publishes. It is owned exclusively by the Sender actor; every
// mutation arrives as a control message, never a direct call from
// another goroutine.
type LocalAdvertisement struct {
	addrs map[AddrPort]struct{}
	attrs map[string]*string
}

func NewLocalAdvertisement() *LocalAdvertisement {
	return &LocalAdvertisement{
		addrs: make(map[AddrPort]struct{}),
		attrs: make(map[string]*string),
	}
}

// AddAddr records one (port, addr) pair. Idempotent: adding the same
// pair twice leaves the set unchanged.
func (la *LocalAdvertisement) AddAddr(port uint16, addr net.IP) {
	la.addrs[NewAddrPort(addr, port)] = struct{}{}
}

// RemovePort drops every address advertised under port. Idempotent.
func (la *LocalAdvertisement) RemovePort(port uint16) {
	for ap := range la.addrs {
		if ap.Port == port {
			delete(la.addrs, ap)
		}
	}
}

// RemoveAddr drops every (port, addr) pair whose address equals addr,
// regardless of port. Idempotent.
func (la *LocalAdvertisement) RemoveAddr(addr net.IP) {
	norm := addr.String()
	for ap := range la.addrs {
		if ap.Addr == norm {
			delete(la.addrs, ap)
		}
	}
}

// RemoveAll clears every advertised address. Idempotent.
func (la *LocalAdvertisement) RemoveAll() {
	la.addrs = make(map[AddrPort]struct{})
}

// SetAttr sets or clears a TXT attribute. value == nil means a
// value-less flag (`key` with no `=value`).
func (la *LocalAdvertisement) SetAttr(key string, value *string) {
	la.attrs[key] = value
}

// RemoveAttr removes a TXT attribute by key. Idempotent.
func (la *LocalAdvertisement) RemoveAttr(key string) {
	delete(la.attrs, key)
}

// ValidateAttr enforces the length budget: len(key)+len(value) ≤ 254
// bytes, and a non-empty key. This runs synchronously at the public
// handle, before the SetTXT control message is ever enqueued.
func ValidateAttr(key string, value *string) error {
	if key == "" {
		return &errors.ValidationError{Field: "key", Value: key, Message: "attribute key cannot be empty"}
	}
	total := len(key)
	if value != nil {
		total += len(*value)
	}
	if total > 254 {
		return &errors.ValidationError{Field: "attribute", Value: total, Message: "key+value length exceeds 254 bytes"}
	}
	return nil
}

// Ports returns the distinct advertised ports in ascending order
// (sorting makes the response deterministic for tests).
func (la *LocalAdvertisement) Ports() []uint16 {
	seen := make(map[uint16]struct{})
	for ap := range la.addrs {
		seen[ap.Port] = struct{}{}
	}
	ports := make([]uint16, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

// AddrsForPort returns the sorted address list for one advertised port.
func (la *LocalAdvertisement) AddrsForPort(port uint16) []net.IP {
	var ips []net.IP
	for ap := range la.addrs {
		if ap.Port == port {
			ips = append(ips, ap.IP())
		}
	}
	sort.Slice(ips, func(i, j int) bool { return ips[i].String() < ips[j].String() })
	return ips
}

// IsEmpty reports whether this node currently advertises no addresses —
// the Sender uses this to decide whether it has anything to respond
// with.
func (la *LocalAdvertisement) IsEmpty() bool {
	return len(la.addrs) == 0
}

// Attrs returns a copy of the attribute map, safe to hand to the record
// builder or a test assertion. Iteration order of the copy is not defined.
func (la *LocalAdvertisement) Attrs() map[string]*string {
	out := make(map[string]*string, len(la.attrs))
	for k, v := range la.attrs {
		out[k] = v
	}
	return out
}
