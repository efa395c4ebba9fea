package swarm

import (
	"net"
	"strings"
	"time"

	"github.com/lanswarm/swarmdns/internal/message"
	"github.com/lanswarm/swarmdns/internal/protocol"
)

const classINMask = 0x7FFF // mask off the RFC 6762 §10.2 cache-flush bit

func classIs(class uint16, want protocol.DNSClass) bool {
	return (class & classINMask) == uint16(want)
}

// instanceSuffix is `._<service>.<_udp|_tcp>.local.`, everything after
// the peer id in an instance owner name.
func instanceSuffix(cfg NodeConfig) string {
	return "._" + cfg.ServiceName + "." + cfg.Proto.label() + ".local."
}

// fqdn returns name with a trailing dot. ParseName joins labels without
// one, while the names NodeConfig builds always end in ".".
func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// peerIDFromInstanceName extracts the peer id from an SRV/TXT owner
// name, or ("", false) if name doesn't belong to our service. Splitting
// on a known literal suffix (rather than re-walking the label list)
// means a peer id containing literal dots — legal since RFC 6763 §4.3
// lets the instance portion be one arbitrary-UTF-8 label — is recovered
// correctly even though ParseName has already joined every label with
// ".".
func peerIDFromInstanceName(cfg NodeConfig, name string) (string, bool) {
	suffix := instanceSuffix(cfg)
	name = fqdn(name)
	if !strings.HasSuffix(name, suffix) || len(name) <= len(suffix) {
		return "", false
	}
	return name[:len(name)-len(suffix)], true
}

// classifyQuery reports whether raw is a PTR query for our service, and
// if so which family it arrived on.
func classifyQuery(cfg NodeConfig, parsed *message.DNSMessage, family Family) *queryEvent {
	if !parsed.Header.IsQuery() {
		return nil
	}
	for _, q := range parsed.Questions {
		if classIs(q.QCLASS, protocol.ClassIN) && q.QTYPE == uint16(protocol.RecordTypePTR) && fqdn(q.QNAME) == cfg.ServiceFQDN() {
			return &queryEvent{family: family}
		}
	}
	return nil
}

type pendingTarget struct {
	peerID string
	port   uint16
}

// classifyResponse extracts every peer this response reveals about our
// service: SRV answers at our instance suffix name the advertised
// ports, A/AAAA additionals at the SRV target supply addresses, and TXT
// answers at the instance name supply attributes. A response with no
// SRV answer for our service is not about us and is ignored.
func classifyResponse(cfg NodeConfig, parsed *message.DNSMessage, raw []byte, now time.Time) *responseEvent {
	all := parsed.AllRecords()

	peers := make(map[string]*Peer)
	targets := make(map[string]pendingTarget)

	for i := range all {
		a := all[i]
		if a.TYPE != uint16(protocol.RecordTypeSRV) || !classIs(a.CLASS, protocol.ClassIN) {
			continue
		}
		peerID, ok := peerIDFromInstanceName(cfg, a.NAME)
		if !ok {
			continue
		}

		parsed, err := message.ParseRDATA(a.TYPE, raw, a.RDATAOffset, int(a.RDLENGTH))
		if err != nil {
			continue
		}
		srv, ok := parsed.(message.SRVData)
		if !ok {
			continue
		}

		if _, exists := peers[peerID]; !exists {
			peers[peerID] = &Peer{ID: peerID, LastSeen: now, Attrs: make(map[string]*string)}
		}
		targets[srv.Target] = pendingTarget{peerID: peerID, port: srv.Port}
	}

	if len(peers) == 0 {
		return nil
	}

	for i := range all {
		a := all[i]
		isAddr := a.TYPE == uint16(protocol.RecordTypeA) || a.TYPE == uint16(protocol.RecordTypeAAAA)
		if !isAddr || !classIs(a.CLASS, protocol.ClassIN) {
			continue
		}
		pt, ok := targets[a.NAME]
		if !ok {
			continue
		}
		val, err := message.ParseRDATA(a.TYPE, raw, a.RDATAOffset, int(a.RDLENGTH))
		if err != nil {
			continue
		}
		ip, ok := val.(net.IP)
		if !ok {
			continue
		}
		p := peers[pt.peerID]
		p.Addrs = append(p.Addrs, NewAddrPort(ip, pt.port))
	}

	for i := range all {
		a := all[i]
		if a.TYPE != uint16(protocol.RecordTypeTXT) || !classIs(a.CLASS, protocol.ClassIN) {
			continue
		}
		peerID, ok := peerIDFromInstanceName(cfg, a.NAME)
		if !ok {
			continue
		}
		p, ok := peers[peerID]
		if !ok {
			continue
		}
		val, err := message.ParseRDATA(a.TYPE, raw, a.RDATAOffset, int(a.RDLENGTH))
		if err != nil {
			continue
		}
		strs, ok := val.([]string)
		if !ok {
			continue
		}
		for _, s := range strs {
			if s == "" {
				continue
			}
			if idx := strings.IndexByte(s, '='); idx >= 0 {
				k, v := s[:idx], s[idx+1:]
				if k == "" {
					continue
				}
				vv := v
				p.Attrs[k] = &vv
			} else {
				p.Attrs[s] = nil
			}
		}
	}

	out := make(map[string]Peer, len(peers))
	for id, p := range peers {
		p.Addrs = sortAddrs(p.Addrs)
		out[id] = *p
	}
	return &responseEvent{peers: out}
}

// classifyDatagram parses raw and classifies it per the receiver
// contract: a PTR query for our service, a response carrying peers for
// our service, or nil/nil for anything else (wrong class, wrong type,
// wrong service, malformed — all dropped silently).
func classifyDatagram(cfg NodeConfig, raw []byte, family Family, now time.Time) (*queryEvent, *responseEvent) {
	parsed, err := message.ParseMessage(raw)
	if err != nil {
		return nil, nil
	}
	if q := classifyQuery(cfg, parsed, family); q != nil {
		return q, nil
	}
	if parsed.Header.IsResponse() {
		return nil, classifyResponse(cfg, parsed, raw, now)
	}
	return nil, nil
}
