package swarm

import (
	"github.com/lanswarm/swarmdns/internal/message"
	"github.com/lanswarm/swarmdns/internal/protocol"
)

// BuildQueryPacket constructs the single-question PTR query this node
// sends when Phase 1 times out: class IN, type PTR, name
// `_<service>.<_udp|_tcp>.local.`.
func BuildQueryPacket(cfg NodeConfig) ([]byte, error) {
	return message.BuildQuery(cfg.ServiceFQDN(), uint16(protocol.RecordTypePTR))
}

// BuildResponsePacket constructs this node's answer: one SRV record per
// advertised port, one A/AAAA record per address under that port, and
// (if any attributes are set) one TXT record at the instance name. Every
// record goes in the answer section; the additional section is empty.
// All records carry TTL 0 — advertisements are ephemeral, nothing here
// is meant to be cached across cycles.
func BuildResponsePacket(cfg NodeConfig, la *LocalAdvertisement) ([]byte, error) {
	var records []*message.ResourceRecord

	instanceName := cfg.InstanceFQDN()

	for _, port := range la.Ports() {
		hostName := cfg.HostFQDN(port)

		srvData := encodeSRVData(0, 0, port, hostName)
		records = append(records, &message.ResourceRecord{
			Name:  instanceName,
			Type:  protocol.RecordTypeSRV,
			Class: protocol.ClassIN,
			TTL:   0,
			Data:  srvData,
		})

		for _, ip := range la.AddrsForPort(port) {
			if v4 := ip.To4(); v4 != nil {
				records = append(records, &message.ResourceRecord{
					Name:  hostName,
					Type:  protocol.RecordTypeA,
					Class: protocol.ClassIN,
					TTL:   0,
					Data:  []byte(v4),
				})
			} else {
				v6 := ip.To16()
				records = append(records, &message.ResourceRecord{
					Name:  hostName,
					Type:  protocol.RecordTypeAAAA,
					Class: protocol.ClassIN,
					TTL:   0,
					Data:  []byte(v6),
				})
			}
		}
	}

	if attrs := la.Attrs(); len(attrs) > 0 {
		txtData := encodeTXTStrings(attrs)
		if len(txtData) > 0 {
			records = append(records, &message.ResourceRecord{
				Name:  instanceName,
				Type:  protocol.RecordTypeTXT,
				Class: protocol.ClassIN,
				TTL:   0,
				Data:  txtData,
			})
		}
	}

	return message.BuildResponse(records)
}

// encodeSRVData writes the fixed SRV RDATA prefix (priority, weight,
// port) followed by the target name.
func encodeSRVData(priority, weight, port uint16, target string) []byte {
	data := make([]byte, 6)
	data[0] = byte(priority >> 8)
	data[1] = byte(priority)
	data[2] = byte(weight >> 8)
	data[3] = byte(weight)
	data[4] = byte(port >> 8)
	data[5] = byte(port)

	encodedTarget, err := message.EncodeName(target)
	if err != nil {
		// target is always our own `<peer_id>-<port>.local.`; a peer id
		// that fails DNS label validation is rejected at config-validate
		// time, but a long valid id plus `-<port>` can still exceed the
		// 63-byte label limit. Fall back to an empty root name rather
		// than panic.
		encodedTarget = []byte{0}
	}
	return append(data, encodedTarget...)
}

// encodeTXTStrings renders the attribute map into DNS TXT's
// length-prefixed string format: `key` for value-less flags, `key=value`
// otherwise. Empty keys are skipped silently (callers should never
// produce one — ValidateAttr rejects it earlier — but the wire encoder
// stays defensive).
func encodeTXTStrings(attrs map[string]*string) []byte {
	var out []byte
	for key, val := range attrs {
		if key == "" {
			continue
		}
		var s string
		if val == nil {
			s = key
		} else {
			s = key + "=" + *val
		}
		if len(s) > 255 {
			s = s[:255]
		}
		out = append(out, byte(len(s)))
		out = append(out, []byte(s)...)
	}
	return out
}

