// Package message implements DNS wire format structures and codecs per
// RFC 1035, generalized for mDNS (RFC 6762) and DNS-SD (RFC 6763) use.
package message

// DNSHeader is the 12-byte DNS message header per RFC 1035 §4.1.1.
//
//	                                1  1  1  1  1  1
//	  0  1  2  3  4  5  6  7  8  9  0  1  2  3  4  5
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                      ID                       |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA|   Z    |   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    QDCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    ANCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    NSCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|                    ARCOUNT                    |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
type DNSHeader struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// IsQuery reports whether the QR bit is clear.
func (h *DNSHeader) IsQuery() bool {
	return (h.Flags & 0x8000) == 0
}

// IsResponse reports whether the QR bit is set.
func (h *DNSHeader) IsResponse() bool {
	return (h.Flags & 0x8000) != 0
}

// GetRCODE extracts the 4-bit response code.
func (h *DNSHeader) GetRCODE() uint8 {
	return uint8(h.Flags & 0x000F) //nolint:gosec // masked to 4 bits
}

// GetOPCODE extracts the 4-bit opcode.
func (h *DNSHeader) GetOPCODE() uint8 {
	return uint8((h.Flags >> 11) & 0x0F) //nolint:gosec // masked to 4 bits
}

// Question is a single question-section entry per RFC 1035 §4.1.2.
type Question struct {
	QNAME  string
	QTYPE  uint16
	QCLASS uint16
}

// Answer is a resource record as it appears in the answer, authority, or
// additional section per RFC 1035 §4.1.3.
type Answer struct {
	NAME     string
	TYPE     uint16
	CLASS    uint16
	TTL      uint32
	RDLENGTH uint16
	RDATA    []byte

	// RDATAOffset is RDATA's absolute byte offset within the original
	// message buffer. ParseRDATA needs it (not just the copied RDATA
	// bytes) to follow RFC 1035 §4.1.4 compression pointers inside
	// PTR/SRV target names.
	RDATAOffset int
}

// DNSMessage is a complete parsed DNS message: header plus the four
// sections. The additional section carries SRV/TXT/address glue records
// for our records; receivers walk it rather than ignoring it.
type DNSMessage struct {
	Header      DNSHeader
	Questions   []Question
	Answers     []Answer
	Authorities []Answer
	Additionals []Answer
}

// AllRecords returns every resource record across the answer, authority,
// and additional sections, in wire order. Peer discovery does not care
// which section a record arrived in — a PTR answer and its SRV/TXT
// glue in the additional section are equally authoritative.
func (m *DNSMessage) AllRecords() []Answer {
	all := make([]Answer, 0, len(m.Answers)+len(m.Authorities)+len(m.Additionals))
	all = append(all, m.Answers...)
	all = append(all, m.Authorities...)
	all = append(all, m.Additionals...)
	return all
}
