package message

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/lanswarm/swarmdns/internal/protocol"
)

func TestBuildQueryHeaderFlags(t *testing.T) {
	query, err := BuildQuery("test.local", 1)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	if len(query) < 12 {
		t.Fatalf("query too short: %d bytes", len(query))
	}

	flags := binary.BigEndian.Uint16(query[2:4])
	if flags != 0 {
		t.Errorf("flags = 0x%04X, want 0 (QR/OPCODE/AA/TC/RD all clear)", flags)
	}

	qdcount := binary.BigEndian.Uint16(query[4:6])
	if qdcount != 1 {
		t.Errorf("QDCOUNT = %d, want 1", qdcount)
	}
	for _, field := range [][2]int{{6, 8}, {8, 10}, {10, 12}} {
		if got := binary.BigEndian.Uint16(query[field[0]:field[1]]); got != 0 {
			t.Errorf("count field [%d:%d] = %d, want 0", field[0], field[1], got)
		}
	}
}

func TestBuildQueryQuestionSection(t *testing.T) {
	query, err := BuildQuery("test.local", 1)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	expected := []byte{
		0x04, 't', 'e', 's', 't',
		0x05, 'l', 'o', 'c', 'a', 'l',
		0x00,
		0x00, 0x01, // QTYPE A
		0x00, 0x01, // QCLASS IN
	}
	if string(query[12:]) != string(expected) {
		t.Errorf("question section = % X, want % X", query[12:], expected)
	}
}

func TestBuildQueryUnsupportedRecordType(t *testing.T) {
	for _, qtype := range []uint16{15, 999} {
		if _, err := BuildQuery("test.local", qtype); err == nil {
			t.Errorf("BuildQuery(type=%d) = nil error, want unsupported-type error", qtype)
		}
	}
}

func TestBuildQuerySupportedRecordTypes(t *testing.T) {
	for _, qtype := range []uint16{1, 12, 16, 28, 33} {
		query, err := BuildQuery("test.local", qtype)
		if err != nil {
			t.Errorf("BuildQuery(type=%d): %v", qtype, err)
			continue
		}
		offset := 12
		for query[offset] != 0 {
			offset += 1 + int(query[offset])
		}
		offset++
		got := binary.BigEndian.Uint16(query[offset : offset+2])
		if got != qtype {
			t.Errorf("QTYPE = %d, want %d", got, qtype)
		}
	}
}

func TestBuildQueryInvalidName(t *testing.T) {
	_, err := BuildQuery("test host.local", 1)
	if err == nil {
		t.Fatal("expected error for a name with an embedded space")
	}
}

func TestBuildResponseHeader(t *testing.T) {
	rr := &ResourceRecord{
		Name:  "test.local",
		Type:  protocol.RecordTypeA,
		Class: protocol.ClassIN,
		TTL:   120,
		Data:  []byte{10, 0, 0, 1},
	}
	resp, err := BuildResponse([]*ResourceRecord{rr})
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}

	flags := binary.BigEndian.Uint16(resp[2:4])
	if flags&protocol.FlagQR == 0 {
		t.Error("QR bit clear in a response, want set")
	}
	if flags&protocol.FlagAA == 0 {
		t.Error("AA bit clear in a response, want set")
	}

	ancount := binary.BigEndian.Uint16(resp[6:8])
	if ancount != 1 {
		t.Errorf("ANCOUNT = %d, want 1", ancount)
	}
}

func TestBuildResponseRoundtripsThroughParseMessage(t *testing.T) {
	rrs := []*ResourceRecord{
		{Name: "test.local", Type: protocol.RecordTypeA, Class: protocol.ClassIN, TTL: 120, Data: []byte{10, 0, 0, 1}},
		{Name: "test.local", Type: protocol.RecordTypeTXT, Class: protocol.ClassIN, TTL: 120, Data: append([]byte{5}, []byte("a=one")...)},
	}
	resp, err := BuildResponse(rrs)
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}

	parsed, err := ParseMessage(resp)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(parsed.Answers) != 2 {
		t.Fatalf("len(Answers) = %d, want 2", len(parsed.Answers))
	}
	if parsed.Answers[0].NAME != "test.local" || parsed.Answers[0].TYPE != uint16(protocol.RecordTypeA) {
		t.Errorf("Answers[0] = %+v", parsed.Answers[0])
	}
}

func TestBuildResponseCacheFlushBit(t *testing.T) {
	rr := &ResourceRecord{
		Name:       "test.local",
		Type:       protocol.RecordTypeA,
		Class:      protocol.ClassIN,
		TTL:        120,
		Data:       []byte{10, 0, 0, 1},
		CacheFlush: true,
	}
	resp, err := BuildResponse([]*ResourceRecord{rr})
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}

	parsed, err := ParseMessage(resp)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if parsed.Answers[0].CLASS&uint16(protocol.CacheFlushBit) == 0 {
		t.Error("cache-flush bit not set on the parsed answer CLASS")
	}
}

func TestBuildResponseServiceInstanceName(t *testing.T) {
	rr := &ResourceRecord{
		Name:  "node 7._swarm._udp.local",
		Type:  protocol.RecordTypeSRV,
		Class: protocol.ClassIN,
		TTL:   120,
		Data:  []byte{0, 0, 0, 0, 0x1F, 0x90, 0},
	}
	resp, err := BuildResponse([]*ResourceRecord{rr})
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}

	parsed, err := ParseMessage(resp)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if !strings.HasPrefix(parsed.Answers[0].NAME, "node 7.") {
		t.Errorf("Answers[0].NAME = %q, want prefix %q", parsed.Answers[0].NAME, "node 7.")
	}
}

func TestBuildResponseNilRecordRejected(t *testing.T) {
	_, err := BuildResponse([]*ResourceRecord{nil})
	if err == nil {
		t.Fatal("expected error for a nil resource record")
	}
}
