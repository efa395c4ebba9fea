// Package message implements DNS message parsing per RFC 1035.
package message

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/lanswarm/swarmdns/internal/errors"
)

// SRVData is the parsed form of an SRV record per RFC 2782.
type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

// ParseMessage parses a complete DNS message: header, then the question,
// answer, authority, and additional sections in order.
func ParseMessage(msg []byte) (*DNSMessage, error) {
	header, err := ParseHeader(msg)
	if err != nil {
		return nil, err
	}

	offset := 12

	questions := make([]Question, header.QDCount)
	for i := uint16(0); i < header.QDCount; i++ {
		question, newOffset, err := ParseQuestion(msg, offset)
		if err != nil {
			return nil, err
		}
		questions[i] = question
		offset = newOffset
	}

	answers := make([]Answer, header.ANCount)
	for i := uint16(0); i < header.ANCount; i++ {
		answer, newOffset, err := ParseAnswer(msg, offset)
		if err != nil {
			return nil, err
		}
		answers[i] = answer
		offset = newOffset
	}

	authorities := make([]Answer, header.NSCount)
	for i := uint16(0); i < header.NSCount; i++ {
		authority, newOffset, err := ParseAnswer(msg, offset)
		if err != nil {
			return nil, err
		}
		authorities[i] = authority
		offset = newOffset
	}

	additionals := make([]Answer, header.ARCount)
	for i := uint16(0); i < header.ARCount; i++ {
		additional, newOffset, err := ParseAnswer(msg, offset)
		if err != nil {
			return nil, err
		}
		additionals[i] = additional
		offset = newOffset
	}

	return &DNSMessage{
		Header:      header,
		Questions:   questions,
		Answers:     answers,
		Authorities: authorities,
		Additionals: additionals,
	}, nil
}

// ParseHeader parses the 12-byte DNS header.
func ParseHeader(msg []byte) (DNSHeader, error) {
	if len(msg) < 12 {
		return DNSHeader{}, &errors.WireFormatError{
			Operation: "parse header",
			Offset:    0,
			Message:   fmt.Sprintf("message too short for header: %d bytes, expected at least 12", len(msg)),
		}
	}

	header := DNSHeader{
		ID:      binary.BigEndian.Uint16(msg[0:2]),
		Flags:   binary.BigEndian.Uint16(msg[2:4]),
		QDCount: binary.BigEndian.Uint16(msg[4:6]),
		ANCount: binary.BigEndian.Uint16(msg[6:8]),
		NSCount: binary.BigEndian.Uint16(msg[8:10]),
		ARCount: binary.BigEndian.Uint16(msg[10:12]),
	}

	return header, nil
}

// ParseQuestion parses one question-section entry.
func ParseQuestion(msg []byte, offset int) (Question, int, error) {
	qname, newOffset, err := ParseName(msg, offset)
	if err != nil {
		return Question{}, offset, err
	}

	if newOffset+4 > len(msg) {
		return Question{}, offset, &errors.WireFormatError{
			Operation: "parse question",
			Offset:    newOffset,
			Message:   "truncated question: not enough bytes for QTYPE and QCLASS",
		}
	}

	qtype := binary.BigEndian.Uint16(msg[newOffset : newOffset+2])
	qclass := binary.BigEndian.Uint16(msg[newOffset+2 : newOffset+4])

	question := Question{
		QNAME:  qname,
		QTYPE:  qtype,
		QCLASS: qclass,
	}

	return question, newOffset + 4, nil
}

// ParseAnswer parses one resource-record entry (answer, authority, or
// additional section share the same wire shape).
func ParseAnswer(msg []byte, offset int) (Answer, int, error) {
	name, newOffset, err := ParseName(msg, offset)
	if err != nil {
		return Answer{}, offset, err
	}

	if newOffset+10 > len(msg) {
		return Answer{}, offset, &errors.WireFormatError{
			Operation: "parse answer",
			Offset:    newOffset,
			Message:   "truncated answer: not enough bytes for fixed fields",
		}
	}

	rtype := binary.BigEndian.Uint16(msg[newOffset : newOffset+2])
	class := binary.BigEndian.Uint16(msg[newOffset+2 : newOffset+4])
	ttl := binary.BigEndian.Uint32(msg[newOffset+4 : newOffset+8])
	rdlength := binary.BigEndian.Uint16(msg[newOffset+8 : newOffset+10])

	newOffset += 10

	if newOffset+int(rdlength) > len(msg) {
		return Answer{}, offset, &errors.WireFormatError{
			Operation: "parse answer",
			Offset:    newOffset,
			Message:   fmt.Sprintf("truncated RDATA: expected %d bytes, only %d available", rdlength, len(msg)-newOffset),
		}
	}

	rdata := make([]byte, rdlength)
	copy(rdata, msg[newOffset:newOffset+int(rdlength)])

	answer := Answer{
		NAME:        name,
		TYPE:        rtype,
		CLASS:       class,
		TTL:         ttl,
		RDLENGTH:    rdlength,
		RDATA:       rdata,
		RDATAOffset: newOffset,
	}

	return answer, newOffset + int(rdlength), nil
}

// ParseRDATA decodes the type-specific RDATA of a resource record into a
// Go value: net.IP for A/AAAA, string for PTR, []string for TXT, SRVData
// for SRV.
//
// msg is the complete message buffer and rdataOffset is RDATA's absolute
// position within it — not a copy of just the RDATA bytes. PTR and SRV
// targets can carry RFC 1035 §4.1.4 compression pointers, and those
// pointers are offsets into the whole message, so decoding them against
// an isolated RDATA slice silently breaks on any compressed target.
func ParseRDATA(recordType uint16, msg []byte, rdataOffset int, rdlength int) (interface{}, error) {
	if rdataOffset < 0 || rdataOffset+rdlength > len(msg) {
		return nil, &errors.WireFormatError{
			Operation: "parse RDATA",
			Offset:    rdataOffset,
			Message:   "RDATA extends past end of message",
		}
	}
	rdata := msg[rdataOffset : rdataOffset+rdlength]

	switch recordType {
	case 1: // A
		if len(rdata) != 4 {
			return nil, &errors.WireFormatError{
				Operation: "parse A record",
				Offset:    rdataOffset,
				Message:   fmt.Sprintf("invalid A record length: %d bytes, expected 4", len(rdata)),
			}
		}
		return net.IPv4(rdata[0], rdata[1], rdata[2], rdata[3]), nil

	case 28: // AAAA
		if len(rdata) != 16 {
			return nil, &errors.WireFormatError{
				Operation: "parse AAAA record",
				Offset:    rdataOffset,
				Message:   fmt.Sprintf("invalid AAAA record length: %d bytes, expected 16", len(rdata)),
			}
		}
		ip := make(net.IP, 16)
		copy(ip, rdata)
		return ip, nil

	case 12: // PTR
		name, _, err := ParseName(msg, rdataOffset)
		if err != nil {
			return nil, err
		}
		return name, nil

	case 16: // TXT
		var strs []string
		off := 0
		for off < len(rdata) {
			length := int(rdata[off])
			off++

			if off+length > len(rdata) {
				return nil, &errors.WireFormatError{
					Operation: "parse TXT record",
					Offset:    rdataOffset + off,
					Message:   fmt.Sprintf("truncated TXT string: expected %d bytes, only %d available", length, len(rdata)-off),
				}
			}

			strs = append(strs, string(rdata[off:off+length]))
			off += length
		}
		return strs, nil

	case 33: // SRV
		if len(rdata) < 6 {
			return nil, &errors.WireFormatError{
				Operation: "parse SRV record",
				Offset:    rdataOffset,
				Message:   fmt.Sprintf("truncated SRV record: %d bytes, expected at least 6", len(rdata)),
			}
		}

		priority := binary.BigEndian.Uint16(rdata[0:2])
		weight := binary.BigEndian.Uint16(rdata[2:4])
		port := binary.BigEndian.Uint16(rdata[4:6])

		target, _, err := ParseName(msg, rdataOffset+6)
		if err != nil {
			return nil, err
		}

		return SRVData{
			Priority: priority,
			Weight:   weight,
			Port:     port,
			Target:   target,
		}, nil

	default:
		return nil, &errors.WireFormatError{
			Operation: "parse RDATA",
			Offset:    rdataOffset,
			Message:   fmt.Sprintf("unsupported record type: %d", recordType),
		}
	}
}
