// Package message implements DNS message construction per RFC 1035/6762.
package message

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/lanswarm/swarmdns/internal/errors"
	"github.com/lanswarm/swarmdns/internal/protocol"
)

// BuildQuery constructs a one-shot mDNS query: a 12-byte header with
// QR=0, OPCODE=0, AA=0, TC=0, RD=0 followed by a single question.
func BuildQuery(name string, recordType uint16) ([]byte, error) {
	if !protocol.RecordType(recordType).IsSupported() {
		return nil, &errors.ValidationError{
			Field:   "recordType",
			Value:   recordType,
			Message: "unsupported record type",
		}
	}

	encodedName, err := EncodeName(name)
	if err != nil {
		return nil, err
	}

	header := buildQueryHeader()
	question := buildQuestionSection(encodedName, recordType)

	query := append(header, question...)
	return query, nil
}

// buildQueryHeader builds the 12-byte header for a query message. The
// transaction ID is random (RFC 6762 §18.1 allows zero for multicast
// queries, but a random ID lets a later unicast fallback correlate
// replies without ambiguity).
func buildQueryHeader() []byte {
	header := make([]byte, 12)

	idBig, err := rand.Int(rand.Reader, big.NewInt(65536))
	if err != nil {
		idBig = big.NewInt(0)
	}
	id := uint16(idBig.Uint64() % 65536) //nolint:gosec // bounded by rand.Int(..., 65536)
	binary.BigEndian.PutUint16(header[0:2], id)

	binary.BigEndian.PutUint16(header[2:4], 0x0000)
	binary.BigEndian.PutUint16(header[4:6], 1)
	binary.BigEndian.PutUint16(header[6:8], 0)
	binary.BigEndian.PutUint16(header[8:10], 0)
	binary.BigEndian.PutUint16(header[10:12], 0)

	return header
}

func buildQuestionSection(encodedName []byte, recordType uint16) []byte {
	question := make([]byte, 0, len(encodedName)+4)
	question = append(question, encodedName...)

	qtype := make([]byte, 2)
	binary.BigEndian.PutUint16(qtype, recordType)
	question = append(question, qtype...)

	qclass := make([]byte, 2)
	binary.BigEndian.PutUint16(qclass, uint16(protocol.ClassIN))
	question = append(question, qclass...)

	return question
}

// BuildResponse constructs an mDNS response: a header with QR=1, AA=1
// followed by the given answer records. QDCOUNT is always 0: the question
// being answered is not echoed back.
func BuildResponse(answers []*ResourceRecord) ([]byte, error) {
	header := buildResponseHeader(len(answers))

	response := make([]byte, 0, 512)
	response = append(response, header...)

	for _, answer := range answers {
		answerBytes, err := serializeResourceRecord(answer)
		if err != nil {
			return nil, err
		}
		response = append(response, answerBytes...)
	}

	return response, nil
}

func buildResponseHeader(answerCount int) []byte {
	header := make([]byte, 12)

	binary.BigEndian.PutUint16(header[0:2], 0)

	flags := uint16(protocol.FlagQR | protocol.FlagAA)
	binary.BigEndian.PutUint16(header[2:4], flags)

	binary.BigEndian.PutUint16(header[4:6], 0)

	if answerCount > 65535 { //nolint:gosec // bounded by MaxDatagramSize in practice
		answerCount = 65535
	}
	binary.BigEndian.PutUint16(header[6:8], uint16(answerCount))

	binary.BigEndian.PutUint16(header[8:10], 0)
	binary.BigEndian.PutUint16(header[10:12], 0)

	return header
}

// serializeResourceRecord writes one resource record in wire format:
// NAME, TYPE, CLASS (with cache-flush bit if set), TTL, RDLENGTH, RDATA.
// A name containing "._" is treated as a service-instance owner name
// (RFC 6763 §4.3) and encoded with EncodeServiceInstanceName so the
// instance portion may carry non-ASCII bytes; every other name goes
// through the strict DNS label encoder.
func serializeResourceRecord(rr *ResourceRecord) ([]byte, error) {
	if rr == nil {
		return nil, &errors.ValidationError{
			Field:   "ResourceRecord",
			Value:   nil,
			Message: "cannot serialize nil resource record",
		}
	}

	var encodedName []byte
	var err error

	if strings.Contains(rr.Name, "._") {
		parts := strings.SplitN(rr.Name, "._", 2)
		if len(parts) == 2 {
			instanceName := parts[0]
			serviceType := "_" + parts[1]

			encodedName, err = EncodeServiceInstanceName(instanceName, serviceType)
			if err != nil {
				return nil, err
			}
		} else {
			encodedName, err = EncodeName(rr.Name)
			if err != nil {
				return nil, err
			}
		}
	} else {
		encodedName, err = EncodeName(rr.Name)
		if err != nil {
			return nil, err
		}
	}

	recordSize := len(encodedName) + 10 + len(rr.Data)
	record := make([]byte, 0, recordSize)

	record = append(record, encodedName...)

	typeBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(typeBytes, uint16(rr.Type))
	record = append(record, typeBytes...)

	class := uint16(rr.Class)
	if rr.CacheFlush {
		class |= uint16(protocol.CacheFlushBit)
	}
	classBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(classBytes, class)
	record = append(record, classBytes...)

	ttlBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(ttlBytes, rr.TTL)
	record = append(record, ttlBytes...)

	rdataLen := len(rr.Data)
	if rdataLen > 65535 { //nolint:gosec // bounded by MaxDatagramSize in practice
		rdataLen = 65535
	}
	rdlengthBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(rdlengthBytes, uint16(rdataLen))
	record = append(record, rdlengthBytes...)

	record = append(record, rr.Data...)

	return record, nil
}

// ResourceRecord is the in-memory form of a record to be serialized into
// a response message.
type ResourceRecord struct {
	Name       string
	Type       protocol.RecordType
	Class      protocol.DNSClass
	TTL        uint32
	Data       []byte
	CacheFlush bool
}
