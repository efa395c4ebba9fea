// Package message implements DNS name encoding and compression per RFC 1035 §4.1.4.
package message

import (
	"fmt"
	"strings"

	"github.com/lanswarm/swarmdns/internal/errors"
	"github.com/lanswarm/swarmdns/internal/protocol"
)

// ParseName parses a DNS name starting at offset in msg, following
// compression pointers per RFC 1035 §4.1.4. msg must be the complete
// message buffer — pointers are absolute offsets into it, not into
// whatever sub-slice the caller happens to be decoding.
//
// newOffset is the position immediately after the name as it appears on
// the wire at offset (i.e. after the first pointer, if one was
// followed), so the caller can continue parsing subsequent fields.
func ParseName(msg []byte, offset int) (name string, newOffset int, err error) {
	if offset < 0 || offset >= len(msg) {
		return "", offset, &errors.WireFormatError{
			Operation: "parse name",
			Offset:    offset,
			Message:   "offset out of bounds",
		}
	}

	var labels []string
	jumps := 0
	pos := offset
	jumped := false

	for {
		if pos >= len(msg) {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   "unexpected end of message while parsing name",
			}
		}

		length := msg[pos]

		if (length & protocol.CompressionMask) == protocol.CompressionMask {
			if pos+1 >= len(msg) {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   "truncated compression pointer",
				}
			}

			pointerOffset := int(msg[pos]&0x3F)<<8 | int(msg[pos+1])

			if pointerOffset >= pos {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   fmt.Sprintf("invalid compression pointer: points to offset %d (current position %d)", pointerOffset, pos),
				}
			}

			if !jumped {
				newOffset = pos + 2
				jumped = true
			}

			pos = pointerOffset

			jumps++
			if jumps > protocol.MaxCompressionPointers {
				return "", offset, &errors.WireFormatError{
					Operation: "parse name",
					Offset:    pos,
					Message:   fmt.Sprintf("too many compression jumps (possible loop, exceeded %d jumps)", protocol.MaxCompressionPointers),
				}
			}

			continue
		}

		if length == 0 {
			if !jumped {
				newOffset = pos + 1
			}
			break
		}

		if length > protocol.MaxLabelLength {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   fmt.Sprintf("label length %d exceeds maximum %d bytes per RFC 1035 §3.1", length, protocol.MaxLabelLength),
			}
		}

		if pos+1+int(length) > len(msg) {
			return "", offset, &errors.WireFormatError{
				Operation: "parse name",
				Offset:    pos,
				Message:   fmt.Sprintf("truncated label: expected %d bytes, only %d available", length, len(msg)-pos-1),
			}
		}

		label := string(msg[pos+1 : pos+1+int(length)])
		labels = append(labels, label)

		pos += 1 + int(length)
	}

	name = strings.Join(labels, ".")

	if len(name) > protocol.MaxNameLength {
		return "", offset, &errors.WireFormatError{
			Operation: "parse name",
			Offset:    offset,
			Message:   fmt.Sprintf("name length %d exceeds maximum %d bytes per RFC 1035 §3.1", len(name), protocol.MaxNameLength),
		}
	}

	return name, newOffset, nil
}

// EncodeName encodes a dot-separated DNS name into wire format per RFC
// 1035 §3.1: each label is prefixed by its length byte, terminated by a
// zero-length label. Compression is never used on write — mDNS senders
// are not required to compress, and an uncompressed writer is simpler to
// get right than a correct compressor.
func EncodeName(name string) ([]byte, error) {
	if name == "" || name == "." {
		return []byte{0}, nil
	}

	labels := strings.Split(name, ".")

	if len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}

	encoded := make([]byte, 0, 256)
	for _, label := range labels {
		if len(label) == 0 {
			return nil, &errors.ValidationError{
				Field:   "name",
				Value:   name,
				Message: "empty label (consecutive dots)",
			}
		}

		if len(label) > protocol.MaxLabelLength {
			return nil, &errors.ValidationError{
				Field:   "name",
				Value:   name,
				Message: fmt.Sprintf("label %q exceeds maximum length %d bytes per RFC 1035 §3.1", label, protocol.MaxLabelLength),
			}
		}

		for i, ch := range label {
			valid := (ch >= 'a' && ch <= 'z') ||
				(ch >= 'A' && ch <= 'Z') ||
				(ch >= '0' && ch <= '9') ||
				ch == '-' ||
				ch == '_'

			if !valid {
				return nil, &errors.ValidationError{
					Field:   "name",
					Value:   name,
					Message: fmt.Sprintf("invalid character %q in label %q (position %d)", ch, label, i),
				}
			}

			if ch == '-' && (i == 0 || i == len(label)-1) {
				return nil, &errors.ValidationError{
					Field:   "name",
					Value:   name,
					Message: fmt.Sprintf("hyphen cannot be first or last character in label %q", label),
				}
			}
		}

		encoded = append(encoded, byte(len(label)))
		encoded = append(encoded, []byte(label)...)
	}

	encoded = append(encoded, 0)

	if len(encoded) > protocol.MaxNameLength {
		return nil, &errors.ValidationError{
			Field:   "name",
			Value:   name,
			Message: fmt.Sprintf("encoded name length %d exceeds maximum %d bytes per RFC 1035 §3.1", len(encoded), protocol.MaxNameLength),
		}
	}

	return encoded, nil
}

// EncodeServiceInstanceName encodes a service-instance owner name per RFC
// 6763 §4.3: the instance portion is a single label that may hold
// arbitrary UTF-8 (including spaces), while the remaining service-type
// labels are strict DNS labels. This is how a peer id containing non-ASCII
// characters gets embedded in an SRV owner name such as
// "<peer id>._swarm._udp.local".
func EncodeServiceInstanceName(instanceName, serviceType string) ([]byte, error) {
	if len(instanceName) == 0 {
		return nil, &errors.ValidationError{
			Field:   "instanceName",
			Value:   instanceName,
			Message: "instance name cannot be empty",
		}
	}

	if len(instanceName) > protocol.MaxLabelLength {
		return nil, &errors.ValidationError{
			Field:   "instanceName",
			Value:   instanceName,
			Message: fmt.Sprintf("instance name exceeds maximum label length %d bytes", protocol.MaxLabelLength),
		}
	}

	encoded := make([]byte, 0, 256)
	encoded = append(encoded, byte(len(instanceName)))
	encoded = append(encoded, []byte(instanceName)...)

	serviceTypeEncoded, err := EncodeName(serviceType)
	if err != nil {
		return nil, fmt.Errorf("encoding service type: %w", err)
	}

	if len(serviceTypeEncoded) > 0 && serviceTypeEncoded[len(serviceTypeEncoded)-1] == 0 {
		serviceTypeEncoded = serviceTypeEncoded[:len(serviceTypeEncoded)-1]
	}

	encoded = append(encoded, serviceTypeEncoded...)
	encoded = append(encoded, 0)

	return encoded, nil
}
