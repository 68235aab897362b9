package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType is the outer discriminant of a NetworkMessage (spec §6).
type MessageType int32

const (
	MessageCircuit MessageType = iota
	MessageService
	MessageAdmin
	MessageAuth
	MessageMesh
)

// CurrentProtocolVersion is the version stamped on every frame this build
// produces.
const CurrentProtocolVersion uint32 = 1

// Envelope is the outermost wire frame: every message exchanged between
// nodes carries a protocol_version and a type discriminant (spec §6).
type Envelope struct {
	ProtocolVersion uint32
	Type            MessageType
	Payload         []byte
}

// Encode serializes e as a single length-delimited protobuf-style record
// using protowire's tag/varint primitives. The wire/ package never depends
// on generated .pb.go bindings (see DESIGN.md), but the bytes it produces
// follow the same tag+varint+length-delimited shape a generated encoder
// would use, so the framing is interoperable with the textual wire spec.
func (e Envelope) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.ProtocolVersion))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Payload)
	return b
}

// DecodeEnvelope parses the bytes produced by Envelope.Encode.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return e, fmt.Errorf("wire: invalid tag")
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, fmt.Errorf("wire: invalid protocol_version")
			}
			e.ProtocolVersion = uint32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return e, fmt.Errorf("wire: invalid type")
			}
			e.Type = MessageType(v)
			data = data[n:]
		case 3:
			if typ != protowire.BytesType {
				return e, fmt.Errorf("wire: payload field has wrong wire type")
			}
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return e, fmt.Errorf("wire: invalid payload")
			}
			e.Payload = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return e, fmt.Errorf("wire: invalid field %d", num)
			}
			data = data[n:]
		}
	}
	return e, nil
}

// SupportedVersion reports whether v falls within [min, max].
func SupportedVersion(v, min, max uint32) bool {
	return v >= min && v <= max
}

// LengthPrefix prepends a 4-byte big-endian length to frame, for use on a
// raw stream transport (Mesh's default TCP connection).
func LengthPrefix(frame []byte) []byte {
	n := len(frame)
	out := make([]byte, 4+n)
	out[0] = byte(n >> 24)
	out[1] = byte(n >> 16)
	out[2] = byte(n >> 8)
	out[3] = byte(n)
	copy(out[4:], frame)
	return out
}

// ReadLengthPrefixed reads the 4-byte length prefix from the front of buf
// and reports how many bytes (prefix+frame) were consumed, or ok=false if
// buf does not yet contain a complete frame.
func ReadLengthPrefixed(buf []byte) (frame []byte, consumed int, ok bool) {
	if len(buf) < 4 {
		return nil, 0, false
	}
	n := int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	if len(buf) < 4+n {
		return nil, 0, false
	}
	return buf[4 : 4+n], 4 + n, true
}
