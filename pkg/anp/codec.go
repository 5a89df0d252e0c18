package anp

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes m into bytes. When includeHeader is true, the 24-byte
// header is emitted first with PayloadSize set to the actual sum of element
// sizes (the caller's Header.PayloadSize field is ignored on encode and
// recomputed, so callers never have to keep it in sync by hand).
func Encode(m *Message, includeHeader bool) []byte {
	payloadSize := m.PayloadSizeComputed()

	size := int(payloadSize)
	if includeHeader {
		size += HeaderSize
	}
	buf := make([]byte, size)

	off := 0
	if includeHeader {
		binary.BigEndian.PutUint32(buf[0:4], m.Major)
		binary.BigEndian.PutUint32(buf[4:8], m.Minor)
		binary.BigEndian.PutUint32(buf[8:12], m.Type)
		binary.BigEndian.PutUint64(buf[12:20], m.ID)
		binary.BigEndian.PutUint32(buf[20:24], payloadSize)
		off = HeaderSize
	}

	for _, e := range m.Elements {
		buf[off] = byte(e.tag)
		off++
		switch e.tag {
		case TagU32:
			binary.BigEndian.PutUint32(buf[off:off+4], e.u32)
			off += 4
		case TagU64:
			binary.BigEndian.PutUint64(buf[off:off+8], e.u64)
			off += 8
		case TagString, TagBin:
			binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(e.str)))
			off += 4
			off += copy(buf[off:], e.str)
		}
	}
	return buf
}

// ParseHeader decodes the fixed 24-byte header from the front of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("anp: malformed header: need %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		Major:       binary.BigEndian.Uint32(b[0:4]),
		Minor:       binary.BigEndian.Uint32(b[4:8]),
		Type:        binary.BigEndian.Uint32(b[8:12]),
		ID:          binary.BigEndian.Uint64(b[12:20]),
		PayloadSize: binary.BigEndian.Uint32(b[20:24]),
	}, nil
}

// ParsePayload decodes a sequence of elements from b. It reads until b is
// exhausted; any element that would read past the end of b is a parse
// error, including a truncated tag byte.
func ParsePayload(b []byte) ([]Element, error) {
	var elements []Element
	off := 0
	for off < len(b) {
		tag := Tag(b[off])
		off++
		switch tag {
		case TagU32:
			if off+4 > len(b) {
				return nil, fmt.Errorf("anp: malformed payload: truncated U32 at offset %d", off)
			}
			elements = append(elements, U32(binary.BigEndian.Uint32(b[off:off+4])))
			off += 4
		case TagU64:
			if off+8 > len(b) {
				return nil, fmt.Errorf("anp: malformed payload: truncated U64 at offset %d", off)
			}
			elements = append(elements, U64(binary.BigEndian.Uint64(b[off:off+8])))
			off += 8
		case TagString, TagBin:
			if off+4 > len(b) {
				return nil, fmt.Errorf("anp: malformed payload: truncated length at offset %d", off)
			}
			n := int(binary.BigEndian.Uint32(b[off : off+4]))
			off += 4
			if off+n > len(b) {
				return nil, fmt.Errorf("anp: malformed payload: truncated %s of length %d at offset %d", tag, n, off)
			}
			if tag == TagString {
				elements = append(elements, String(string(b[off:off+n])))
			} else {
				elements = append(elements, Bin(b[off:off+n]))
			}
			off += n
		default:
			return nil, fmt.Errorf("anp: malformed payload: unknown element tag %d at offset %d", tag, off-1)
		}
	}
	return elements, nil
}

// Parse decodes a full message (header + payload) from b. This is a
// convenience wrapper for tests and for callers with the full message in
// memory already (the transport uses ParseHeader/ParsePayload separately to
// drive partial I/O).
func Parse(b []byte) (*Message, error) {
	hdr, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if hdr.PayloadSize > MaxPayloadSize {
		return nil, fmt.Errorf("anp: payload_size %d exceeds cap of %d bytes", hdr.PayloadSize, MaxPayloadSize)
	}
	end := HeaderSize + int(hdr.PayloadSize)
	if end > len(b) {
		return nil, fmt.Errorf("anp: malformed payload: header declares %d bytes, have %d", hdr.PayloadSize, len(b)-HeaderSize)
	}
	elements, err := ParsePayload(b[HeaderSize:end])
	if err != nil {
		return nil, err
	}
	return &Message{Header: hdr, Elements: elements}, nil
}
