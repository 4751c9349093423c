package overlay

import (
	"errors"
	"fmt"
)

// MaxMessageSize is the largest frame body this node accepts or produces.
const MaxMessageSize = 0x1000000 // 16 MiB

// ErrFrameTooLarge is returned when a frame header declares a body larger
// than MaxMessageSize.
var ErrFrameTooLarge = errors.New("overlay: frame too large")

// frameHeaderSize is the length of the wire frame header in bytes.
const frameHeaderSize = 4

// DecodeFrameHeader interprets a 4-byte big-endian frame header and returns
// the declared body length. The most significant bit is a legacy XDR record
// continuation bit and is masked off before the remaining 31 bits are read.
//
// The length is validated against MaxMessageSize before the caller allocates
// or reads any body bytes, so a forged header from a hostile peer can never
// drive a large allocation.
func DecodeFrameHeader(header [frameHeaderSize]byte) (uint32, error) {
	length := uint32(header[0] & 0x7f) // clear the XDR 'continuation' bit
	length <<= 8
	length |= uint32(header[1])
	length <<= 8
	length |= uint32(header[2])
	length <<= 8
	length |= uint32(header[3])
	if length > MaxMessageSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	return length, nil
}

// EncodeFrameHeader produces the 4-byte big-endian header for a body of the
// given length. The continuation bit is never set on frames we produce.
func EncodeFrameHeader(length uint32) [frameHeaderSize]byte {
	var header [frameHeaderSize]byte
	header[0] = byte(length>>24) & 0x7f
	header[1] = byte(length >> 16)
	header[2] = byte(length >> 8)
	header[3] = byte(length)
	return header
}

// EncodeFrame prepends the frame header to payload, returning the complete
// wire frame. Returns ErrFrameTooLarge if the payload exceeds MaxMessageSize.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	header := EncodeFrameHeader(uint32(len(payload)))
	frame := make([]byte, 0, frameHeaderSize+len(payload))
	frame = append(frame, header[:]...)
	frame = append(frame, payload...)
	return frame, nil
}
