package rdb

import "encoding/binary"

// Length-encoding tag bits, top two bits of the first byte.
const (
	tag6Bit    = 0x00 // 00xxxxxx: L in the low six bits
	tag14Bit   = 0x40 // 01xxxxxx yyyyyyyy
	tag32Bit   = 0x80 // 10xxxxxx, then 4 bytes big-endian
	tagSpecial = 0xC0 // 11xxxxxx: not emitted by this writer
)

const (
	max6Bit  = 1<<6 - 1
	max14Bit = 1<<14 - 1
)

// encodeLength appends the variable-length big-endian encoding of n to
// dst, choosing the smallest of the three emitted forms. Mirrors
// original_source/save_rdb.py's length-encoding writer.
func encodeLength(dst []byte, n uint64) []byte {
	switch {
	case n <= max6Bit:
		return append(dst, tag6Bit|byte(n))
	case n <= max14Bit:
		return append(dst, tag14Bit|byte(n>>8), byte(n))
	default:
		dst = append(dst, tag32Bit)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		return append(dst, b[:]...)
	}
}

// decodeLength reads a length encoding from the front of data, returning
// the decoded value and the number of bytes consumed. Per spec.md
// §4.3.1, the 11xxxxxx special-encoded form is never emitted by this
// writer and readers must reject it with a FormatError.
func decodeLength(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, newFormatError("truncated length encoding")
	}
	first := data[0]
	switch first & 0xC0 {
	case tag6Bit:
		return uint64(first & 0x3F), 1, nil
	case tag14Bit:
		if len(data) < 2 {
			return 0, 0, newFormatError("truncated 14-bit length encoding")
		}
		return uint64(first&0x3F)<<8 | uint64(data[1]), 2, nil
	case tag32Bit:
		if len(data) < 5 {
			return 0, 0, newFormatError("truncated 32-bit length encoding")
		}
		return uint64(binary.BigEndian.Uint32(data[1:5])), 5, nil
	default: // tagSpecial
		return 0, 0, newFormatError("special-encoded length is not supported")
	}
}
