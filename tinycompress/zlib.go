// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. Any inflater can read them, and the encoder needs no
// tables or heap beyond the output slice.
package tinycompress

import "hash/adler32"

const (
	// Largest payload of one stored block
	maxStoredBlock = 0xFFFF

	headerSize  = 2
	blockHeader = 5
	trailerSize = 4
)

// zlib CMF/FLG: deflate, 32K window, default level, check bits valid
var zlibHeader = [headerSize]byte{0x78, 0x9C}

// WrappedLen returns the size of the stream Wrap produces for n bytes.
func WrappedLen(n int) int {
	blocks := (n + maxStoredBlock - 1) / maxStoredBlock
	if blocks == 0 {
		blocks = 1
	}
	return headerSize + blocks*blockHeader + n + trailerSize
}

// Wrap appends the zlib encoding of src to dst and returns the result.
// With cap(dst)-len(dst) >= WrappedLen(len(src)) it does not allocate.
func Wrap(dst, src []byte) []byte {
	dst = append(dst, zlibHeader[:]...)

	rest := src
	for {
		n := len(rest)
		final := n <= maxStoredBlock
		if !final {
			n = maxStoredBlock
		}

		var bfinal byte
		if final {
			bfinal = 0x01
		}
		length := uint16(n)
		nlength := ^length
		dst = append(dst, bfinal,
			byte(length), byte(length>>8),
			byte(nlength), byte(nlength>>8))
		dst = append(dst, rest[:n]...)

		rest = rest[n:]
		if final {
			break
		}
	}

	// Adler-32 of the uncompressed data, big-endian
	sum := adler32.Checksum(src)
	return append(dst, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}
