// Package checksum computes the 4-byte acknowledgement value carried by RCV.
package checksum

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// Size is the length of a checksum in bytes.
const Size = 4

// Sum returns the CRC-32 (IEEE) of data, least significant byte first, with
// every byte complemented.
func Sum(data []byte) []byte {
	out := make([]byte, Size)
	binary.LittleEndian.PutUint32(out, ^crc32.ChecksumIEEE(data))
	return out
}

// Verify reports whether sum is the checksum of data.
func Verify(data, sum []byte) bool {
	return bytes.Equal(Sum(data), sum)
}
