package bytesutil

import (
	"encoding/hex"
	"errors"
	"strings"
)

var errOddHex = errors.New("bytesutil: odd number of hex digits")

// BytesToHex formats b as upper-case hex pairs joined by sep. When perRow is
// positive a newline replaces the separator every perRow bytes.
func BytesToHex(b []byte, sep byte, perRow int) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)

	count := 0
	for i, v := range b {
		if perRow > 0 && count == perRow {
			sb.WriteByte('\n')
			count = 0
		} else if i > 0 {
			sb.WriteByte(sep)
		}
		sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{v})))
		count++
	}
	return sb.String()
}

// Hex is BytesToHex with a space separator and no paging, used for logs.
func Hex(b []byte) string {
	return BytesToHex(b, ' ', 0)
}

// HexToBytes parses a hex string, ignoring any character that is not a hex
// digit so "10-11 12:4D" and "1011124d" parse the same.
func HexToBytes(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			return r
		default:
			return -1
		}
	}, s)

	if len(cleaned)%2 != 0 {
		return nil, errOddHex
	}
	return hex.DecodeString(cleaned)
}

// MustHex is HexToBytes for literals known to be valid.
func MustHex(s string) []byte {
	b, err := HexToBytes(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Pad appends zero bytes to data up to the next multiple of multiple. Data
// already aligned is returned as is.
func Pad(data []byte, multiple int) []byte {
	if multiple <= 0 || len(data)%multiple == 0 {
		return data
	}

	padding := multiple - len(data)%multiple
	out := make([]byte, len(data)+padding)
	copy(out, data)
	return out
}

// Unpad strips trailing zero bytes. A buffer holding only zero bytes is
// returned unchanged.
func Unpad(data []byte) []byte {
	for i := len(data) - 1; i >= 0; i-- {
		if data[i] != 0x00 {
			return data[:i+1]
		}
	}
	return data
}

// Window returns a copy of b[from:to], zero-filled where the range runs past
// the end of b.
func Window(b []byte, from, to int) []byte {
	out := make([]byte, to-from)
	if from < len(b) {
		copy(out, b[from:min(to, len(b))])
	}
	return out
}
