package bytesutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesToHex(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal("10", Hex([]byte{0x10}))
	require.Equal("10 11 12", Hex([]byte{0x10, 0x11, 0x12}))
	require.Equal("10-11-12", BytesToHex([]byte{0x10, 0x11, 0x12}, '-', 0))
	require.Equal("10-11\n12-13", BytesToHex([]byte{0x10, 0x11, 0x12, 0x13}, '-', 2))
	require.Equal("", Hex(nil))
}

func TestHexToBytes(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	b, err := HexToBytes("10-11 12:4D")
	require.NoError(err)
	require.Equal([]byte{0x10, 0x11, 0x12, 0x4d}, b)

	b, err = HexToBytes("7788554411224455dd66e8f6f2b4a54e")
	require.NoError(err)
	require.Len(b, 16)

	_, err = HexToBytes("ABC")
	require.Error(err)
}

func TestPad(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Len(Pad([]byte("SECRET MESSAGE"), 8), 16)
	require.Len(Pad([]byte("SECRET MESSAGE"), 16), 16)
	require.Len(Pad(make([]byte, 16), 16), 16)
	require.Len(Pad(make([]byte, 17), 16), 32)
	require.Empty(Pad(nil, 8))

	padded := Pad([]byte{1, 2, 3}, 8)
	require.Equal([]byte{1, 2, 3, 0, 0, 0, 0, 0}, padded)
}

func TestUnpad(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	require.Equal([]byte{1, 2, 3}, Unpad([]byte{1, 2, 3, 0, 0, 0, 0, 0}))
	require.Equal([]byte{1, 0, 3}, Unpad([]byte{1, 0, 3}))
	require.Equal([]byte{0, 0, 0}, Unpad([]byte{0, 0, 0}))
	require.Empty(Unpad(nil))
}

func TestWindow(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	b := []byte{1, 2, 3, 4, 5, 6}
	require.Equal([]byte{1, 2, 3, 4}, Window(b, 0, 4))
	require.Equal([]byte{5, 6, 0, 0}, Window(b, 4, 8))
	require.Equal([]byte{0, 0}, Window(b, 8, 10))
}
