package yenc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("hello world"),
		bytes.Repeat([]byte{0x00, 0x0A, 0x0D, '='}, 10),
		make([]byte, 5000),
	}
	for _, want := range cases {
		encoded := Encode(want)
		got, err := Decode(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDecodeDoesNotValidateCRC(t *testing.T) {
	body := []byte("=ybegin line=128 size=5 name=x\n" + encodeBytes([]byte("hello")) + "\n=yend size=5 crc32=DEADBEEF\n")
	got, err := Decode(bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func encodeBytes(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		e := c + 42
		if needsEscape(e) {
			out = append(out, '=', e+64)
		} else {
			out = append(out, e)
		}
	}
	return string(out)
}

func TestDecodeWithPartHeader(t *testing.T) {
	body := []byte("=ybegin line=128 size=5 name=x\n=ypart begin=1 end=5\n" + encodeBytes([]byte("world")) + "\n=yend size=5\n")
	out, err := Decode(bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, []byte("world"), out)
}
