package nntp

import (
	"bufio"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMessageID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc123@example.com", "<abc123@example.com>"},
		{"<abc123@example.com>", "<abc123@example.com>"},
		{"  abc123@example.com  ", "<abc123@example.com>"},
		{"<already>", "<already>"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatMessageID(c.in))
	}
}

func newTestReader(body string) *textproto.Reader {
	return textproto.NewReader(bufio.NewReader(strings.NewReader(body)))
}

func TestDrainDotBody(t *testing.T) {
	r := newTestReader("line one\r\nline two\r\n.\r\nleftover\r\n")
	drainDotBody(r)
	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "leftover", line)
}

func TestDotLineReaderReassemblesNewlines(t *testing.T) {
	r := newTestReader("hello\r\nworld\r\n.\r\n")
	dr := &dotLineReader{r: r}

	buf := make([]byte, 6)
	n, err := dr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(buf[:n]))
}
