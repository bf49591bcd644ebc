package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEntryPoint(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"movie.rar", true},
		{"movie.part001.rar", true},
		{"movie.part01.rar", true},
		{"movie.part002.rar", false},
		{"movie.part2.rar", false},
		{"movie.r00", false},
		{"movie.r01", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsEntryPoint(c.name), "IsEntryPoint(%q)", c.name)
	}
}

func TestSanitizePath(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"a/b/c.txt", "a/b/c.txt", true},
		{"../../etc/passwd", "", false},
		{"/etc/passwd", "", false},
		{"a/../../b", "", false},
	}
	for _, c := range cases {
		got, ok := sanitizePath(c.in)
		assert.Equal(t, c.wantOK, ok, "sanitizePath(%q) ok", c.in)
		if ok {
			assert.Equal(t, c.want, got)
		}
	}
}
