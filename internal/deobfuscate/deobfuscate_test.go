package deobfuscate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsObfuscated(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"abc", true},          // too short
		{"a1b2c3d4e5f6", true}, // hex-only, long
		{"my.movie.2020.1080p", false},
		{"!!!###$$$", true},
		{"111111111111", true}, // >10 digits
		{"yEncPostedFile", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, isObfuscated(c.name), "isObfuscated(%q)", c.name)
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_j", sanitize(`a/b\c:d*e?f"g<h>i|j`))
}

func TestRunExtensionRepair(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "obscured_file_123")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0x00, 0x00, 0x00}, 0o644))

	n, err := Run(dir, "myrelease")
	require.NoError(t, err)
	assert.Greater(t, n, 0, "expected at least one rename")

	_, err = os.Stat(path + ".jpg")
	assert.NoError(t, err, "expected %s.jpg to exist", path)
}
