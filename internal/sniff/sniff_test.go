package sniff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"jpg", []byte{0xFF, 0xD8, 0xFF, 0x00}, "jpg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"riff-wav", append([]byte("RIFF\x00\x00\x00\x00"), []byte("WAVEfmt ")...), "wav"},
		{"riff-avi", append([]byte("RIFF\x00\x00\x00\x00"), []byte("AVI LIST")...), "avi"},
		{"zip-plain", append([]byte{'P', 'K', 0x03, 0x04}, make([]byte, 20)...), "zip"},
		{"gz", []byte{0x1F, 0x8B, 0x08}, "gz"},
		{"unknown", []byte{0x01, 0x02, 0x03}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Detect(c.data))
		})
	}
}

func TestDetectZipDocx(t *testing.T) {
	data := append([]byte{'P', 'K', 0x03, 0x04}, []byte("word/document.xml")...)
	assert.Equal(t, "docx", Detect(data))
}

func TestDetectFtypMP4(t *testing.T) {
	data := []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}
	assert.Equal(t, "mp4", Detect(data))
}
