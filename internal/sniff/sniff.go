// Package sniff implements the magic-byte file-type detector of spec.md
// §4.7 pass 1 and the magic-byte table in §6.
package sniff

import "bytes"

// PopularExtensions is the closed set of extensions the deobfuscator
// considers already-identified and leaves alone (spec §6).
var PopularExtensions = map[string]bool{}

func init() {
	for _, group := range [][]string{
		{"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "iso", "dmg"},
		{"mp4", "mkv", "avi", "mov", "wmv", "flv", "webm", "m4v", "mpg", "mpeg", "m2ts", "ts"},
		{"mp3", "flac", "wav", "aac", "ogg", "wma", "m4a", "opus"},
		{"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg", "tiff", "ico"},
		{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "rtf", "odt", "ods", "odp"},
		{"epub", "mobi", "azw", "azw3", "fb2", "cbr", "cbz"},
		{"srt", "sub", "idx", "ass", "ssa", "vtt"},
		{"exe", "dll", "dmg", "app", "apk", "deb", "rpm"},
		{"nfo", "sfv", "nzb", "torrent"},
	} {
		for _, ext := range group {
			PopularExtensions[ext] = true
		}
	}
}

// Detect inspects data (callers should read at least 64 KiB per spec: the
// ISO 9660 signature is checked at offsets past 0x8000, while ZIP
// disambiguation samples only the first 512 bytes) and returns the
// extension (without a leading dot), or "" if no signature matched.
func Detect(data []byte) string {
	switch {
	case hasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "jpg"
	case hasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case hasPrefix(data, []byte("GIF87a")), hasPrefix(data, []byte("GIF89a")):
		return "gif"
	case hasPrefix(data, []byte("BM")):
		return "bmp"
	case hasPrefix(data, []byte("RIFF")):
		return detectRIFF(data)
	case hasPrefix(data, []byte{'P', 'K', 0x05, 0x06}):
		return "zip"
	case hasPrefix(data, []byte{'P', 'K', 0x03, 0x04}):
		return detectZIP(data)
	case hasPrefix(data, []byte("Rar!\x1A\x07\x00")), hasPrefix(data, []byte("Rar!\x1A\x07\x01\x00")):
		return "rar"
	case hasPrefix(data, []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}):
		return "7z"
	case hasPrefix(data, []byte{0x1F, 0x8B, 0x08}):
		return "gz"
	case hasPrefix(data, []byte("BZh")):
		return "bz2"
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		return detectFtyp(data)
	case hasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "mkv"
	case hasPrefix(data, []byte{0x00, 0x00, 0x01, 0xBA}), hasPrefix(data, []byte{0x00, 0x00, 0x01, 0xB3}):
		return "mpg"
	case hasPrefix(data, []byte("ID3")), hasPrefix(data, []byte{0xFF, 0xFB}):
		return "mp3"
	case hasPrefix(data, []byte("fLaC")):
		return "flac"
	case hasPrefix(data, []byte("OggS")):
		return "ogg"
	case hasPrefix(data, []byte("%PDF")):
		return "pdf"
	case hasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}):
		return "doc"
	case len(data) >= 0x8806 && bytes.Equal(data[0x8801:0x8806], []byte("CD001")):
		return "iso"
	case len(data) >= 0x9006 && bytes.Equal(data[0x9001:0x9006], []byte("CD001")):
		return "iso"
	case len(data) >= 0x8006 && bytes.Equal(data[0x8001:0x8006], []byte("CD001")):
		return "iso"
	}
	return ""
}

func detectRIFF(data []byte) string {
	if len(data) < 12 {
		return "wav"
	}
	switch string(data[8:12]) {
	case "WAVE":
		return "wav"
	case "AVI ":
		return "avi"
	case "WEBP":
		return "webp"
	}
	return ""
}

func detectZIP(data []byte) string {
	n := len(data)
	if n > 512 {
		n = 512
	}
	sample := data[:n]
	switch {
	case bytes.Contains(sample, []byte("word/")):
		return "docx"
	case bytes.Contains(sample, []byte("xl/")):
		return "xlsx"
	case bytes.Contains(sample, []byte("ppt/")):
		return "pptx"
	case bytes.Contains(sample, []byte("epub")):
		return "epub"
	}
	return "zip"
}

func detectFtyp(data []byte) string {
	if len(data) < 12 {
		return "mp4"
	}
	switch string(data[8:12]) {
	case "M4A ":
		return "m4a"
	case "M4V ":
		return "m4v"
	case "qt  ":
		return "mov"
	}
	return "mp4"
}

func hasPrefix(data, prefix []byte) bool {
	return len(data) >= len(prefix) && bytes.Equal(data[:len(prefix)], prefix)
}
