// Package deobfuscate implements the two-pass filename repair of spec.md
// §4.7: magic-byte extension repair, then principal-file rename using an
// obfuscation heuristic.
package deobfuscate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/datallboy/gonzb/internal/sniff"
)

const sniffReadSize = 64 * 1024

var skipDirNames = map[string]bool{
	"VIDEO_TS": true, "AUDIO_TS": true, "BDMV": true, "CERTIFICATE": true,
}

var excludedPrincipalExt = map[string]bool{
	".par2": true, ".sfv": true, ".nfo": true, ".txt": true, ".srr": true,
}

// Run executes both passes over the files directly under dir (not
// recursive), using hint (typically the download directory's base name)
// as the candidate name for the renamed principal file. It returns the
// number of files renamed.
func Run(dir, hint string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("deobfuscate: read dir: %w", err)
	}

	renamed := 0
	if n, err := repairExtensions(dir, entries); err != nil {
		return renamed, err
	} else {
		renamed += n
	}

	// Re-read: pass 1 may have renamed files.
	entries, err = os.ReadDir(dir)
	if err != nil {
		return renamed, fmt.Errorf("deobfuscate: read dir: %w", err)
	}
	n, err := renamePrincipal(dir, entries, hint)
	if err != nil {
		return renamed, err
	}
	renamed += n
	return renamed, nil
}

func repairExtensions(dir string, entries []os.DirEntry) (int, error) {
	renamed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		if ext != "" && sniff.PopularExtensions[ext] {
			continue
		}

		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		buf := make([]byte, sniffReadSize)
		n, _ := f.Read(buf)
		f.Close()

		detected := sniff.Detect(buf[:n])
		if detected == "" {
			continue
		}

		target := uniquePath(dir, name+"."+detected)
		if err := os.Rename(path, target); err != nil {
			continue
		}
		renamed++
	}
	return renamed, nil
}

// uniquePath appends _1, _2, ... _999 before the extension until the
// candidate path does not exist (spec §4.7 pass 1).
func uniquePath(dir, candidate string) string {
	path := filepath.Join(dir, candidate)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(candidate)
	stem := strings.TrimSuffix(candidate, ext)
	for i := 1; i <= 999; i++ {
		alt := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(alt); os.IsNotExist(err) {
			return alt
		}
	}
	return path
}

type fileInfo struct {
	name string
	size int64
}

func renamePrincipal(dir string, entries []os.DirEntry, hint string) (int, error) {
	for _, e := range entries {
		if e.IsDir() && skipDirNames[e.Name()] {
			return 0, nil
		}
	}

	var files []fileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), size: info.Size()})
	}
	if len(files) == 0 {
		return 0, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].size > files[j].size })

	largest := files[0]
	ext := strings.ToLower(filepath.Ext(largest.name))
	if excludedPrincipalExt[ext] {
		return 0, nil
	}
	stem := strings.TrimSuffix(largest.name, filepath.Ext(largest.name))
	if !isObfuscated(stem) {
		return 0, nil
	}
	if len(files) > 1 {
		second := files[1].size
		if second > 0 && float64(largest.size) < 1.5*float64(second) {
			return 0, nil
		}
	}

	sanitized := sanitize(hint)
	if sanitized == "" {
		return 0, nil
	}

	renamed := 0
	for _, f := range files {
		fExt := filepath.Ext(f.name)
		fStem := strings.TrimSuffix(f.name, fExt)
		if fStem != stem {
			continue
		}
		newName := sanitized + fExt
		oldPath := filepath.Join(dir, f.name)
		newPath := filepath.Join(dir, newName)
		if oldPath == newPath {
			continue
		}
		if err := os.Rename(oldPath, newPath); err == nil {
			renamed++
		}
	}
	return renamed, nil
}

var digitRE = regexp.MustCompile(`[0-9]`)

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// isObfuscated applies the heuristic of spec §4.7.
func isObfuscated(stem string) bool {
	if len(stem) < 5 {
		return true
	}

	var special, digits, alpha, vowels, hexChars int
	for _, r := range stem {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			alpha++
			switch unicode.ToLower(r) {
			case 'a', 'e', 'i', 'o', 'u':
				vowels++
			}
		default:
			special++
		}
		if isHexDigit(r) {
			hexChars++
		}
	}
	n := len([]rune(stem))

	if special > n/2 {
		return true
	}
	if digits > n/2 && alpha < 3 {
		return true
	}
	if hexChars > n*3/4 && n > 8 {
		return true
	}
	if strings.HasPrefix(strings.ToLower(stem), "f7f8f9") || strings.Contains(strings.ToLower(stem), "yenc") {
		return true
	}
	if len(digitRE.FindAllString(stem, -1)) > 10 {
		return true
	}
	if alpha > 8 && vowels < alpha/4 {
		return true
	}
	return false
}

var unsafeCharsRE = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// sanitize replaces filesystem-unsafe characters with '_' (spec §4.7).
func sanitize(name string) string {
	return unsafeCharsRE.ReplaceAllString(name, "_")
}
