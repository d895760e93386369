package fileutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mkessler/zettelwerk/internal/core/domain"
)

// magicBytes maps allowed extensions to their known leading signatures.
var magicBytes = map[string][][]byte{
	"pdf":  {[]byte("%PDF")},
	"jpg":  {{0xFF, 0xD8, 0xFF}},
	"jpeg": {{0xFF, 0xD8, 0xFF}},
	"png":  {{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}},
	"tiff": {{'I', 'I', 0x2A, 0x00}, {'M', 'M', 0x00, 0x2A}},
	"bmp":  {[]byte("BM")},
}

var maxMagicLen = func() int {
	max := 0
	for _, sigs := range magicBytes {
		for _, sig := range sigs {
			if len(sig) > max {
				max = len(sig)
			}
		}
	}
	return max
}()

// Extension returns the lowercased extension of a filename without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// ValidateMagicBytes reports whether the file header matches a known
// signature for the claimed extension. Unknown extensions always fail.
func ValidateMagicBytes(path, ext string) bool {
	sigs, ok := magicBytes[strings.TrimPrefix(strings.ToLower(ext), ".")]
	if !ok {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, maxMagicLen)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return false
	}
	header = header[:n]

	for _, sig := range sigs {
		if bytes.HasPrefix(header, sig) {
			return true
		}
	}
	return false
}

// Validate runs the three intake gates in order: extension allow-list,
// size cap, magic-byte signature. It fails fast with a typed
// ValidationError and has no side effects.
func Validate(path, originalName string, fileSize int64, allowed []string, maxBytes int64) error {
	ext := Extension(originalName)

	permitted := false
	for _, a := range allowed {
		if ext == strings.TrimPrefix(strings.ToLower(strings.TrimSpace(a)), ".") {
			permitted = true
			break
		}
	}
	if !permitted {
		return &domain.ValidationError{
			Filename: originalName,
			Message:  fmt.Sprintf("file type %q not allowed (allowed: %s)", "."+ext, strings.Join(allowed, ", ")),
		}
	}

	if fileSize > maxBytes {
		return &domain.ValidationError{
			Filename: originalName,
			Message: fmt.Sprintf("file too large (%.1f MB, maximum %.0f MB)",
				float64(fileSize)/(1024*1024), float64(maxBytes)/(1024*1024)),
		}
	}

	if !ValidateMagicBytes(path, ext) {
		return &domain.ValidationError{
			Filename: originalName,
			Message:  fmt.Sprintf("file content does not match file type %q", "."+ext),
		}
	}

	return nil
}

var (
	invalidChars    = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	repeatedUnder   = regexp.MustCompile(`_+`)
	slugNonAlnum    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace  = regexp.MustCompile(`\s+`)
	slugRepeatDash  = regexp.MustCompile(`-+`)
	umlautReplacer  = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")
)

// SanitizeFilename reduces a client-supplied name to a safe storage name:
// basename only, invalid characters replaced, underscores collapsed,
// leading/trailing dots and spaces stripped.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = invalidChars.ReplaceAllString(name, "_")
	name = repeatedUnder.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" || name == "_" {
		return "unnamed"
	}
	return name
}

// StoredFilename prefixes the sanitized name with a short random id so
// storage names never collide regardless of sanitization.
func StoredFilename(originalName string) string {
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return prefix + "_" + SanitizeFilename(originalName)
}

// Slug derives a stable URL- and path-safe segment from a scope name.
func Slug(name string) string {
	s := umlautReplacer.Replace(strings.ToLower(name))
	s = slugNonAlnum.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	s = slugRepeatDash.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
