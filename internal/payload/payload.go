// Package payload converts wire payloads into bytes safe to persist inside a
// card bundle. Text payloads are stored as their UTF-8 encoding; binary
// payloads arrive base64-encoded. The package also owns file name hygiene for
// the caller-influenced names (image keys, media file names, the public key
// display name), since those strings come straight from request bodies.
package payload

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"cardd/internal/types"
)

const maxFileNameLength = 255

// Decode turns a base64-encoded payload into the exact bytes to write.
// A malformed body surfaces types.ErrDecode rather than partial garbage.
func Decode(b64 string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, types.Err(types.ErrDecode, err, "")
	}
	return b, nil
}

// SafeFileName reports whether name can be used verbatim as a file name
// inside a bundle directory. Rejects anything that could escape the bundle or
// hide from directory listings: path separators, control characters, dot
// names, leading dots.
func SafeFileName(name string) bool {
	if name == "" || len(name) > maxFileNameLength {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
		switch r {
		case '/', '\\', ':':
			return false
		}
	}
	return true
}

// SanitizeDisplayName maps a free-text display name to something usable in a
// file name. Control characters are dropped, path separators become
// underscores, leading and trailing dots and spaces are trimmed. Returns
// fallback when nothing survives.
func SanitizeDisplayName(name, fallback string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// drop
		case r == '/' || r == '\\' || r == ':':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return fallback
	}
	return out
}

// TruncateName shortens name to at most max bytes without splitting a UTF-8
// sequence. Callers appending a suffix to a sanitized name use this to keep
// the final file name under the filesystem's 255-byte limit.
func TruncateName(name string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(name) <= max {
		return name
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
