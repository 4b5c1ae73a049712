package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFileNameRunes bounds archived attachment names. Gmail allows far longer
// names than most object stores like in a key segment.
const maxFileNameRunes = 120

// ErrInvalidFileName is returned for names that cannot be archived.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName makes an attachment name safe to use as one key segment.
// Separators become underscores, control characters are dropped and long names
// are shortened with their extension kept. Traversal patterns are rejected.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('_')
		case unicode.IsControl(r) || r == utf8.RuneError:
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return "", ErrInvalidFileName
	}
	return shorten(s, maxFileNameRunes), nil
}

func shorten(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	ext := path.Ext(s)
	if utf8.RuneCountInString(ext) >= limit {
		ext = ""
	}
	stem := []rune(strings.TrimSuffix(s, ext))
	return string(stem[:limit-utf8.RuneCountInString(ext)]) + ext
}
