package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameBytes bounds sanitized names so derived storage keys stay well
// under object store key limits.
const MaxFileNameBytes = 255

// ErrInvalidFileName is returned for names that cannot become a storage key segment.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName makes an uploaded name safe as one storage key segment.
// Path separators become "_", control characters are dropped and traversal
// patterns are rejected. Long names are cut at a rune boundary, keeping the
// extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r) || r == utf8.RuneError:
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return "", ErrInvalidFileName
	}
	if len(s) > MaxFileNameBytes {
		s = shorten(s, MaxFileNameBytes)
	}
	return s, nil
}

func shorten(s string, limit int) string {
	ext := path.Ext(s)
	if len(ext) >= limit/2 {
		ext = ""
	}
	stem := s[:len(s)-len(ext)]
	budget := limit - len(ext)
	cut := 0
	for i := range stem {
		if i > budget {
			break
		}
		cut = i
	}
	if len(stem) <= budget {
		cut = len(stem)
	}
	return stem[:cut] + ext
}
