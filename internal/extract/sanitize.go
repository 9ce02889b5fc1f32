package extract

import (
	"strings"
	"unicode/utf8"
)

// Sanitize makes s safe to embed in an XML text node of a template later on.
// It never fails. The five predefined entities and character references to
// allowed code points are kept; any other '&' becomes "&amp;". Non-breaking
// spaces become plain spaces and code points XML 1.0 does not allow are
// removed.
func Sanitize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
			// invalid byte
		case r == '&':
			if n := entityLen(s[i:]); n > 0 {
				sb.WriteString(s[i : i+n])
				i += n
				continue
			}
			sb.WriteString("&amp;")
		case r == '\u00a0', r == '\u2007', r == '\u202f':
			sb.WriteByte(' ')
		case allowedXMLChar(r):
			sb.WriteRune(r)
		}
		i += size
	}
	return sb.String()
}

// allowedXMLChar implements the Char production of XML 1.0.
func allowedXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// predefinedEntities are the only named entities XML defines without a DTD.
var predefinedEntities = map[string]bool{"amp": true, "lt": true, "gt": true, "quot": true, "apos": true}

// entityLen returns the length of the predefined entity or character
// reference at the start of s ("&amp;", "&#38;", "&#x26;"), or 0 if s does
// not start with one. Character references must name an allowed XML char.
func entityLen(s string) int {
	if len(s) < 3 || s[0] != '&' {
		return 0
	}
	end := strings.IndexByte(s, ';')
	if end < 2 || end > 10 {
		return 0
	}
	body := s[1:end]
	if body[0] != '#' {
		if predefinedEntities[body] {
			return end + 1
		}
		return 0
	}

	digits, base := body[1:], 10
	if len(digits) > 0 && (digits[0] == 'x' || digits[0] == 'X') {
		digits, base = digits[1:], 16
	}
	if digits == "" {
		return 0
	}
	var v rune
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		var d rune
		switch {
		case isDigit(c):
			d = rune(c - '0')
		case base == 16 && c >= 'a' && c <= 'f':
			d = rune(c-'a') + 10
		case base == 16 && c >= 'A' && c <= 'F':
			d = rune(c-'A') + 10
		default:
			return 0
		}
		v = v*rune(base) + d
	}
	if !allowedXMLChar(v) {
		return 0
	}
	return end + 1
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
