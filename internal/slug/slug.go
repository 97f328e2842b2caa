// Package slug turns names and titles into URL-safe identifiers.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes accented characters and drops everything outside ASCII.
var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Make lower-cases s, strips characters other than letters, digits,
// underscores, hyphens and spaces, and joins the words with single hyphens.
func Make(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingSep = true
		}
	}
	return strings.Trim(b.String(), "-_")
}

// Truncate cuts s to at most n bytes without leaving a trailing hyphen.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-")
}

// WithSuffix appends "-<n>" to base, keeping the result within max bytes.
func WithSuffix(base string, n, max int) string {
	suffix := "-" + strconv.Itoa(n)
	return Truncate(base, max-len(suffix)) + suffix
}
