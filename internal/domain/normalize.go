package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a display name into the matching key used for identity
// resolution: lower case, diacritics stripped, whitespace collapsed.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = StripDiacritics(name)
	return strings.Join(strings.Fields(name), " ")
}

// StripDiacritics removes combining marks after NFD decomposition, so that
// "São Paulo Comércio" and "Sao Paulo Comercio" normalize identically.
func StripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
