package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify converts a display name into a URL-safe identifier.
//
// Rules:
//  1. Decompose (NFD) and drop non-spacing marks, so "Fútbol" becomes "Futbol".
//  2. Lower-case.
//  3. Any run of characters outside [a-z0-9] becomes a single "-".
//  4. Leading and trailing "-" are trimmed.
//
// Distinct names may map to the same slug; the submission workflow treats
// that as a duplicate name. Slugify(Slugify(x)) == Slugify(x).
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
