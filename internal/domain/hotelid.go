package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHotelID folds a human-entered hotel id into its comparison form:
// accents stripped, runs of non [a-zA-Z0-9] collapsed into one hyphen,
// leading/trailing hyphens trimmed, lower-cased.
//
//	"Prodigy Gramado"   -> "prodigy-gramado"
//	"  Hotel São-Paulo" -> "hotel-sao-paulo"
//
// Every hotel-id comparison goes through this function.
func NormalizeHotelID(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	sep := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		sep = true
	}
	return b.String()
}

// SameHotel compares two ids in normalized form. Empty ids never match.
func SameHotel(a, b string) bool {
	na := NormalizeHotelID(a)
	return na != "" && na == NormalizeHotelID(b)
}

// PrettifyHotelID is the display-name fallback for ids missing from the
// hotel directory: separators become spaces and each word is capitalized.
func PrettifyHotelID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

// HotelIDRule documents the matching rule for admins editing hotel ids.
func HotelIDRule() string {
	return "Hotel ids are compared as slugs: lowercase, hyphen-separated, no accents " +
		"(e.g. Prodigy Gramado -> prodigy-gramado)."
}
