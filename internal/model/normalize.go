package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText reduces bibliographic text to a comparison key:
// accents stripped, case folded, punctuation and symbols removed, and
// whitespace collapsed to single spaces.
//
// Casers and transformers carry state, so new ones are built per call.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripAccents, s)
	if err != nil {
		stripped = s
	}

	folded := cases.Fold().String(stripped)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, folded)

	return strings.Join(strings.Fields(cleaned), " ")
}
