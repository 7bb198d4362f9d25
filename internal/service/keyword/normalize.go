package keyword

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize puts text in NFC and applies Unicode case folding, so that
// "Straße", "STRASSE" and a decomposed "strasse" compare equal.
func normalize(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// tokenize splits normalized text into words of letters and digits.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.Is(unicode.Mn, r)
	})
}

func nfc(s string) string {
	return norm.NFC.String(s)
}
