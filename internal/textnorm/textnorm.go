// Package textnorm folds free-form header text into comparable forms.
//
// Headers in real exports arrive with accents ("Número", "MARÇO"), mixed
// case, stray punctuation and non-breaking spaces. Fold keeps word
// boundaries; Compact drops them entirely.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes, removes nonspacing marks, and recomposes.
func stripMarks(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases s, removes accents, turns every run of non-alphanumeric
// characters into a single space, and trims the result.
//
//	"Saldo  MARÇO/23" -> "saldo marco 23"
func Fold(s string) string {
	s = strings.ToLower(stripMarks(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Compact is Fold without separators.
//
//	"Número da Conta Judicial" -> "numerodacontajudicial"
func Compact(s string) string {
	return strings.ReplaceAll(Fold(s), " ", "")
}
