package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips diacritics ("Notificación" becomes "Notificacion"). Case is
// preserved.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// key lowercases and folds s for keyword comparison.
func key(s string) string {
	return strings.ToLower(Fold(strings.TrimSpace(s)))
}
