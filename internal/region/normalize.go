package region

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s for matching: diacritics stripped, lower-cased, and
// internal whitespace collapsed to single spaces.
func Normalize(s string) string {
	// transform.Chain holds state, so each call builds its own.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// bigrams returns the distinct two-rune substrings of s in first-seen order.
func bigrams(s string) []string {
	if utf8.RuneCountInString(s) < 2 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	r := []rune(s)
	for i := 0; i+1 < len(r); i++ {
		g := string(r[i : i+2])
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// displayName title-cases names published in all capitals ("KAB. PEKALONGAN"
// becomes "Kab. Pekalongan") and leaves mixed-case names alone.
func displayName(name string) string {
	if name != strings.ToUpper(name) {
		return name
	}
	return cases.Title(language.Indonesian).String(name)
}
