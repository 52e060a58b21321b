// Package text holds the normalization shared by card writes and query parsing.
// Equality filters only work because both sides go through NormalizeField.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeField lowercases, strips diacritics, applies NFKC and collapses
// whitespace. Used for company, team, domain and location values.
func NormalizeField(s string) string {
	s = norm.NFKC.String(s)
	s = foldAccents(s)
	s = cases.Lower(language.Und).String(s)
	return CollapseSpace(s)
}

// NormalizeQuery prepares free text for matching. It keeps accents out of the
// way like NormalizeField but leaves punctuation in place for the tokenizer.
func NormalizeQuery(s string) string {
	return NormalizeField(s)
}

// CollapseSpace trims s and replaces internal whitespace runs with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeAll normalizes every value and drops empties and duplicates,
// keeping first-seen order.
func NormalizeAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := NormalizeField(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
