package text

import (
	"strings"
	"unicode"
)

// Similarity returns the trigram similarity of a and b in [0,1]: shared
// trigrams over the union. Words are padded with two leading spaces and one
// trailing space before slicing, so short words still produce trigrams.
func Similarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// BestSimilarity returns the highest Similarity of needle against any of the
// haystack values, and the value that produced it.
func BestSimilarity(needle string, haystack []string) (float64, string) {
	best, which := 0.0, ""
	for _, h := range haystack {
		if s := Similarity(needle, h); s > best {
			best, which = s, h
		}
	}
	return best, which
}

func trigrams(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
	}
	return out
}
