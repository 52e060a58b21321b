package text

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "for": {}, "from": {}, "has": {}, "have": {}, "i": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "looking": {}, "me": {}, "need": {},
	"of": {}, "on": {}, "or": {}, "our": {}, "someone": {}, "somebody": {},
	"that": {}, "the": {}, "their": {}, "to": {}, "want": {}, "we": {}, "who": {},
	"with": {}, "worked": {}, "works": {}, "work": {}, "years": {}, "year": {},
	"experience": {}, "person": {}, "people": {}, "find": {}, "hire": {},
}

// IsStopWord reports whether t carries no search signal on its own.
func IsStopWord(t string) bool {
	_, ok := stopWords[t]
	return ok
}

// Tokenize splits already-normalized text into word tokens. Characters that
// commonly live inside technology names (+, #, .) are kept inside a token,
// trailing dots are dropped.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#' && r != '.'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Terms returns the distinct non-stop-word tokens of s in first-seen order.
func Terms(s string) []string {
	tokens := Tokenize(s)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if IsStopWord(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Phrases returns the token set of s for phrase-overlap scoring: every term
// plus every adjacent pair of terms joined by a space.
func Phrases(s string) []string {
	terms := Terms(s)
	out := make([]string, 0, len(terms)*2)
	out = append(out, terms...)
	for i := 0; i+1 < len(terms); i++ {
		out = append(out, terms[i]+" "+terms[i+1])
	}
	return out
}
