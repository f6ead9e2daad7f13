// Package similarity holds the string scoring primitives shared by the normalizer,
// the router and the entity finder.
package similarity

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the sequence-matcher similarity of a and b in [0, 1].
// Two empty strings are identical.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(runes(a), runes(b))
	return m.Ratio()
}

// Distance is the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Match is a scored candidate.
type Match struct {
	Value string
	Index int
	Score float64
}

// Closest returns the candidate with the highest Ratio to word that reaches cutoff.
// Equal scores prefer the smaller edit distance, then the earlier candidate.
func Closest(word string, candidates []string, cutoff float64) (Match, bool) {
	best := Match{Index: -1}
	bestDistance := 0
	for i, candidate := range candidates {
		score := Ratio(word, candidate)
		if score < cutoff {
			continue
		}
		distance := Distance(word, candidate)
		if best.Index == -1 || score > best.Score || (score == best.Score && distance < bestDistance) {
			best = Match{Value: candidate, Index: i, Score: score}
			bestDistance = distance
		}
	}
	return best, best.Index != -1
}

// Tokens lowercases text and splits it into words, trimming surrounding punctuation.
func Tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			out = append(out, word)
		}
	}
	return out
}

// ContainsWord reports whether phrase occurs in text on word boundaries.
// Multi-word phrases are matched against the token sequence.
func ContainsWord(text, phrase string) bool {
	words := Tokens(text)
	needle := Tokens(phrase)
	if len(needle) == 0 || len(needle) > len(words) {
		return false
	}
	for i := 0; i+len(needle) <= len(words); i++ {
		matched := true
		for j := range needle {
			if words[i+j] != needle[j] {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// ContainsAnyWord reports whether any phrase occurs on word boundaries.
func ContainsAnyWord(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if ContainsWord(text, phrase) {
			return true
		}
	}
	return false
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
