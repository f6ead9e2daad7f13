package assistant

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/similarity"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

const maxQuantity = 99

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// positional words introduce an option number rather than a quantity.
var positional = map[string]struct{}{"option": {}, "number": {}, "no": {}, "item": {}}

// parseQuantity finds the first quantity in text: a digit token or a number word up to
// ten. It defaults to 1. The matched word is returned so callers can treat "one" specially.
func parseQuantity(text string) (int, bool, string) {
	fields := strings.Fields(strings.ToLower(text))
	prev := ""
	for _, field := range fields {
		if strings.HasPrefix(field, "#") {
			prev = "#"
			continue
		}
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		_, afterPosition := positional[prev]
		prev = word
		if word == "" || afterPosition {
			continue
		}
		if n, err := strconv.Atoi(word); err == nil {
			if n >= 1 && n <= maxQuantity {
				return n, true, word
			}
			continue
		}
		if n, ok := wordNumbers[word]; ok {
			return n, true, word
		}
	}
	return 1, false, ""
}

// confirmationQuantity applies an explicit quantity from a confirmation. "one" is ignored
// when a larger quantity is pending so "the first one" does not override it.
func confirmationQuantity(text string, pending int) int {
	if pending < 1 {
		pending = 1
	}
	quantity, explicit, word := parseQuantity(text)
	if !explicit || (word == "one" && pending > 1) {
		return pending
	}
	return quantity
}

var ordinals = map[string]int{
	"first": 0, "1st": 0, "second": 1, "2nd": 1, "third": 2, "3rd": 2,
	"fourth": 3, "4th": 3, "fifth": 4, "5th": 4,
}

// ordinalIndex finds a position reference: "second", "2nd", "option 2", "#2", "last",
// or a message that is only a number.
func ordinalIndex(text string, n int) (int, bool) {
	words := similarity.Tokens(text)
	valid := func(i int) (int, bool) { return i, i >= 0 && i < n }

	for i, word := range words {
		if idx, ok := ordinals[word]; ok {
			return valid(idx)
		}
		if word == "last" {
			return valid(n - 1)
		}
		if _, ok := positional[word]; ok && i+1 < len(words) {
			if num, err := strconv.Atoi(words[i+1]); err == nil {
				return valid(num - 1)
			}
			if num, ok := wordNumbers[words[i+1]]; ok {
				return valid(num - 1)
			}
		}
	}
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, "#") {
			if num, err := strconv.Atoi(strings.TrimLeft(field, "#")); err == nil {
				return valid(num - 1)
			}
		}
	}
	if len(words) == 1 {
		if num, err := strconv.Atoi(words[0]); err == nil {
			return valid(num - 1)
		}
	}
	return 0, false
}

const fuzzySelectCutoff = 0.6

// selectCandidate picks one of several search candidates: position first, then a
// whole-message fuzzy match, then the unique best token overlap. Ties never pick.
func selectCandidate(text string, candidates []catalog.Product) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	if idx, ok := ordinalIndex(text, len(candidates)); ok {
		return idx, true
	}
	if idx, ok := fuzzySelect(text, candidates); ok {
		return idx, true
	}
	return overlapSelect(text, candidates)
}

func fuzzySelect(text string, candidates []catalog.Product) (int, bool) {
	query := strings.Join(similarity.Tokens(text), " ")
	best, bestScore, tied := -1, 0.0, false
	for i, c := range candidates {
		score := similarity.Ratio(query, strings.ToLower(c.Name))
		if score <= fuzzySelectCutoff {
			continue
		}
		switch {
		case best == -1 || score > bestScore:
			best, bestScore, tied = i, score, false
		case score == bestScore:
			tied = true
		}
	}
	return best, best != -1 && !tied
}

func overlapSelect(text string, candidates []catalog.Product) (int, bool) {
	words := make(map[string]struct{})
	for _, w := range similarity.Tokens(text) {
		words[w] = struct{}{}
	}

	best, bestScore, tied := -1, 0, false
	for i, c := range candidates {
		score := 0
		for _, w := range similarity.Tokens(c.Name) {
			if len([]rune(w)) < 3 {
				continue
			}
			if _, ok := words[w]; ok {
				score++
			}
		}
		if score == 0 {
			continue
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = i, score, false
		case score == bestScore:
			tied = true
		}
	}
	return best, best != -1 && !tied
}

// BulkQuantityPolicy decides the per-item quantity of an "add all" request.
type BulkQuantityPolicy string

const (
	// BulkQuantityOne adds one of each item.
	BulkQuantityOne BulkQuantityPolicy = "one"
	// BulkQuantityPending adds the session's pending quantity of each item.
	BulkQuantityPending BulkQuantityPolicy = "pending"
)

// ParseBulkQuantityPolicy validates a configured policy name.
func ParseBulkQuantityPolicy(s string) (BulkQuantityPolicy, error) {
	switch p := BulkQuantityPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return BulkQuantityOne, nil
	case BulkQuantityOne, BulkQuantityPending:
		return p, nil
	default:
		return "", fmt.Errorf("unknown bulk add quantity policy %q", s)
	}
}

// Quantity returns the per-item quantity under the policy.
func (p BulkQuantityPolicy) Quantity(pending int) int {
	if p == BulkQuantityPending && pending > 1 {
		return pending
	}
	return 1
}
