// Package normalize fixes typos in the assistant's control vocabulary before any
// other processing looks at a message.
package normalize

import (
	"strings"
	"unicode"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/similarity"
)

// Threshold is the minimum similarity for a token to be rewritten.
const Threshold = 0.7

// Vocabulary lists the trigger words the router and the dialogue engine depend on.
var Vocabulary = []string{
	// search and price
	"have", "price", "cost", "much", "buy", "purchase", "order", "stock", "available",
	"need", "want", "looking", "find", "search", "sell", "medicine", "something", "tell",
	// cart
	"add", "remove", "delete", "cancel", "clear", "empty", "cart", "checkout", "pay",
	"place", "show", "view", "everything",
	// confirmation and quantity
	"yes", "yeah", "sure", "okay", "please", "take", "make", "change", "update",
	"actually", "sorry", "first", "second", "third", "fourth", "fifth", "option",
	"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	// store info and small talk
	"hours", "open", "close", "store", "when", "hello", "thanks", "thank", "help",
	// safety
	"prescription", "without", "script", "dont", "don't", "illegal",
	// health
	"side", "effects", "dose", "dosage", "symptom", "symptoms", "doctor", "recommend",
	"feel", "feeling", "pregnant",
}

// preserved words are left alone even when they look like a vocabulary word.
var preserved = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "and", "for", "with", "that", "this", "then", "than", "them", "they",
		"what", "who", "how", "can", "could", "would", "should", "will", "any", "are",
		"you", "your", "from", "about", "also", "just", "some", "more", "it's", "its",
		"i'm", "i'll", "all", "was", "were", "been", "get", "got", "give", "like",
		"there", "here", "is", "my", "me", "our", "out", "off", "too", "not", "but",
		"after", "before", "does", "did", "today", "really", "lately", "hey", "card",
		// symptom words that sit close to store vocabulary
		"sore", "nose", "pain", "fever", "cough", "cold", "flu", "rash", "throat", "head",
		// product forms: "spray" is one edit from "pay", "lotion" from "option"
		"spray", "sprays", "lotion", "lotions", "cream", "creams", "gel", "drops", "syrup",
		"tablet", "tablets", "capsule", "capsules", "ointment", "nasal", "lozenge", "lozenges",
		"patch", "patches", "powder", "balm", "wash", "inhaler", "solution", "extra", "vitamin",
	} {
		preserved[w] = struct{}{}
	}
	for _, w := range Vocabulary {
		preserved[w] = struct{}{}
	}
}

// shortWords expands the short forms people type in chat.
var shortWords = map[string]string{
	"u":   "you",
	"ur":  "your",
	"r":   "are",
	"pls": "please",
	"plz": "please",
	"hv":  "have",
	"thx": "thanks",
	"ty":  "thanks",
}

// Protected is a set of words Correct never rewrites, typically catalog and alias terms.
type Protected map[string]struct{}

// NewProtected collects the words of texts.
func NewProtected(texts ...string) Protected {
	p := make(Protected)
	p.Add(texts...)
	return p
}

// Add collects the words of texts.
func (p Protected) Add(texts ...string) {
	for _, text := range texts {
		for _, word := range similarity.Tokens(text) {
			p[word] = struct{}{}
		}
	}
}

func (p Protected) has(word string) bool {
	_, ok := p[word]
	return ok
}

// Correct lowercases text and rewrites tokens that are close to a vocabulary word.
// Product names, words in keep and other unknown words pass through untouched.
func Correct(text string, keep ...Protected) string {
	fields := strings.Fields(strings.ToLower(text))
	for i, field := range fields {
		fields[i] = correctToken(field, keep)
	}
	return strings.Join(fields, " ")
}

func correctToken(field string, keep []Protected) string {
	start := strings.IndexFunc(field, isWordRune)
	if start < 0 {
		return field
	}
	end := strings.LastIndexFunc(field, isWordRune) + 1
	prefix, core, suffix := field[:start], field[start:end], field[end:]

	if replacement, ok := shortWords[core]; ok {
		return prefix + replacement + suffix
	}
	if len([]rune(core)) < 3 || hasDigit(core) {
		return field
	}
	if _, ok := preserved[core]; ok {
		return field
	}
	for _, p := range keep {
		if p.has(core) {
			return field
		}
	}

	match, ok := similarity.Closest(core, Vocabulary, Threshold)
	if !ok {
		return field
	}
	return prefix + match.Value + suffix
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
