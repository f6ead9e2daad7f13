// Package resolver maps free text onto catalog products using the alias table and
// fuzzy matching against the live catalog.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/alias"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/normalize"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/similarity"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

const (
	// AliasCutoff is the similarity a token needs to borrow a fuzzy alias.
	AliasCutoff = 0.8
	// NameCutoff is the similarity a token needs to borrow a live product name.
	NameCutoff  = 0.7
	minTokenLen = 4
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"about", "your", "would", "could", "should", "there", "this", "that", "from",
		"some", "like", "know", "does", "also", "just", "really", "thing", "anything",
		"these", "those", "them", "they", "then", "than", "where", "which", "will",
		"been", "into", "over", "many", "more", "most", "very", "only", "good", "best",
		"better", "give", "other", "another", "instead", "medicines", "medication",
		"meds", "pills", "tablet", "tablets", "boxes", "pack", "packs", "today",
		"what", "with", "here", "it's", "i'll", "i'm", "think", "maybe", "usually",
		"lately", "still", "again", "both", "each", "every",
	} {
		stopWords[w] = struct{}{}
	}
	for _, w := range normalize.Vocabulary {
		stopWords[w] = struct{}{}
	}
}

var fixtureWords = []string{"test", "dummy", "sample", "fixture", "placeholder"}

// Finder resolves entities against an inventory.
type Finder struct {
	inventory catalog.Inventory
	aliases   *alias.Table
}

// NewFinder builds a Finder. A nil alias table means the built-in defaults.
func NewFinder(inventory catalog.Inventory, aliases *alias.Table) *Finder {
	if aliases == nil {
		aliases = alias.Default()
	}
	return &Finder{inventory: inventory, aliases: aliases}
}

// Find returns the products plausibly named or described by text, best match first.
// Ordering is by similarity of the product name to the whole text; equal scores keep
// discovery order so identical inputs give identical output.
func (f *Finder) Find(ctx context.Context, text string) ([]catalog.Product, error) {
	tokens := candidateTokens(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	all, err := f.inventory.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	nameTerms := productTerms(all)

	seen := make(map[string]struct{})
	var found []catalog.Product
	for _, token := range tokens {
		terms := f.candidateTerms(token, nameTerms)

		matches, err := f.inventory.FindProductsByName(ctx, terms)
		if err != nil {
			return nil, fmt.Errorf("find products by name: %w", err)
		}
		if len(matches) == 0 {
			matches, err = f.inventory.FindProductsByDescription(ctx, terms)
			if err != nil {
				return nil, fmt.Errorf("find products by description: %w", err)
			}
		}

		for _, p := range matches {
			key := strings.ToLower(p.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			found = append(found, p)
		}
	}

	Rank(found, text)
	return found, nil
}

// Rank sorts products by name similarity to text, keeping discovery order on ties.
func Rank(products []catalog.Product, text string) {
	query := strings.ToLower(strings.TrimSpace(text))
	scores := make(map[string]float64, len(products))
	for _, p := range products {
		scores[p.ID+"\x00"+p.Name] = similarity.Ratio(strings.ToLower(p.Name), query)
	}
	sort.SliceStable(products, func(i, j int) bool {
		return scores[products[i].ID+"\x00"+products[i].Name] > scores[products[j].ID+"\x00"+products[j].Name]
	})
}

// Longest resolves the single product a cart command refers to. Full product names
// found in the text win, longest first, so "Panadol Extra" beats "Panadol". When no
// full name is present the best Find result is used.
func (f *Finder) Longest(ctx context.Context, text string) (catalog.Product, bool, error) {
	all, err := f.inventory.ListProducts(ctx)
	if err != nil {
		return catalog.Product{}, false, fmt.Errorf("list products: %w", err)
	}

	byLength := append([]catalog.Product(nil), all...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Name) > len(byLength[j].Name)
	})

	lowered := strings.ToLower(text)
	for _, p := range byLength {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name != "" && strings.Contains(lowered, name) {
			return p, true, nil
		}
	}

	found, err := f.Find(ctx, text)
	if err != nil {
		return catalog.Product{}, false, err
	}
	if len(found) == 0 {
		return catalog.Product{}, false, nil
	}
	return found[0], true, nil
}

// DropFixtures removes obvious non-product test records from a result set.
func DropFixtures(products []catalog.Product) []catalog.Product {
	out := products[:0:0]
	for _, p := range products {
		if similarity.ContainsAnyWord(p.Name, fixtureWords) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f *Finder) candidateTerms(token string, nameTerms []string) []string {
	terms := []string{token}
	add := func(term string) {
		for _, existing := range terms {
			if existing == term {
				return
			}
		}
		terms = append(terms, term)
	}

	if canonical, ok := f.aliases.Lookup(token); ok {
		add(canonical)
	}
	if match, ok := similarity.Closest(token, f.aliases.Keys(), AliasCutoff); ok {
		if canonical, ok := f.aliases.Lookup(match.Value); ok {
			add(canonical)
		}
	}
	if match, ok := similarity.Closest(token, nameTerms, NameCutoff); ok {
		add(match.Value)
	}
	return terms
}

// Terms returns the words of text that entity resolution would look up.
func Terms(text string) []string {
	return candidateTokens(text)
}

// candidateTokens keeps the words worth looking up.
func candidateTokens(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range similarity.Tokens(text) {
		if len([]rune(token)) < minTokenLen {
			continue
		}
		if unicode.IsDigit([]rune(token)[0]) {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// productTerms lists lowercase product names and their significant words.
func productTerms(products []catalog.Product) []string {
	var terms []string
	seen := make(map[string]struct{})
	push := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	for _, p := range products {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			continue
		}
		push(name)
		for _, word := range similarity.Tokens(name) {
			if len([]rune(word)) >= minTokenLen && !unicode.IsDigit([]rune(word)[0]) {
				push(word)
			}
		}
	}
	return terms
}
