package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

func names(products []catalog.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestFindBrandAlias(t *testing.T) {
	finder := NewFinder(catalog.NewMemoryStore(catalog.Seed()), nil)

	got, err := finder.Find(context.Background(), "do you have tylenol")
	require.NoError(t, err)
	assert.Contains(t, names(got), "Paracetamol 500mg")
}

func TestFindMisspelledBrand(t *testing.T) {
	finder := NewFinder(catalog.NewMemoryStore(catalog.Seed()), nil)

	got, err := finder.Find(context.Background(), "pandol")
	require.NoError(t, err)
	assert.Contains(t, names(got), "Paracetamol 500mg")
	assert.Contains(t, names(got), "Panadol Extra")
}

func TestFindMisspelledName(t *testing.T) {
	finder := NewFinder(catalog.NewMemoryStore(catalog.Seed()), nil)

	got, err := finder.Find(context.Background(), "asprin")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Aspirin 300mg", got[0].Name)
}

func TestFindFallsBackToDescription(t *testing.T) {
	finder := NewFinder(catalog.NewMemoryStore(catalog.Seed()), nil)

	got, err := finder.Find(context.Background(), "something for my sore throat")
	require.NoError(t, err)
	assert.Equal(t, []string{"Strepsils Lozenges"}, names(got))
}

func TestFindIgnoresStopWordsAndVocabulary(t *testing.T) {
	finder := NewFinder(catalog.NewMemoryStore(catalog.Seed()), nil)

	got, err := finder.Find(context.Background(), "what about this one")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindDeduplicatesByName(t *testing.T) {
	store := catalog.NewMemoryStore([]catalog.Product{
		{ID: "a", Name: "Zinc Tablets", Description: "zinc"},
		{ID: "b", Name: "zinc tablets", Description: "zinc"},
	})
	finder := NewFinder(store, nil)

	got, err := finder.Find(context.Background(), "zinc")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestFindTiesKeepDiscoveryOrder(t *testing.T) {
	first := catalog.Product{ID: "1", Name: "Alpha Tab"}
	second := catalog.Product{ID: "2", Name: "Alpha Tac"}

	forward := NewFinder(catalog.NewMemoryStore([]catalog.Product{first, second}), nil)
	got, err := forward.Find(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Tab", "Alpha Tac"}, names(got))

	again, err := forward.Find(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, names(got), names(again))

	reversed := NewFinder(catalog.NewMemoryStore([]catalog.Product{second, first}), nil)
	got, err = reversed.Find(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Tac", "Alpha Tab"}, names(got))
}

func TestLongestPrefersFullName(t *testing.T) {
	store := catalog.NewMemoryStore([]catalog.Product{
		{ID: "1", Name: "Panadol"},
		{ID: "2", Name: "Panadol Extra"},
	})
	finder := NewFinder(store, nil)

	got, ok, err := finder.Longest(context.Background(), "add panadol extra to my cart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", got.ID)
}

func TestLongestFallsBackToFind(t *testing.T) {
	finder := NewFinder(catalog.NewMemoryStore(catalog.Seed()), nil)

	got, ok, err := finder.Longest(context.Background(), "add two advil to cart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ibuprofen 200mg", got.Name)

	_, ok, err = finder.Longest(context.Background(), "remove it")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDropFixtures(t *testing.T) {
	in := []catalog.Product{
		{Name: "Test Product"},
		{Name: "Vitamin C 1000mg"},
		{Name: "Dummy Pills"},
		{Name: "Contest Lozenges"},
	}
	assert.Equal(t, []string{"Vitamin C 1000mg", "Contest Lozenges"}, names(DropFixtures(in)))
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"panadol"}, Terms("add two panadol to cart"))
	assert.Empty(t, Terms("yes please"))
	assert.Empty(t, Terms("make it 3"))
}
