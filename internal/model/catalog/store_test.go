package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOwner(t *testing.T) {
	assert.Equal(t, "user:u1", ResolveOwner("u1", "s1").Key())
	assert.Equal(t, "session:s1", ResolveOwner("", "s1").Key())
	assert.Equal(t, "anonymous", ResolveOwner("", "").Key())
}

func TestMemoryStoreFind(t *testing.T) {
	s := NewMemoryStore(Seed())
	ctx := context.Background()

	byName, err := s.FindProductsByName(ctx, []string{"IBUPROFEN", " "})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "med-003", byName[0].ID)

	byDesc, err := s.FindProductsByDescription(ctx, []string{"blocked nose"})
	require.NoError(t, err)
	require.Len(t, byDesc, 1)
	assert.Equal(t, "Otrivin Nasal Spray", byDesc[0].Name)

	either, err := s.FindProducts(ctx, "caffeine")
	require.NoError(t, err)
	require.Len(t, either, 1)

	p, ok := s.FindByID("med-007")
	require.True(t, ok)
	assert.Equal(t, int64(999), p.PriceCents)
	_, ok = s.FindByID("missing")
	assert.False(t, ok)
}

func TestMemoryStoreCart(t *testing.T) {
	s := NewMemoryStore(Seed())
	tick := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	ctx := context.Background()
	owner := ResolveOwner("", "s1")
	items := Seed()

	require.NoError(t, s.UpsertLine(ctx, owner, items[1], 2))
	require.NoError(t, s.UpsertLine(ctx, owner, items[0], 1))
	require.NoError(t, s.UpsertLine(ctx, owner, items[1], 4))
	assert.ErrorIs(t, s.UpsertLine(ctx, owner, items[2], 0), ErrInvalidQuantity)

	lines, err := s.GetLines(ctx, owner)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Paracetamol 500mg", lines[0].Product.Name)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.Equal(t, int64(4*500+650), CartTotal(lines))

	other, err := s.GetLines(ctx, ResolveOwner("u1", "s1"))
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.DeleteLine(ctx, owner, items[1].ID))
	assert.ErrorIs(t, s.DeleteLine(ctx, owner, items[1].ID), ErrProductNotFound)
	require.NoError(t, s.DeleteAllLines(ctx, owner))
	lines, err = s.GetLines(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
