package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("panadol", "panadol"))
	assert.Equal(t, 0.0, Ratio("", "panadol"))
	assert.InDelta(t, 0.75, Ratio("havr", "have"), 0.001)
	assert.Greater(t, Ratio("pandol", "panadol"), 0.8)
	assert.Less(t, Ratio("xyz", "panadol"), 0.3)
}

func TestClosestPrefersHigherScoreThenEarlier(t *testing.T) {
	match, ok := Closest("havr", []string{"hour", "have", "hive"}, 0.7)
	require.True(t, ok)
	assert.Equal(t, "have", match.Value)
	assert.Equal(t, 1, match.Index)

	_, ok = Closest("zzzz", []string{"have", "take"}, 0.7)
	assert.False(t, ok)
}

func TestTokensTrimPunctuation(t *testing.T) {
	assert.Equal(t, []string{"do", "you", "have", "panadol"}, Tokens("Do you have Panadol?"))
	assert.Equal(t, []string{"it's", "500mg"}, Tokens("  It's, 500mg!! "))
}

func TestContainsWord(t *testing.T) {
	assert.True(t, ContainsWord("hi there", "hi"))
	assert.False(t, ContainsWord("this is it", "hi"))
	assert.True(t, ContainsWord("please place order now", "place order"))
	assert.False(t, ContainsWord("place", "place order"))
	assert.True(t, ContainsAnyWord("show my cart", []string{"view", "show"}))
}
