package alias

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLookup(t *testing.T) {
	table := Default()

	got, ok := table.Lookup("Panadol")
	require.True(t, ok)
	assert.Equal(t, "paracetamol", got)

	_, ok = table.Lookup("xyz123")
	assert.False(t, ok)
}

func TestKeysAreSorted(t *testing.T) {
	keys := Default().Keys()
	require.NotEmpty(t, keys)
	assert.IsNonDecreasing(t, keys)
}

func TestLoadFileMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  Crocin: Paracetamol\n  advil: IBUPROFEN\n"), 0o600))

	table, err := LoadFile(path)
	require.NoError(t, err)

	got, ok := table.Lookup("crocin")
	require.True(t, ok)
	assert.Equal(t, "paracetamol", got)

	got, _ = table.Lookup("advil")
	assert.Equal(t, "ibuprofen", got)
	assert.Equal(t, Default().Len()+1, table.Len())
}

func TestLoadFileRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases: [unterminated"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
