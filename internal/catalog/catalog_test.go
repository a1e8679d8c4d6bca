package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_CatalogIsValid(t *testing.T) {
	entries := Default()
	require.Len(t, entries, 3)

	names := make([]string, 0, len(entries))
	for i, entry := range entries {
		assert.Equal(t, i, entry.Index)
		assert.NotEmpty(t, entry.Summary)
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"Paris", "Tokyo", "New York"}, names)
}

func TestLoad_ReadsFileInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `destinations:
  - name: Lisbon
    summary: Hilly coastal capital of Portugal.
  - name: Oslo
    summary: Norwegian capital on the Oslofjord.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Lisbon", entries[0].Name)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, "Oslo", entries[1].Name)
	assert.Equal(t, 1, entries[1].Index)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestParse_RejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty", "destinations: []"},
		{"unnamed entry", "destinations:\n  - summary: something\n"},
		{"missing summary", "destinations:\n  - name: Lisbon\n"},
		{"duplicate name", "destinations:\n  - name: Lisbon\n    summary: a\n  - name: Lisbon\n    summary: b\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse([]byte(tc.content))
			assert.Error(t, err)
		})
	}
}
