// File path: internal/corpus/store_test.go
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func stageCorpus(t *testing.T, dir, name string, vectors [][]float32, lines []string) {
	t.Helper()
	require.NoError(t, WriteIndex(filepath.Join(dir, name+".vec"), vectors))
	var meta string
	for _, line := range lines {
		meta += line + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+"_metadata.jsonl"), []byte(meta), 0o644))
}

func TestLoadAndSearch(t *testing.T) {
	dir := t.TempDir()
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	stageCorpus(t, dir, "marketing_reports", vectors, []string{
		`{"id":"a","text":"alpha"}`,
		`{"id":"b","text":"beta"}`,
		``,
		`{"id":"c","text":"gamma"}`,
	})

	c, err := Load(dir, "marketing_reports")
	require.NoError(t, err)
	require.Equal(t, 3, c.Index.Len())
	require.Equal(t, 3, c.Index.Dim())
	require.Len(t, c.Records, 3)

	matches := c.Index.Search([]float32{0, 1, 0}, 2)
	require.Len(t, matches, 2)
	require.Equal(t, 1, matches[0].Position)
	require.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)

	// topK larger than the corpus returns everything.
	require.Len(t, c.Index.Search([]float32{1, 0, 0}, 10), 3)
	// dimension mismatch and empty query fail closed
	require.Nil(t, c.Index.Search([]float32{1, 0}, 2))
	require.Nil(t, c.Index.Search([]float32{1, 0, 0}, 0))
}

func TestLoadMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, "marketing_reports")
	require.ErrorIs(t, err, ErrNotFound)

	// index present but metadata missing is still ErrNotFound
	require.NoError(t, WriteIndex(filepath.Join(dir, "marketing_reports.vec"), [][]float32{{1}}))
	_, err = Load(dir, "marketing_reports")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	stageCorpus(t, dir, "marketing_segments", [][]float32{{1, 0}, {0, 1}}, []string{
		`{"id":"only","text":"one record"}`,
	})
	_, err := Load(dir, "marketing_segments")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not match")
}

func TestCatalogCachesLoads(t *testing.T) {
	dir := t.TempDir()
	stageCorpus(t, dir, "marketing_reports", [][]float32{{1, 0}}, []string{
		`{"id":"a","text":"alpha"}`,
	})

	catalog := NewCatalog()
	first, err := catalog.Get(dir, "marketing_reports")
	require.NoError(t, err)

	// removing the artifacts does not evict the cached corpus
	require.NoError(t, os.Remove(filepath.Join(dir, "marketing_reports.vec")))
	second, err := catalog.Get(dir, "marketing_reports")
	require.NoError(t, err)
	require.Same(t, first, second)

	_, err = catalog.Get(dir, "marketing_segments")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWriteIndexValidation(t *testing.T) {
	dir := t.TempDir()
	err := WriteIndex(filepath.Join(dir, "x.vec"), [][]float32{{1, 0}, {1, 0, 0}})
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprintf("vector %d", 1))
}
