// File path: internal/retriever/retriever_test.go
package retriever

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbpark-dev/storesense/internal/corpus"
)

func loadFixture(t *testing.T, vectors [][]float32, meta string) *corpus.Corpus {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, corpus.WriteIndex(filepath.Join(dir, "marketing_reports.vec"), vectors))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marketing_reports_metadata.jsonl"), []byte(meta), 0o644))
	c, err := corpus.Load(dir, "marketing_reports")
	require.NoError(t, err)
	return c
}

func TestSearchMapsPositionsToRecords(t *testing.T) {
	c := loadFixture(t, [][]float32{{1, 0}, {0, 1}},
		`{"id":"near","text":"close match"}`+"\n"+`{"id":"far","text":"distant"}`+"\n")

	records := Search(c, []float32{0.9, 0.1}, 1)
	require.Len(t, records, 1)
	require.Equal(t, "near", records[0].ID)

	require.Nil(t, Search(nil, []float32{1, 0}, 3))
	require.Nil(t, Search(c, []float32{1, 0, 0}, 3))
}

func TestDedupeKeepsFirstSeen(t *testing.T) {
	records := []corpus.Record{
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second"},
		{ID: "a", Text: "duplicate of first"},
		{Text: "no identity"},
		{Text: "another without identity"},
	}
	out := Dedupe(records)
	require.Len(t, out, 4)
	require.Equal(t, "first", out[0].Text)
	require.Equal(t, "second", out[1].Text)
	require.Equal(t, "no identity", out[2].Text)

	// records with no usable identity both survive on positional keys
	require.Equal(t, "another without identity", out[3].Text)

	// idempotent
	require.Equal(t, out, Dedupe(out))
}

func TestDedupeEmpty(t *testing.T) {
	require.Empty(t, Dedupe(nil))
}

func TestExpandQueries(t *testing.T) {
	queries := ExpandQueries("S123", "v2")
	require.Len(t, queries, 2)
	require.Contains(t, queries[0], "S123")
	require.Contains(t, queries[0], "revisit rate")
	require.NotContains(t, queries[1], "S123")

	// unknown mode falls back to the generic intent but keeps the shape
	generic := ExpandQueries("S123", "v9")
	require.Len(t, generic, 2)
	require.Contains(t, generic[0], "S123")
	require.Equal(t, queries[1], generic[1])
}
