// File path: internal/corpus/record_test.go
package corpus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityKeyFallbackChain(t *testing.T) {
	rec := Record{ID: "doc-1", ChunkID: "chunk-9", StoreCode: "S100"}
	require.Equal(t, "doc-1", rec.IdentityKey(0))

	rec.ID = ""
	require.Equal(t, "chunk-9", rec.IdentityKey(0))

	rec.ChunkID = "   "
	require.Equal(t, "S100", rec.IdentityKey(0))

	rec.StoreCode = ""
	require.Equal(t, "idx:7", rec.IdentityKey(7))
}

func TestSourceLabel(t *testing.T) {
	require.Equal(t, "report_2024.pdf", Record{Source: "report_2024.pdf", StoreCode: "S1"}.SourceLabel())
	require.Equal(t, "S1", Record{StoreCode: "S1"}.SourceLabel())
	require.Equal(t, "unknown", Record{}.SourceLabel())
}

func TestRecordRoundTripKeepsUnknownFields(t *testing.T) {
	raw := `{"id":"r1","text":"body","store_code":"S2","quarter":"2025Q4","rank":"3"}`
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	require.Equal(t, "r1", rec.ID)
	require.Equal(t, "body", rec.Text)
	require.Equal(t, "2025Q4", rec.Extra["quarter"])
	require.Equal(t, "3", rec.Extra["rank"])

	out, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, "2025Q4", decoded["quarter"])
	require.Equal(t, "r1", decoded["id"])
}
