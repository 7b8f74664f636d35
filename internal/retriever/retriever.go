// File path: internal/retriever/retriever.go
package retriever

import (
	"time"

	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/common/telemetry"
	"github.com/jbpark-dev/storesense/internal/corpus"
)

// Search runs nearest-neighbor retrieval against one corpus and maps the
// returned positions back to metadata records. Positions outside the
// metadata range are discarded rather than trusted; the index and
// metadata are loaded as a pair but the bound check keeps a corrupted
// artifact from panicking a request. No matches yields an empty slice,
// never an error.
func Search(c *corpus.Corpus, queryVector []float32, topK int) []corpus.Record {
	if c == nil || c.Index == nil {
		return nil
	}
	start := time.Now()
	matches := c.Index.Search(queryVector, topK)
	telemetry.RecordCorpusSearch(time.Since(start))
	if len(matches) == 0 {
		return nil
	}
	records := make([]corpus.Record, 0, len(matches))
	for _, m := range matches {
		if m.Position < 0 || m.Position >= len(c.Records) {
			common.Logger().Warn("retriever: discarding out-of-range match",
				"corpus", c.Name, "position", m.Position, "records", len(c.Records))
			continue
		}
		records = append(records, c.Records[m.Position])
	}
	return records
}
