// File path: internal/retriever/expand.go
package retriever

import "fmt"

// Embedding a bare merchant code retrieves poorly: the indexed documents
// are natural-language analyses, so the query must read like one. Each
// mode maps to an intent phrase that is combined with the merchant code,
// and a second, merchant-independent query broadens recall toward peer
// success patterns. Unknown modes get the generic intent phrase.
var modeIntents = map[string]string{
	"v1": "customer analysis, primary customer segments, trade-area traits, channel performance",
	"v2": "revisit rate, retention, membership, push campaigns",
	"v3": "problem diagnosis, root-cause analysis, improvement ideas",
}

const (
	genericIntent = "store analysis, marketing strategy, data-driven insights"

	peerQuery = "customer-base redefinition and new-target expansion strategies proven at " +
		"similar stores, age and gender targeting, per-channel performance, trend-driven " +
		"marketing cases"
)

// ExpandQueries derives the retrieval queries for one (merchant, mode)
// request: a merchant-focused query first, then the peer-benchmark query.
// Pure function; the order is part of the contract because hits are
// unioned in query order before deduplication.
func ExpandQueries(storeCode, mode string) []string {
	intent, ok := modeIntents[mode]
	if !ok {
		intent = genericIntent
	}
	focused := fmt.Sprintf("%s and strategies to strengthen the primary customer base of store %s",
		intent, storeCode)
	return []string{focused, peerQuery}
}
