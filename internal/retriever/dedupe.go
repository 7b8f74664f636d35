// File path: internal/retriever/dedupe.go
package retriever

import "github.com/jbpark-dev/storesense/internal/corpus"

// Dedupe collapses repeated records into a unique set, first occurrence
// winning and input order preserved. Identity comes from the record's
// fallback key chain with a positional key as last resort, so a record
// with no identity fields is still retained exactly once. It runs after
// unioning hits from every expanded query, because two queries routinely
// retrieve the same record. Idempotent: deduping a deduped list is a
// no-op.
func Dedupe(records []corpus.Record) []corpus.Record {
	if len(records) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(records))
	out := make([]corpus.Record, 0, len(records))
	for i, rec := range records {
		key := rec.IdentityKey(i)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}
