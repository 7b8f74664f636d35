// File path: internal/corpus/record.go
package corpus

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one metadata entry of a corpus. Text is the retrieved context;
// the remaining fields are optional and surfaced opportunistically. Fields
// outside the schema survive round-trips through Extra.
type Record struct {
	ID        string `json:"id,omitempty"`
	ChunkID   string `json:"chunk_id,omitempty"`
	StoreCode string `json:"store_code,omitempty"`
	Text      string `json:"text"`
	Summary   string `json:"summary,omitempty"`
	Persona   string `json:"persona,omitempty"`
	VisitMix  string `json:"visit_mix,omitempty"`
	Loyalty   string `json:"loyalty,omitempty"`
	Source    string `json:"source,omitempty"`
	Category  string `json:"category,omitempty"`
	Segment   string `json:"segment,omitempty"`

	Extra map[string]string `json:"-"`
}

var schemaFields = map[string]struct{}{
	"id": {}, "chunk_id": {}, "store_code": {}, "text": {}, "summary": {},
	"persona": {}, "visit_mix": {}, "loyalty": {}, "source": {},
	"category": {}, "segment": {},
}

// keyAccessors is the ordered identity fallback chain used for
// deduplication. Callers fall back to a positional key when every accessor
// returns empty.
var keyAccessors = []func(Record) string{
	func(r Record) string { return r.ID },
	func(r Record) string { return r.ChunkID },
	func(r Record) string { return r.StoreCode },
}

// IdentityKey resolves the record identity used for deduplication: the
// first non-empty field of the fallback chain, or the positional key
// "idx:<pos>" so a record with no usable identity is still retained once.
func (r Record) IdentityKey(pos int) string {
	for _, access := range keyAccessors {
		if v := strings.TrimSpace(access(r)); v != "" {
			return v
		}
	}
	return fmt.Sprintf("idx:%d", pos)
}

// SourceLabel names the record in rendered context blocks.
func (r Record) SourceLabel() string {
	for _, candidate := range []string{r.Source, r.StoreCode, r.Segment, r.ID, r.ChunkID} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return "unknown"
}

type recordAlias Record

func (r *Record) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record(alias)
	for key, value := range raw {
		if _, known := schemaFields[key]; known {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		var str string
		if err := json.Unmarshal(value, &str); err == nil {
			r.Extra[key] = str
			continue
		}
		r.Extra[key] = string(value)
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, known := schemaFields[key]; known {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}
