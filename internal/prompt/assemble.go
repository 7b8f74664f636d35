// File path: internal/prompt/assemble.go
package prompt

import (
	"fmt"
	"strings"

	"github.com/jbpark-dev/storesense/internal/align"
	"github.com/jbpark-dev/storesense/internal/corpus"
)

const (
	reportSectionHeader  = "[store analysis data]"
	segmentSectionHeader = "[marketing strategy data]"
	emptySection         = "(no data)"
)

// AssembleContext builds the bounded text block fed to the generator.
// With pairs available, each pair renders as two labeled blocks in pair
// order; otherwise the hits render as two flat sections whose headers are
// always present, with a placeholder for an empty side. Duplicate lines
// are always removed last: context windows and generation cost scale with
// token count, so repeated boilerplate across retrieved records is
// stripped rather than paid for.
func AssembleContext(reports, segments []corpus.Record, pairs []align.Pair) string {
	var b strings.Builder
	if len(pairs) > 0 {
		for i, pair := range pairs {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "[report evidence #%d | source: %s]\n%s\n\n", i+1,
				pair.Report.SourceLabel(), strings.TrimSpace(pair.Report.Text))
			fmt.Fprintf(&b, "[segment evidence #%d | source: %s | similarity: %.2f]\n%s", i+1,
				pair.Segment.SourceLabel(), pair.Similarity, strings.TrimSpace(pair.Segment.Text))
		}
	} else {
		b.WriteString(reportSectionHeader)
		b.WriteString("\n")
		b.WriteString(joinTexts(reports))
		b.WriteString("\n\n")
		b.WriteString(segmentSectionHeader)
		b.WriteString("\n")
		b.WriteString(joinTexts(segments))
	}
	return DedupeLines(b.String())
}

func joinTexts(records []corpus.Record) string {
	var texts []string
	for _, rec := range records {
		if text := strings.TrimSpace(rec.Text); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return emptySection
	}
	return strings.Join(texts, "\n\n")
}

// DedupeLines drops exact-duplicate lines, keeping the first occurrence
// and preserving order. Blank lines are kept so paragraph structure
// survives. Idempotent.
func DedupeLines(text string) string {
	lines := strings.Split(text, "\n")
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			if _, dup := seen[trimmed]; dup {
				continue
			}
			seen[trimmed] = struct{}{}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
