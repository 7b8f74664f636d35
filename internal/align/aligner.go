// File path: internal/align/aligner.go
package align

import (
	"context"
	"errors"

	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/corpus"
	"github.com/jbpark-dev/storesense/internal/embedding"
)

// Texts are truncated before re-embedding; evidence past this length adds
// embedding cost without improving the pairing signal.
const maxEmbedChars = 2000

// Pair is one matched (report, segment) evidence combination with its
// cosine similarity.
type Pair struct {
	Report     corpus.Record
	Segment    corpus.Record
	Similarity float32
}

// Aligner pairs the most similar cross-corpus hits so the prompt can
// present report and segment evidence side by side.
type Aligner struct {
	embeddings *embedding.Service
}

func New(embeddings *embedding.Service) *Aligner {
	return &Aligner{embeddings: embeddings}
}

// Align re-embeds both hit lists and greedily emits the globally most
// similar unused (report, segment) pair until maxPairs pairs exist or one
// side is exhausted. Each hit joins at most one pair. Greedy selection is
// not a globally optimal assignment; thematic coherence is the goal, not
// exactness, and hit counts stay small. Alignment is an enhancement: an
// empty input, an unready embedding service, or an embedding failure all
// yield an empty pair list and never an error.
func (a *Aligner) Align(ctx context.Context, reports, segments []corpus.Record, maxPairs int) []Pair {
	if len(reports) == 0 || len(segments) == 0 || maxPairs <= 0 {
		return nil
	}
	logger := common.Logger()

	reportVecs, err := a.embedTexts(ctx, reports)
	if err != nil {
		if errors.Is(err, embedding.ErrNotReady) {
			logger.Debug("align: embedder not ready, skipping alignment")
		} else {
			logger.Warn("align: report embedding failed, skipping alignment", "error", err)
		}
		return nil
	}
	segmentVecs, err := a.embedTexts(ctx, segments)
	if err != nil {
		logger.Warn("align: segment embedding failed, skipping alignment", "error", err)
		return nil
	}

	sims := make([][]float32, len(reports))
	for i := range reports {
		sims[i] = make([]float32, len(segments))
		for j := range segments {
			sims[i][j] = embedding.Cosine(reportVecs[i], segmentVecs[j])
		}
	}

	usedReport := make([]bool, len(reports))
	usedSegment := make([]bool, len(segments))
	var pairs []Pair
	for len(pairs) < maxPairs {
		bestI, bestJ := -1, -1
		var best float32
		for i := range sims {
			if usedReport[i] {
				continue
			}
			for j := range sims[i] {
				if usedSegment[j] {
					continue
				}
				if bestI < 0 || sims[i][j] > best {
					bestI, bestJ, best = i, j, sims[i][j]
				}
			}
		}
		if bestI < 0 {
			break
		}
		usedReport[bestI] = true
		usedSegment[bestJ] = true
		pairs = append(pairs, Pair{Report: reports[bestI], Segment: segments[bestJ], Similarity: best})
	}
	logger.Debug("align: paired evidence", "pairs", len(pairs),
		"reports", len(reports), "segments", len(segments))
	return pairs
}

func (a *Aligner) embedTexts(ctx context.Context, records []corpus.Record) ([][]float32, error) {
	texts := make([]string, len(records))
	for i, rec := range records {
		text := rec.Text
		if runes := []rune(text); len(runes) > maxEmbedChars {
			text = string(runes[:maxEmbedChars])
		}
		texts[i] = text
	}
	return a.embeddings.EmbedIfReady(ctx, texts)
}
