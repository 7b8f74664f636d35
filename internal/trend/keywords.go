// File path: internal/trend/keywords.go
package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/llm"
)

const defaultKeywordLimit = 30

const keywordPrompt = `Industry: %s
Requirements:
- Reflect the last three months of trends in the Korean %s industry
- Exclude brand names
- Focus on new menu items, ingredients, flavors, and operating concepts
- List exactly %d keywords, ordered by likely search popularity
- Each keyword must be a specific 2-4 word phrase
- Output ONLY a JSON array: ["keyword1", "keyword2", ...]`

// Keywords asks the model for trend keyword candidates for an industry.
// Responses that are not a clean JSON array fall back to line splitting;
// an unusable response yields an empty slice, never an error.
func Keywords(ctx context.Context, provider llm.Provider, industry string, limit int) []string {
	if limit <= 0 {
		limit = defaultKeywordLimit
	}
	prompt := fmt.Sprintf(keywordPrompt, industry, industry, limit)
	text, err := provider.Generate(ctx, prompt, 0)
	if err != nil {
		common.Logger().Warn("trend: keyword generation failed", "industry", industry, "error", err)
		return nil
	}
	keywords := parseKeywords(text)
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func parseKeywords(text string) []string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var keywords []string
	if err := json.Unmarshal([]byte(cleaned), &keywords); err == nil {
		return compact(keywords)
	}

	// Not a JSON array; salvage one keyword per line.
	var out []string
	for _, line := range strings.Split(cleaned, "\n") {
		kw := strings.Trim(strings.TrimSpace(line), "\"',[]")
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func compact(in []string) []string {
	out := in[:0]
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
