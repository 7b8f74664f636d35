// File path: internal/trend/service.go
package trend

import (
	"context"
	"sort"
	"time"

	"github.com/jbpark-dev/storesense/internal/common"
	"github.com/jbpark-dev/storesense/internal/llm"
)

const topCount = 10

// Report ranks an industry's trend keywords by average search ratio.
type Report struct {
	Industry      string        `json:"industry"`
	GeneratedAt   time.Time     `json:"generated_at"`
	TotalKeywords int           `json:"total_keywords"`
	Top           []KeywordStat `json:"top10"`
}

// Service produces keyword trend reports. Trend data is decorative in
// the final report, so every failure degrades to an empty Top list
// instead of surfacing an error.
type Service struct {
	provider llm.Provider
	client   *Client
}

func NewService(provider llm.Provider, client *Client) *Service {
	return &Service{provider: provider, client: client}
}

// IndustryReport generates keyword candidates for the industry, resolves
// their search ratios batch by batch, and keeps the top performers.
func (s *Service) IndustryReport(ctx context.Context, industry string) *Report {
	report := &Report{Industry: industry, GeneratedAt: time.Now()}
	if s == nil || s.provider == nil || s.client == nil {
		return report
	}

	keywords := Keywords(ctx, s.provider, industry, defaultKeywordLimit)
	report.TotalKeywords = len(keywords)
	if len(keywords) == 0 {
		return report
	}

	var all []KeywordStat
	for i := 0; i < len(keywords); i += batchSize {
		end := i + batchSize
		if end > len(keywords) {
			end = len(keywords)
		}
		stats, err := s.client.SearchRatios(ctx, keywords[i:end])
		if err != nil {
			common.Logger().Warn("trend: batch failed, skipping", "industry", industry, "error", err)
			continue
		}
		all = append(all, stats...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].MeanRatio > all[j].MeanRatio })
	if len(all) > topCount {
		all = all[:topCount]
	}
	report.Top = all
	common.Logger().Info("trend: industry report built",
		"industry", industry, "keywords", report.TotalKeywords, "top", len(all))
	return report
}
