// File path: internal/trend/trend_test.go
package trend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	response string
	err      error
}

func (p *stubProvider) Generate(context.Context, string, int) (string, error) {
	return p.response, p.err
}

func (p *stubProvider) Name() string { return "stub" }

func TestParseKeywordsJSONArray(t *testing.T) {
	out := parseKeywords("```json\n[\"matcha latte\", \"salt bread\", \" \"]\n```")
	require.Equal(t, []string{"matcha latte", "salt bread"}, out)
}

func TestParseKeywordsLineFallback(t *testing.T) {
	out := parseKeywords("\"matcha latte\",\n'salt bread'\n\n[highball set]")
	require.Equal(t, []string{"matcha latte", "salt bread", "highball set"}, out)
}

func TestKeywordsLimitsAndDegrades(t *testing.T) {
	provider := &stubProvider{response: `["a","b","c","d"]`}
	require.Equal(t, []string{"a", "b"}, Keywords(context.Background(), provider, "cafe", 2))

	failing := &stubProvider{err: errors.New("backend down")}
	require.Nil(t, Keywords(context.Background(), failing, "cafe", 5))
}

func trendServer(t *testing.T, batches *[][]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-id", r.Header.Get("X-Naver-Client-Id"))
		require.Equal(t, "test-secret", r.Header.Get("X-Naver-Client-Secret"))

		var req struct {
			TimeUnit      string `json:"timeUnit"`
			KeywordGroups []struct {
				GroupName string `json:"groupName"`
			} `json:"keywordGroups"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "month", req.TimeUnit)
		require.LessOrEqual(t, len(req.KeywordGroups), 5)

		var names []string
		results := make([]map[string]any, 0, len(req.KeywordGroups))
		for i, group := range req.KeywordGroups {
			names = append(names, group.GroupName)
			results = append(results, map[string]any{
				"title": group.GroupName,
				"data": []map[string]any{
					{"period": "2026-06-01", "ratio": float64(10 * (i + 1))},
					{"period": "2026-07-01", "ratio": float64(20 * (i + 1))},
				},
			})
		}
		mu.Lock()
		*batches = append(*batches, names)
		mu.Unlock()
		writeBody, _ := json.Marshal(map[string]any{"results": results})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(writeBody)
	}))
}

func TestSearchRatios(t *testing.T) {
	var batches [][]string
	server := trendServer(t, &batches)
	defer server.Close()

	client := NewClient("test-id", "test-secret",
		WithEndpoint(server.URL), WithHTTPClient(server.Client()))
	stats, err := client.SearchRatios(context.Background(), []string{"salt bread", "matcha latte"})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, "salt bread", stats[0].Keyword)
	require.InDelta(t, 15.0, stats[0].MeanRatio, 1e-9)
	require.InDelta(t, 20.0, stats[0].PeakRatio, 1e-9)
	require.InDelta(t, 20.0, stats[0].LastRatio, 1e-9)
}

func TestSearchRatiosErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("id", "secret", WithEndpoint(server.URL))
	_, err := client.SearchRatios(context.Background(), []string{"kw"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestIndustryReportBatchesAndRanks(t *testing.T) {
	keywords := make([]string, 12)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("keyword-%02d", i)
	}
	raw, _ := json.Marshal(keywords)

	var batches [][]string
	server := trendServer(t, &batches)
	defer server.Close()

	svc := NewService(&stubProvider{response: string(raw)},
		NewClient("test-id", "test-secret", WithEndpoint(server.URL)))
	report := svc.IndustryReport(context.Background(), "cafe")

	require.Equal(t, "cafe", report.Industry)
	require.Equal(t, 12, report.TotalKeywords)
	require.Len(t, batches, 3) // 5 + 5 + 2
	require.Len(t, report.Top, 10)
	for i := 1; i < len(report.Top); i++ {
		require.GreaterOrEqual(t, report.Top[i-1].MeanRatio, report.Top[i].MeanRatio)
	}
}

func TestIndustryReportDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(&stubProvider{response: `["a","b"]`},
		NewClient("id", "secret", WithEndpoint(server.URL)))
	report := svc.IndustryReport(context.Background(), "cafe")
	require.Equal(t, 2, report.TotalKeywords)
	require.Empty(t, report.Top)
}
