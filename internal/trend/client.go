// File path: internal/trend/client.go
package trend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jbpark-dev/storesense/internal/common"
)

const (
	defaultEndpoint = "https://openapi.naver.com/v1/datalab/search"
	batchSize       = 5
	lookbackDays    = 90
)

// KeywordStat is one keyword's search-ratio profile over the lookback
// window.
type KeywordStat struct {
	Keyword   string  `json:"keyword"`
	MeanRatio float64 `json:"mean_ratio"`
	PeakRatio float64 `json:"peak_ratio"`
	LastRatio float64 `json:"last_ratio"`
}

// Client calls the search-trend API. The zero value is not usable; use
// NewClient.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func NewClient(clientID, clientSecret string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:     defaultEndpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type trendRequest struct {
	StartDate     string         `json:"startDate"`
	EndDate       string         `json:"endDate"`
	TimeUnit      string         `json:"timeUnit"`
	KeywordGroups []keywordGroup `json:"keywordGroups"`
}

type keywordGroup struct {
	GroupName string   `json:"groupName"`
	Keywords  []string `json:"keywords"`
}

type trendResponse struct {
	Results []struct {
		Title string `json:"title"`
		Data  []struct {
			Period string  `json:"period"`
			Ratio  float64 `json:"ratio"`
		} `json:"data"`
	} `json:"results"`
}

// SearchRatios fetches monthly search ratios for up to batchSize
// keywords in one API call.
func (c *Client) SearchRatios(ctx context.Context, keywords []string) ([]KeywordStat, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if len(keywords) > batchSize {
		keywords = keywords[:batchSize]
	}
	end := c.now()
	start := end.AddDate(0, 0, -lookbackDays)
	groups := make([]keywordGroup, 0, len(keywords))
	for _, kw := range keywords {
		groups = append(groups, keywordGroup{GroupName: kw, Keywords: []string{kw}})
	}
	body, err := json.Marshal(trendRequest{
		StartDate:     start.Format("2006-01-02"),
		EndDate:       end.Format("2006-01-02"),
		TimeUnit:      "month",
		KeywordGroups: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("trend: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("trend: build request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trend: call api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("trend: api status %d: %s", resp.StatusCode, raw)
	}

	var parsed trendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("trend: decode response: %w", err)
	}

	stats := make([]KeywordStat, 0, len(parsed.Results))
	for _, result := range parsed.Results {
		if len(result.Data) == 0 {
			continue
		}
		var sum, peak float64
		for _, point := range result.Data {
			sum += point.Ratio
			if point.Ratio > peak {
				peak = point.Ratio
			}
		}
		stats = append(stats, KeywordStat{
			Keyword:   result.Title,
			MeanRatio: round2(sum / float64(len(result.Data))),
			PeakRatio: peak,
			LastRatio: result.Data[len(result.Data)-1].Ratio,
		})
	}
	common.Logger().Debug("trend: batch resolved", "keywords", len(keywords), "stats", len(stats))
	return stats, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
