// Package brave is a Brave Search API client used as the provider B web
// search backend for company research.
package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"icpscout/internal/config"
	"icpscout/internal/domain"
	"icpscout/internal/oracle"
	"icpscout/internal/port"
)

const (
	apiURL       = "https://api.search.brave.com/res/v1/web/search"
	providerName = "brave"
)

type cacheKey struct {
	query string
	count int
}

// Client implements port.WebSearcher. Results are cached so oracle retries
// for the same company do not spend search quota again.
type Client struct {
	apiKey   string
	endpoint string
	count    int
	client   *http.Client
	cache    *expirable.LRU[cacheKey, []port.SearchResult]
}

// New creates a Brave Search client from the search config.
func New(cfg *config.SearchConfig) (*Client, error) {
	return NewWithEndpoint(cfg, apiURL)
}

// NewWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewWithEndpoint(cfg *config.SearchConfig, endpoint string) (*Client, error) {
	if cfg.BraveAPIKey == "" {
		return nil, fmt.Errorf("brave: %w", domain.ErrMissingCredential)
	}
	count := cfg.Count
	if count <= 0 {
		count = 5
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	return &Client{
		apiKey:   cfg.BraveAPIKey,
		endpoint: endpoint,
		count:    count,
		client:   &http.Client{Timeout: 10 * time.Second},
		cache:    expirable.NewLRU[cacheKey, []port.SearchResult](size, nil, time.Duration(cfg.CacheTTLSecs)*time.Second),
	}, nil
}

// apiResponse models the parts of the Brave web search response we read.
type apiResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs a web search. A count of zero uses the configured default.
func (c *Client) Search(ctx context.Context, query string, count int) ([]port.SearchResult, error) {
	if count <= 0 {
		count = c.count
	}
	key := cacheKey{query: query, count: count}
	if hit, ok := c.cache.Get(key); ok {
		return hit, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("safesearch", "moderate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, oracle.ClassifyTransportError(ctx, providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oracle.ClassifyTransportError(ctx, providerName, err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &oracle.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, oracle.NewRateLimitError(providerName, statusErr, oracle.ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
		}
		return nil, statusErr
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling brave response: %w", err)
	}

	results := make([]port.SearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if len(results) == count {
			break
		}
		results = append(results, port.SearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}
	c.cache.Add(key, results)
	return results, nil
}
