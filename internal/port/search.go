package port

import "context"

// SearchResult is one web search hit.
type SearchResult struct {
	Title       string
	URL         string
	Description string
}

// WebSearcher abstracts a third-party web search API.
type WebSearcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}
