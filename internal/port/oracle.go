package port

import (
	"context"

	"icpscout/internal/domain"
)

// OracleRequest is one research and scoring prompt for a single company.
type OracleRequest struct {
	Company   string
	Prompt    string
	Mode      domain.ResearchMode
	MaxTokens int
}

// OracleResponse carries the raw judgement text returned by a model provider.
type OracleResponse struct {
	Text         string
	ModelUsed    string
	InputTokens  int
	OutputTokens int
}

// Oracle abstracts an LLM provider that researches and scores a company.
type Oracle interface {
	Judge(ctx context.Context, req OracleRequest) (*OracleResponse, error)
}
