// Package claude implements the research oracle on the Anthropic Messages API.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"icpscout/internal/config"
	"icpscout/internal/domain"
	"icpscout/internal/oracle"
	"icpscout/internal/port"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-sonnet-4-20250514"
	providerName = "claude"

	// webSearchMaxUses bounds server-side searches per company.
	webSearchMaxUses = 5
)

// Oracle implements port.Oracle using the Anthropic Messages API.
type Oracle struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string
	client    *http.Client
}

// New creates a Claude-backed oracle from a provider config.
func New(cfg *config.ProviderConfig) (*Oracle, error) {
	return NewWithEndpoint(cfg, apiURL)
}

// NewWithEndpoint creates an oracle pointing at a custom API endpoint (for testing).
func NewWithEndpoint(cfg *config.ProviderConfig, endpoint string) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: %w", domain.ErrMissingCredential)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Oracle{
		apiKey:    cfg.APIKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// Factory adapts New to oracle.ProviderFactory.
func Factory(cfg *config.ProviderConfig) (port.Oracle, error) {
	return New(cfg)
}

func (o *Oracle) Judge(ctx context.Context, req port.OracleRequest) (*port.OracleResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	reqBody := map[string]interface{}{
		"model":      o.model,
		"max_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": req.Prompt,
			},
		},
	}
	if req.Mode == domain.ResearchWebSearchProviderA {
		reqBody["tools"] = []map[string]interface{}{
			{
				"type":     "web_search_20250305",
				"name":     "web_search",
				"max_uses": webSearchMaxUses,
			},
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", o.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, oracle.ClassifyTransportError(ctx, providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oracle.ClassifyTransportError(ctx, providerName, err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &oracle.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := oracle.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, oracle.NewRateLimitError(providerName, statusErr, retryAfter)
		}
		return nil, statusErr
	}

	return parseResponse(respBody, o.model)
}

// apiResponse models the Anthropic Messages API response. With the web
// search tool the content interleaves text with tool use and result blocks.
type apiResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseResponse(body []byte, model string) (*port.OracleResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &oracle.MalformedResponseError{Reason: "unmarshaling response", Raw: string(body), Err: err}
	}

	if resp.StopReason == "max_tokens" {
		return nil, &oracle.MalformedResponseError{
			Reason: "output truncated (stop_reason: max_tokens)",
			Raw:    string(body),
		}
	}

	var texts []string
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			texts = append(texts, block.Text)
		}
	}
	if len(texts) == 0 {
		return nil, &oracle.MalformedResponseError{Reason: "no text in response", Raw: string(body), Err: errors.New("empty content")}
	}

	if resp.Model != "" {
		model = resp.Model
	}
	return &port.OracleResponse{
		Text:         strings.Join(texts, "\n"),
		ModelUsed:    model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
