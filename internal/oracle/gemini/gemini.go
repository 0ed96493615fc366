// Package gemini implements the research oracle on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"icpscout/internal/config"
	"icpscout/internal/domain"
	"icpscout/internal/oracle"
	"icpscout/internal/port"
)

const (
	defaultModel = "gemini-2.0-flash"
	providerName = "gemini"
)

// Oracle implements port.Oracle using the Gemini generative model API.
type Oracle struct {
	client    *genai.Client
	modelName string
	maxTokens int
	timeout   time.Duration
}

// New creates a Gemini-backed oracle from a provider config.
func New(ctx context.Context, cfg *config.ProviderConfig, opts ...option.ClientOption) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", domain.ErrMissingCredential)
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	modelName := cfg.DefaultModel
	if modelName == "" {
		modelName = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Oracle{client: client, modelName: modelName, maxTokens: maxTokens, timeout: timeout}, nil
}

// Factory adapts New to oracle.ProviderFactory.
func Factory(cfg *config.ProviderConfig) (port.Oracle, error) {
	return New(context.Background(), cfg)
}

// SupportsMode reports whether Gemini can serve a research mode. It has no
// server-side web search tool, so provider A search is unavailable.
func SupportsMode(mode domain.ResearchMode) bool {
	return mode != domain.ResearchWebSearchProviderA
}

// SupportsMode lets a fallback chain pass over this provider for modes it
// cannot serve.
func (o *Oracle) SupportsMode(mode domain.ResearchMode) bool {
	return SupportsMode(mode)
}

// Close releases the underlying client.
func (o *Oracle) Close() error {
	return o.client.Close()
}

func (o *Oracle) Judge(ctx context.Context, req port.OracleRequest) (*port.OracleResponse, error) {
	if !SupportsMode(req.Mode) {
		return nil, fmt.Errorf("gemini: research mode %s is not supported", req.Mode)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	model := o.client.GenerativeModel(o.modelName)
	model.SetTemperature(0.2)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := model.GenerateContent(callCtx, genai.Text(req.Prompt))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &oracle.MalformedResponseError{Reason: "no candidates in response"}
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonMaxTokens {
		return nil, &oracle.MalformedResponseError{Reason: "output truncated (finish_reason: max_tokens)"}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, &oracle.MalformedResponseError{Reason: "no text in response"}
	}

	out := &port.OracleResponse{Text: sb.String(), ModelUsed: o.modelName}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// classifyError maps REST and gRPC failures onto the oracle error kinds.
func classifyError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &oracle.MalformedResponseError{Reason: "response blocked", Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &oracle.TimeoutError{Provider: providerName, Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return oracle.NewRateLimitError(providerName, err, retryAfter(gerr.Header))
		case gerr.Code == http.StatusGatewayTimeout:
			return &oracle.TimeoutError{Provider: providerName, Err: err}
		default:
			return &oracle.StatusError{Provider: providerName, StatusCode: gerr.Code, Body: gerr.Message}
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return oracle.NewRateLimitError(providerName, err, 0)
		case codes.DeadlineExceeded:
			return &oracle.TimeoutError{Provider: providerName, Err: err}
		case codes.Unavailable, codes.Internal:
			return &oracle.StatusError{Provider: providerName, StatusCode: http.StatusServiceUnavailable, Body: st.Message()}
		case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound:
			return &oracle.StatusError{Provider: providerName, StatusCode: http.StatusBadRequest, Body: st.Message()}
		}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}

func retryAfter(h http.Header) int {
	if h == nil {
		return 0
	}
	return oracle.ParseRetryAfterHeader(h.Get("Retry-After"))
}
