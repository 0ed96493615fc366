package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"icpscout/internal/config"
	"icpscout/internal/domain"
	"icpscout/internal/oracle"
	"icpscout/internal/port"
	"icpscout/mocks"
)

func TestClassifyError(t *testing.T) {
	t.Run("http 429 with retry-after", func(t *testing.T) {
		err := classifyError(fmt.Errorf("wrapped: %w", &googleapi.Error{
			Code:   http.StatusTooManyRequests,
			Header: http.Header{"Retry-After": []string{"12"}},
		}))
		var rl *oracle.RateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, 12*time.Second, rl.RetryAfter)
		assert.True(t, oracle.IsRetryable(err))
	})

	t.Run("http 503 is retryable", func(t *testing.T) {
		err := classifyError(&googleapi.Error{Code: http.StatusServiceUnavailable, Message: "overloaded"})
		var se *oracle.StatusError
		require.ErrorAs(t, err, &se)
		assert.True(t, oracle.IsRetryable(err))
	})

	t.Run("http 400 is permanent", func(t *testing.T) {
		err := classifyError(&googleapi.Error{Code: http.StatusBadRequest, Message: "API key not valid"})
		assert.False(t, oracle.IsRetryable(err))
	})

	t.Run("per call deadline", func(t *testing.T) {
		err := classifyError(fmt.Errorf("post: %w", context.DeadlineExceeded))
		var to *oracle.TimeoutError
		require.ErrorAs(t, err, &to)
		assert.True(t, oracle.IsRetryable(err))
	})

	t.Run("grpc codes", func(t *testing.T) {
		tests := []struct {
			code      codes.Code
			retryable bool
		}{
			{codes.ResourceExhausted, true},
			{codes.DeadlineExceeded, true},
			{codes.Unavailable, true},
			{codes.InvalidArgument, false},
			{codes.Unauthenticated, false},
		}
		for _, tt := range tests {
			err := classifyError(status.Error(tt.code, "x"))
			assert.Equal(t, tt.retryable, oracle.IsRetryable(err), tt.code.String())
		}
	})

	t.Run("blocked response is malformed", func(t *testing.T) {
		err := classifyError(&genai.BlockedError{})
		var mal *oracle.MalformedResponseError
		require.ErrorAs(t, err, &mal)
		assert.False(t, oracle.IsRetryable(err))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.False(t, oracle.IsRetryable(classifyError(errors.New("boom"))))
	})
}

func TestSupportsMode(t *testing.T) {
	assert.True(t, SupportsMode(domain.ResearchTrainingData))
	assert.True(t, SupportsMode(domain.ResearchWebSearchProviderB))
	assert.False(t, SupportsMode(domain.ResearchWebSearchProviderA))
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New(context.Background(), &config.ProviderConfig{Provider: "gemini"})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestJudge_RejectsProviderA(t *testing.T) {
	o, err := New(context.Background(), &config.ProviderConfig{Provider: "gemini", APIKey: "test-key"})
	require.NoError(t, err)
	defer func() { _ = o.Close() }()

	_, err = o.Judge(context.Background(), port.OracleRequest{Prompt: "x", Mode: domain.ResearchWebSearchProviderA})
	require.Error(t, err)
	assert.False(t, oracle.IsRetryable(err))
}

func TestFallbackChain_PassesOverGeminiForProviderA(t *testing.T) {
	g, err := New(context.Background(), &config.ProviderConfig{Provider: "gemini", APIKey: "test-key"})
	require.NoError(t, err)

	primary := new(mocks.MockOracle)
	primary.On("Judge", mock.Anything, mock.Anything).
		Return(nil, &oracle.TimeoutError{Provider: "claude", Err: context.DeadlineExceeded})

	fo := oracle.NewFallbackOracle([]port.Oracle{primary, g}, []string{"claude", "gemini"})
	defer func() { _ = fo.Close() }()

	c, err := oracle.NewClient(fo, nil, oracle.Options{
		Mode:    domain.ResearchWebSearchProviderA,
		Retrier: oracle.NewRetrier(3, 0, 0),
	})
	require.NoError(t, err)

	res := c.Research(context.Background(), oracle.Identity{Key: "acme", Name: "Acme"})
	assert.Equal(t, domain.StatusResearchFailed, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Contains(t, res.Error, "timed out")
	primary.AssertNumberOfCalls(t, "Judge", 3)
	assert.Equal(t, map[string]int{"gemini": 3}, fo.Skips(domain.ResearchWebSearchProviderA))
}
