package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icpscout/internal/config"
	"icpscout/internal/domain"
	"icpscout/internal/oracle"
	"icpscout/internal/port"
)

func newTestOracle(t *testing.T, serverURL string) *Oracle {
	t.Helper()
	o, err := NewWithEndpoint(&config.ProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		MaxTokens:    1024,
		TimeoutSecs:  30,
	}, serverURL)
	require.NoError(t, err)
	return o
}

func TestJudge_TrainingData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(1024), reqBody["max_tokens"])
		assert.NotContains(t, reqBody, "tools")

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 1)
		msg := messages[0].(map[string]interface{})
		assert.Equal(t, "user", msg["role"])
		assert.Equal(t, "score Acme", msg["content"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":       "claude-sonnet-4-20250514",
			"content":     []map[string]interface{}{{"type": "text", "text": `{"icp_score": 78}`}},
			"stop_reason": "end_turn",
			"usage":       map[string]interface{}{"input_tokens": 900, "output_tokens": 120},
		})
	}))
	defer server.Close()

	out, err := newTestOracle(t, server.URL).Judge(context.Background(), port.OracleRequest{
		Company: "Acme", Prompt: "score Acme", Mode: domain.ResearchTrainingData,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"icp_score": 78}`, out.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
	assert.Equal(t, 900, out.InputTokens)
	assert.Equal(t, 120, out.OutputTokens)
}

func TestJudge_WebSearchAttachesToolAndJoinsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, float64(4096), reqBody["max_tokens"])
		tools := reqBody["tools"].([]interface{})
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]interface{})
		assert.Equal(t, "web_search_20250305", tool["type"])
		assert.Equal(t, "web_search", tool["name"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "Let me look that up."},
				{"type": "server_tool_use"},
				{"type": "web_search_tool_result"},
				{"type": "text", "text": `{"icp_score": 61}`},
			},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	out, err := newTestOracle(t, server.URL).Judge(context.Background(), port.OracleRequest{
		Prompt: "score Acme", Mode: domain.ResearchWebSearchProviderA, MaxTokens: 4096,
	})

	require.NoError(t, err)
	assert.Equal(t, "Let me look that up.\n{\"icp_score\": 61}", out.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
}

func TestJudge_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	_, err := newTestOracle(t, server.URL).Judge(context.Background(), port.OracleRequest{Prompt: "x"})

	var rl *oracle.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, "claude", rl.Provider)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
	assert.True(t, oracle.IsRetryable(err))
}

func TestJudge_StatusErrors(t *testing.T) {
	for code, retryable := range map[int]bool{
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusInternalServerError: true,
		529:                            true,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"type":"error"}`))
		}))

		_, err := newTestOracle(t, server.URL).Judge(context.Background(), port.OracleRequest{Prompt: "x"})
		server.Close()

		var se *oracle.StatusError
		require.ErrorAs(t, err, &se, "status %d", code)
		assert.Equal(t, code, se.StatusCode)
		assert.Equal(t, retryable, oracle.IsRetryable(err), "status %d", code)
	}
}

func TestJudge_MalformedResponses(t *testing.T) {
	for name, body := range map[string]string{
		"truncated": `{"content":[{"type":"text","text":"{\"icp_score\":"}],"stop_reason":"max_tokens"}`,
		"no text":   `{"content":[{"type":"server_tool_use"}],"stop_reason":"end_turn"}`,
		"not json":  `<html>bad gateway</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := newTestOracle(t, server.URL).Judge(context.Background(), port.OracleRequest{Prompt: "x"})

			var mal *oracle.MalformedResponseError
			require.ErrorAs(t, err, &mal)
			assert.False(t, oracle.IsRetryable(err))
		})
	}
}

func TestJudge_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	o := newTestOracle(t, server.URL)
	o.client.Timeout = 50 * time.Millisecond

	_, err := o.Judge(context.Background(), port.OracleRequest{Prompt: "x"})

	var to *oracle.TimeoutError
	require.ErrorAs(t, err, &to)
	assert.True(t, oracle.IsRetryable(err))
}

func TestJudge_CallerCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestOracle(t, server.URL).Judge(ctx, port.OracleRequest{Prompt: "x"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, oracle.IsRetryable(err))
}

func TestNew_MissingKey(t *testing.T) {
	_, err := New(&config.ProviderConfig{Provider: "claude"})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}
