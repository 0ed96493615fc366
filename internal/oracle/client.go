// Package oracle researches and scores one company identity at a time
// against the ICP rubric through a pluggable LLM provider.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"icpscout/internal/domain"
	"icpscout/internal/icp"
	"icpscout/internal/port"
	"icpscout/internal/scoring"
)

// Options configures a Client.
type Options struct {
	Mode        domain.ResearchMode
	Policy      scoring.Policy
	Thresholds  scoring.Thresholds
	Rubric      *icp.Rubric
	MaxTokens   int
	SearchCount int
	Retrier     *Retrier
}

// Client issues one independent research request per company identity.
// It is safe for concurrent use.
type Client struct {
	oracle      port.Oracle
	search      port.WebSearcher
	mode        domain.ResearchMode
	policy      scoring.Policy
	thresholds  scoring.Thresholds
	rubric      *icp.Rubric
	maxTokens   int
	searchCount int
	retrier     *Retrier
	schema      *jsonschema.Schema
}

// NewClient creates a Client. search is only used in web_search_provider_b
// mode and may be nil otherwise.
func NewClient(o port.Oracle, search port.WebSearcher, opts Options) (*Client, error) {
	if o == nil {
		return nil, errors.New("oracle.NewClient: nil oracle")
	}
	if opts.Mode == "" {
		opts.Mode = domain.ResearchTrainingData
	}
	if opts.Mode == domain.ResearchWebSearchProviderB && search == nil {
		return nil, fmt.Errorf("oracle.NewClient: %s mode needs a web search client", opts.Mode)
	}
	if opts.Policy == nil {
		opts.Policy = scoring.Holistic{}
	}
	if opts.Thresholds == (scoring.Thresholds{}) {
		opts.Thresholds = scoring.Standard
	}
	if opts.Rubric == nil {
		r, err := icp.Default()
		if err != nil {
			return nil, fmt.Errorf("oracle.NewClient: %w", err)
		}
		opts.Rubric = r
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.SearchCount <= 0 {
		opts.SearchCount = 5
	}
	if opts.Retrier == nil {
		opts.Retrier = NewRetrier(3, time.Second, 30*time.Second)
	}
	schema, err := compileSchema(opts.Policy.Mode())
	if err != nil {
		return nil, fmt.Errorf("oracle.NewClient: %w", err)
	}
	return &Client{
		oracle:      o,
		search:      search,
		mode:        opts.Mode,
		policy:      opts.Policy,
		thresholds:  opts.Thresholds,
		rubric:      opts.Rubric,
		maxTokens:   opts.MaxTokens,
		searchCount: opts.SearchCount,
		retrier:     opts.Retrier,
		schema:      schema,
	}, nil
}

// Mode returns the configured research mode.
func (c *Client) Mode() domain.ResearchMode { return c.mode }

// Research researches and scores one identity. It never returns an error:
// transient failures are retried, and what is left becomes a result with
// status research_failed, or cancelled when ctx ended first.
func (c *Client) Research(ctx context.Context, id Identity) *domain.ResearchResult {
	log := zap.L().With(zap.String("company", id.Name), zap.String("mode", string(c.mode)))
	if err := ctx.Err(); err != nil {
		return cancelled(id, err)
	}

	var (
		res   *domain.ResearchResult
		model string
	)
	attempts, err := c.retrier.Do(ctx, id.Name, func(ctx context.Context) error {
		prompt, err := c.prompt(ctx, id)
		if err != nil {
			return err
		}
		resp, err := c.oracle.Judge(ctx, port.OracleRequest{
			Company:   id.Name,
			Prompt:    prompt,
			Mode:      c.mode,
			MaxTokens: c.maxTokens,
		})
		if err != nil {
			return err
		}
		model = resp.ModelUsed
		j, err := decodeJudgement(resp.Text, c.schema)
		if err != nil {
			return err
		}
		res, err = c.toResult(j, id)
		return err
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Info("oracle: research cancelled", zap.Int("attempts", attempts), zap.Error(err))
			r := cancelled(id, ctxErr)
			r.Attempts = attempts
			return r
		}
		log.Warn("oracle: research failed", zap.Int("attempts", attempts), zap.Error(err))
		return &domain.ResearchResult{
			CompanyName: id.Name,
			Status:      domain.StatusResearchFailed,
			Error:       err.Error(),
			Attempts:    attempts,
			ModelUsed:   model,
		}
	}

	res.Attempts = attempts
	res.ModelUsed = model
	log.Info("oracle: researched",
		zap.Int("icp_score", res.ICPScore),
		zap.String("fit_level", string(res.FitLevel)),
		zap.Int("attempts", attempts))
	return res
}

func (c *Client) prompt(ctx context.Context, id Identity) (string, error) {
	var results []port.SearchResult
	if c.mode == domain.ResearchWebSearchProviderB {
		query := fmt.Sprintf("%s company information field service CRM", id.Name)
		var err error
		results, err = c.search.Search(ctx, query, c.searchCount)
		if err != nil {
			return "", fmt.Errorf("web search: %w", err)
		}
	}
	return BuildResearchPrompt(c.rubric, id, c.mode, c.policy.Mode(), results), nil
}

func cancelled(id Identity, err error) *domain.ResearchResult {
	return &domain.ResearchResult{
		CompanyName: id.Name,
		Status:      domain.StatusCancelled,
		Error:       err.Error(),
	}
}
