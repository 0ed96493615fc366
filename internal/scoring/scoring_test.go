package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icpscout/internal/domain"
	"icpscout/internal/scoring"
)

func intPtr(v int) *int { return &v }

func TestHolistic_ClampsScore(t *testing.T) {
	p := scoring.Holistic{}

	res, err := scoring.Score(p, scoring.Judgement{Score: intPtr(130)})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.Nil(t, res.SubScores)

	res, err = scoring.Score(p, scoring.Judgement{Score: intPtr(-4)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)

	_, err = scoring.Score(p, scoring.Judgement{})
	assert.ErrorIs(t, err, scoring.ErrMissingScore)
}

func TestDecomposed_SumsSubScores(t *testing.T) {
	p := scoring.Decomposed{Weights: scoring.DefaultWeights}
	sub := &domain.SubScores{Industry: 30, Size: 20, Tech: 15, Ops: 10, Persona: 8, Adjustment: -5}

	res, err := scoring.Score(p, scoring.Judgement{SubScores: sub})
	require.NoError(t, err)
	assert.Equal(t, 78, res.Score)
	assert.Equal(t, *sub, *res.SubScores)
}

func TestDecomposed_ClampsEachCategoryBeforeSumming(t *testing.T) {
	p := scoring.Decomposed{Weights: scoring.DefaultWeights}
	sub := &domain.SubScores{Industry: 90, Size: -10, Tech: 20, Ops: 40, Persona: 10, Adjustment: 50}

	res, err := scoring.Score(p, scoring.Judgement{SubScores: sub})
	require.NoError(t, err)
	// 35 + 0 + 20 + 15 + 10 + 5
	assert.Equal(t, 85, res.Score)
	assert.Equal(t, domain.SubScores{Industry: 35, Size: 0, Tech: 20, Ops: 15, Persona: 10, Adjustment: 5}, *res.SubScores)
}

func TestDecomposed_TotalAlwaysInRangeAndIdempotent(t *testing.T) {
	p := scoring.Decomposed{Weights: scoring.DefaultWeights}
	values := []int{-1000, -15, -1, 0, 3, 10, 25, 35, 1000}
	for _, a := range values {
		for _, b := range values {
			sub := domain.SubScores{Industry: a, Size: b, Tech: a, Ops: b, Persona: a, Adjustment: b}
			first, err := scoring.Score(p, scoring.Judgement{SubScores: &sub})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, first.Score, 0)
			assert.LessOrEqual(t, first.Score, 100)

			again, err := scoring.Score(p, scoring.Judgement{SubScores: first.SubScores})
			require.NoError(t, err)
			assert.Equal(t, first.Score, again.Score)
			assert.Equal(t, *first.SubScores, *again.SubScores)
		}
	}
}

func TestDecomposed_MissingSubScores(t *testing.T) {
	_, err := scoring.Score(scoring.Decomposed{Weights: scoring.DefaultWeights}, scoring.Judgement{Score: intPtr(50)})
	assert.ErrorIs(t, err, scoring.ErrMissingSubScores)
}

func TestNewPolicy(t *testing.T) {
	p, err := scoring.NewPolicy(domain.ScoringHolistic, scoring.DefaultWeights)
	require.NoError(t, err)
	assert.Equal(t, domain.ScoringHolistic, p.Mode())

	p, err = scoring.NewPolicy(domain.ScoringDecomposed, scoring.DefaultWeights)
	require.NoError(t, err)
	assert.Equal(t, domain.ScoringDecomposed, p.Mode())

	_, err = scoring.NewPolicy(domain.ScoringDecomposed, scoring.Weights{AdjustmentMin: 5, AdjustmentMax: -5})
	assert.Error(t, err)

	_, err = scoring.NewPolicy("other", scoring.DefaultWeights)
	assert.Error(t, err)
}

func TestThresholds_FitLevelScenario(t *testing.T) {
	assert.Equal(t, domain.FitHigh, scoring.Standard.FitLevel(78))
	assert.Equal(t, domain.FitMedium, scoring.Strict.FitLevel(78))
}

func TestThresholds_Standard(t *testing.T) {
	tests := []struct {
		score  int
		level  domain.FitLevel
		action string
	}{
		{100, domain.FitHigh, domain.ActionPriorityOutreach},
		{70, domain.FitHigh, domain.ActionPriorityOutreach},
		{69, domain.FitMedium, domain.ActionBoothApproach},
		{45, domain.FitMedium, domain.ActionBoothApproach},
		{44, domain.FitLow, domain.ActionResearchMore},
		{25, domain.FitLow, domain.ActionResearchMore},
		{24, domain.FitSkip, domain.ActionSkip},
		{0, domain.FitSkip, domain.ActionSkip},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, scoring.Standard.FitLevel(tt.score), "score %d", tt.score)
		assert.Equal(t, tt.action, scoring.Standard.RecommendedAction(tt.score), "score %d", tt.score)
	}
}

func TestThresholds_StrictHasNoSkipTier(t *testing.T) {
	assert.Equal(t, domain.FitLow, scoring.Strict.FitLevel(0))
	assert.Equal(t, domain.FitLow, scoring.Strict.FitLevel(49))
	assert.Equal(t, domain.ActionSkip, scoring.Strict.RecommendedAction(10))
	assert.Equal(t, domain.ActionResearchMore, scoring.Strict.RecommendedAction(30))
}

func TestThresholds_FitLevelDeterministic(t *testing.T) {
	for s := -5; s <= 105; s++ {
		assert.Equal(t, scoring.Standard.FitLevel(s), scoring.Standard.FitLevel(s))
	}
}

func TestParseThresholds(t *testing.T) {
	th, err := scoring.ParseThresholds("75, 50, 25, 0")
	require.NoError(t, err)
	assert.Equal(t, scoring.Strict, th)

	_, err = scoring.ParseThresholds("75,50")
	assert.Error(t, err)
	_, err = scoring.ParseThresholds("75,50,x,0")
	assert.Error(t, err)
	_, err = scoring.ParseThresholds("40,50,25,0")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	th, err := scoring.Resolve("strict", scoring.Thresholds{})
	require.NoError(t, err)
	assert.Equal(t, scoring.Strict, th)

	custom := scoring.Thresholds{High: 80, Medium: 60, Low: 30, Skip: 10}
	th, err = scoring.Resolve("custom", custom)
	require.NoError(t, err)
	assert.Equal(t, custom, th)

	_, err = scoring.Resolve("lenient", custom)
	assert.Error(t, err)
}
