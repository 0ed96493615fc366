// Package scoring turns oracle judgements into ICP scores and fit levels.
package scoring

import (
	"errors"
	"fmt"

	"icpscout/internal/domain"
)

var (
	ErrMissingScore     = errors.New("judgement has no score")
	ErrMissingSubScores = errors.New("judgement has no sub-scores")
)

// Judgement is the raw scoring payload returned by the oracle. Only the part
// the active policy reads needs to be present.
type Judgement struct {
	Score     *int
	SubScores *domain.SubScores
}

// Result is a scored judgement. SubScores holds the clamped breakdown in
// decomposed mode and is nil in holistic mode.
type Result struct {
	Score     int
	SubScores *domain.SubScores
}

// Policy is one of Holistic or Decomposed. The set is closed.
type Policy interface {
	Mode() domain.ScoringMode
	score(j Judgement) (Result, error)
}

// Holistic accepts the oracle's single 0-100 score.
type Holistic struct{}

func (Holistic) Mode() domain.ScoringMode { return domain.ScoringHolistic }

func (Holistic) score(j Judgement) (Result, error) {
	if j.Score == nil {
		return Result{}, ErrMissingScore
	}
	return Result{Score: clamp(*j.Score, 0, 100)}, nil
}

// Weights bounds each decomposed category. Categories other than the
// adjustment range from zero to their weight.
type Weights struct {
	Industry      int `yaml:"industry"`
	Size          int `yaml:"size"`
	Tech          int `yaml:"tech"`
	Ops           int `yaml:"ops"`
	Persona       int `yaml:"persona"`
	AdjustmentMin int `yaml:"adjustment_min"`
	AdjustmentMax int `yaml:"adjustment_max"`
}

// DefaultWeights is the standard ICP breakdown.
var DefaultWeights = Weights{
	Industry:      35,
	Size:          25,
	Tech:          20,
	Ops:           15,
	Persona:       10,
	AdjustmentMin: -15,
	AdjustmentMax: 5,
}

// Validate checks that every range is well formed.
func (w Weights) Validate() error {
	for name, v := range map[string]int{
		"industry": w.Industry, "size": w.Size, "tech": w.Tech, "ops": w.Ops, "persona": w.Persona,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	if w.AdjustmentMin > w.AdjustmentMax {
		return fmt.Errorf("adjustment range [%d,%d] is inverted", w.AdjustmentMin, w.AdjustmentMax)
	}
	return nil
}

// Decomposed sums per-category sub-scores after clamping each to its range.
type Decomposed struct {
	Weights Weights
}

func (Decomposed) Mode() domain.ScoringMode { return domain.ScoringDecomposed }

func (d Decomposed) score(j Judgement) (Result, error) {
	if j.SubScores == nil {
		return Result{}, ErrMissingSubScores
	}
	clamped := d.Clamp(*j.SubScores)
	return Result{Score: Total(clamped), SubScores: &clamped}, nil
}

// Clamp bounds every sub-score to its declared range.
func (d Decomposed) Clamp(s domain.SubScores) domain.SubScores {
	w := d.Weights
	return domain.SubScores{
		Industry:   clamp(s.Industry, 0, w.Industry),
		Size:       clamp(s.Size, 0, w.Size),
		Tech:       clamp(s.Tech, 0, w.Tech),
		Ops:        clamp(s.Ops, 0, w.Ops),
		Persona:    clamp(s.Persona, 0, w.Persona),
		Adjustment: clamp(s.Adjustment, w.AdjustmentMin, w.AdjustmentMax),
	}
}

// Total sums sub-scores and clamps the result to [0,100].
func Total(s domain.SubScores) int {
	return clamp(s.Industry+s.Size+s.Tech+s.Ops+s.Persona+s.Adjustment, 0, 100)
}

// Score applies the policy to a judgement.
func Score(p Policy, j Judgement) (Result, error) {
	return p.score(j)
}

// NewPolicy builds the policy for a scoring mode.
func NewPolicy(mode domain.ScoringMode, w Weights) (Policy, error) {
	switch mode {
	case domain.ScoringHolistic:
		return Holistic{}, nil
	case domain.ScoringDecomposed:
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("scoring.NewPolicy: %w", err)
		}
		return Decomposed{Weights: w}, nil
	default:
		return nil, fmt.Errorf("scoring.NewPolicy: unknown mode %q", mode)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
