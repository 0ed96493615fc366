package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"icpscout/internal/domain"
)

// Thresholds are the four score boundaries that drive fit levels and actions.
//
//	score >= High    -> High
//	score >= Medium  -> Medium
//	score >= Skip    -> Low
//	otherwise        -> Skip
//
// Low is the cut below which a Low or Skip company is not worth more research.
type Thresholds struct {
	High   int
	Medium int
	Low    int
	Skip   int
}

var (
	// Standard is the 70/45/25 scheme.
	Standard = Thresholds{High: 70, Medium: 45, Low: 25, Skip: 25}
	// Strict is the 75/50 scheme with no Skip tier.
	Strict = Thresholds{High: 75, Medium: 50, Low: 25, Skip: 0}
)

var presets = map[string]Thresholds{
	"standard": Standard,
	"strict":   Strict,
}

// Preset looks up a named threshold set.
func Preset(name string) (Thresholds, error) {
	t, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Thresholds{}, fmt.Errorf("unknown threshold preset: %q", name)
	}
	return t, nil
}

// ParseThresholds parses "high,medium,low,skip".
func ParseThresholds(s string) (Thresholds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Thresholds{}, fmt.Errorf("thresholds must have four values high,medium,low,skip: %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Thresholds{}, fmt.Errorf("threshold %q is not an integer", p)
		}
		vals[i] = n
	}
	t := Thresholds{High: vals[0], Medium: vals[1], Low: vals[2], Skip: vals[3]}
	return t, t.Validate()
}

// Resolve picks a preset when one is named, otherwise the custom values.
func Resolve(preset string, custom Thresholds) (Thresholds, error) {
	if preset != "" && preset != "custom" {
		return Preset(preset)
	}
	return custom, custom.Validate()
}

// Validate enforces 0 <= Skip <= Low <= Medium <= High <= 100.
func (t Thresholds) Validate() error {
	if t.Skip < 0 || t.Skip > t.Low || t.Low > t.Medium || t.Medium > t.High || t.High > 100 {
		return fmt.Errorf("thresholds must satisfy 0 <= skip <= low <= medium <= high <= 100, got %s", t)
	}
	return nil
}

func (t Thresholds) String() string {
	return fmt.Sprintf("%d/%d/%d/%d", t.High, t.Medium, t.Low, t.Skip)
}

// FitLevel derives the tier for a score.
func (t Thresholds) FitLevel(score int) domain.FitLevel {
	switch {
	case score >= t.High:
		return domain.FitHigh
	case score >= t.Medium:
		return domain.FitMedium
	case score >= t.Skip:
		return domain.FitLow
	default:
		return domain.FitSkip
	}
}

// RecommendedAction maps a score to the sales follow-up.
func (t Thresholds) RecommendedAction(score int) string {
	switch t.FitLevel(score) {
	case domain.FitHigh:
		return domain.ActionPriorityOutreach
	case domain.FitMedium:
		return domain.ActionBoothApproach
	}
	if score >= t.Low {
		return domain.ActionResearchMore
	}
	return domain.ActionSkip
}
