package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icpscout/internal/config"
	"icpscout/internal/domain"
	"icpscout/internal/pipeline"
	"icpscout/internal/scoring"
)

func TestResolveThresholds(t *testing.T) {
	configured := config.ScoringConfig{
		Preset:     "custom",
		Thresholds: config.ThresholdConfig{High: 80, Medium: 60, Low: 30, Skip: 10},
	}
	tests := []struct {
		name    string
		flag    string
		sc      config.ScoringConfig
		want    scoring.Thresholds
		wantErr bool
	}{
		{name: "config preset", sc: config.ScoringConfig{Preset: "standard"}, want: scoring.Standard},
		{name: "config custom", sc: configured, want: scoring.Thresholds{High: 80, Medium: 60, Low: 30, Skip: 10}},
		{name: "flag preset", flag: "strict", sc: configured, want: scoring.Strict},
		{name: "flag values", flag: "90,60,30,10", sc: configured, want: scoring.Thresholds{High: 90, Medium: 60, Low: 30, Skip: 10}},
		{name: "unknown preset", flag: "lenient", wantErr: true},
		{name: "unordered values", flag: "10,20,30,40", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveThresholds(tt.flag, tt.sc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ICPSCOUT_HISTORY_ENABLED", "false")
	t.Setenv("ICPSCOUT_OUTPUT_DIR", t.TempDir())
	t.Setenv("ICPSCOUT_LOG_LEVEL", "error")

	a := &app{}
	defer a.close()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExtract_EmptyInputDir(t *testing.T) {
	_, err := execute(t, "extract", "--input", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrNoInput)
}

func TestRun_MissingCredential(t *testing.T) {
	t.Setenv("ICPSCOUT_ORACLE_API_KEY", "")
	_, err := execute(t, "run", "--input", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestRun_InvalidResearchMode(t *testing.T) {
	_, err := execute(t, "run", "--research-mode", "telepathy")
	assert.Error(t, err)
}

func TestRun_GeminiRejectsProviderA(t *testing.T) {
	t.Setenv("ICPSCOUT_ORACLE_PROVIDER", "gemini")
	t.Setenv("ICPSCOUT_ORACLE_API_KEY", "test-key")
	_, err := execute(t, "run", "--research-mode", "web_search_provider_a", "--input", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support")
}

func TestPrintRuns_Empty(t *testing.T) {
	var out bytes.Buffer
	printRuns(&out, nil)
	assert.Equal(t, "no runs recorded\n", out.String())
}

func TestPrintSummary_ReportsConflicts(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &pipeline.Result{
		RunID:   "run-1",
		Summary: pipeline.Summary{Identities: 3, Conflicts: 2, ByFit: map[domain.FitLevel]int{}},
	})
	assert.Regexp(t, `Merge conflicts\s+2\n`, out.String())
	assert.NotContains(t, out.String(), "Top accounts")
}

func TestCheckProviders(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.OracleConfig
		mode     domain.ResearchMode
		wantFail bool
	}{
		{name: "claude provider a", cfg: config.OracleConfig{Provider: "claude"}, mode: domain.ResearchWebSearchProviderA},
		{name: "gemini primary provider a", cfg: config.OracleConfig{Provider: "gemini"}, mode: domain.ResearchWebSearchProviderA, wantFail: true},
		{
			name:     "gemini fallback provider a",
			cfg:      config.OracleConfig{Provider: "claude", Fallback: config.ProviderConfig{Provider: "gemini"}},
			mode:     domain.ResearchWebSearchProviderA,
			wantFail: true,
		},
		{
			name: "gemini fallback training data",
			cfg:  config.OracleConfig{Provider: "claude", Fallback: config.ProviderConfig{Provider: "gemini"}},
			mode: domain.ResearchTrainingData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkProviders(&tt.cfg, tt.mode)
			if tt.wantFail {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRun_GeminiFallbackRejectsProviderA(t *testing.T) {
	t.Setenv("ICPSCOUT_ORACLE_PROVIDER", "claude")
	t.Setenv("ICPSCOUT_ORACLE_API_KEY", "test-key")
	t.Setenv("ICPSCOUT_ORACLE_FALLBACK_PROVIDER", "gemini")
	_, err := execute(t, "run", "--research-mode", "web_search_provider_a", "--input", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support")
}
