package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icpscout/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "data/input", cfg.Input.Dir)
	assert.Equal(t, "raw_companies.json", cfg.Output.RawFile)
	assert.Equal(t, "training_data", cfg.Research.Mode)
	assert.Equal(t, "holistic", cfg.Scoring.Mode)
	assert.Equal(t, "standard", cfg.Scoring.Preset)
	assert.Equal(t, config.ThresholdConfig{High: 70, Medium: 45, Low: 25, Skip: 25}, cfg.Scoring.Thresholds)
	assert.Equal(t, "claude", cfg.Oracle.Provider)
	assert.Equal(t, 3, cfg.Oracle.MaxAttempts)
	assert.Equal(t, 2, cfg.Dedupe.MaxDistance)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Empty(t, cfg.S3.Bucket)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ICPSCOUT_RESEARCH_MODE", "web_search_provider_b")
	t.Setenv("ICPSCOUT_SCORING_MODE", "decomposed")
	t.Setenv("ICPSCOUT_SCORING_THRESHOLDS_HIGH", "80")
	t.Setenv("ICPSCOUT_ORACLE_API_KEY", "sk-test")
	t.Setenv("ICPSCOUT_ORACLE_FALLBACK_PROVIDER", "gemini")
	t.Setenv("ICPSCOUT_PIPELINE_CONCURRENCY", "8")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "web_search_provider_b", cfg.Research.Mode)
	assert.Equal(t, "decomposed", cfg.Scoring.Mode)
	assert.Equal(t, 80, cfg.Scoring.Thresholds.High)
	assert.Equal(t, "sk-test", cfg.Oracle.PrimaryConfig().APIKey)
	require.NotNil(t, cfg.Oracle.FallbackConfig())
	assert.Equal(t, "gemini", cfg.Oracle.FallbackConfig().Provider)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
}

func TestOracleConfig_FallbackConfig_NotConfigured(t *testing.T) {
	cfg := config.OracleConfig{Provider: "claude", APIKey: "sk"}
	assert.Nil(t, cfg.FallbackConfig())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"research mode", func(c *config.Config) { c.Research.Mode = "psychic" }},
		{"scoring mode", func(c *config.Config) { c.Scoring.Mode = "vibes" }},
		{"concurrency", func(c *config.Config) { c.Pipeline.Concurrency = 0 }},
		{"attempts", func(c *config.Config) { c.Oracle.MaxAttempts = 0 }},
		{"heading ratio", func(c *config.Config) { c.Segment.HeadingRatio = 1 }},
		{"history driver", func(c *config.Config) { c.History.Driver = "mysql" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
