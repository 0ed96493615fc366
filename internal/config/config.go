package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"icpscout/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Input    InputConfig
	Output   OutputConfig
	Research ResearchConfig
	Scoring  ScoringConfig
	Oracle   OracleConfig
	Search   SearchConfig
	Dedupe   DedupeConfig
	Segment  SegmentConfig
	Pipeline PipelineConfig
	ICP      ICPConfig
	History  HistoryConfig
	S3       S3Config
	Log      LogConfig
}

// InputConfig holds where conference PDFs are read from.
type InputConfig struct {
	Dir string `mapstructure:"dir"`
}

// OutputConfig holds where result files are written.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	RawFile   string `mapstructure:"raw_file"`
	CSVFile   string `mapstructure:"csv_file"`
	XLSXFile  string `mapstructure:"xlsx_file"`
	WriteXLSX bool   `mapstructure:"write_xlsx"`
}

// ResearchConfig selects the oracle's knowledge source.
type ResearchConfig struct {
	Mode string `mapstructure:"mode"`
}

// ThresholdConfig holds the four fit-level boundaries.
type ThresholdConfig struct {
	High   int `mapstructure:"high"`
	Medium int `mapstructure:"medium"`
	Low    int `mapstructure:"low"`
	Skip   int `mapstructure:"skip"`
}

// ScoringConfig selects the scoring policy and fit-level thresholds.
// A non-empty Preset other than "custom" takes precedence over Thresholds.
type ScoringConfig struct {
	Mode       string          `mapstructure:"mode"`
	Preset     string          `mapstructure:"threshold_preset"`
	Thresholds ThresholdConfig `mapstructure:"thresholds"`
}

// ProviderConfig holds settings for a single oracle provider.
type ProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// OracleConfig holds oracle provider and retry settings.
type OracleConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`

	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffMillis    int `mapstructure:"backoff_ms"`
	MaxBackoffMillis int `mapstructure:"max_backoff_ms"`

	Fallback ProviderConfig `mapstructure:"fallback"`
}

// PrimaryConfig returns the primary provider config.
func (o *OracleConfig) PrimaryConfig() *ProviderConfig {
	return &ProviderConfig{
		Provider:     o.Provider,
		APIKey:       o.APIKey,
		DefaultModel: o.DefaultModel,
		MaxTokens:    o.MaxTokens,
		TimeoutSecs:  o.TimeoutSecs,
	}
}

// FallbackConfig returns the fallback provider config, or nil if not configured.
func (o *OracleConfig) FallbackConfig() *ProviderConfig {
	if o.Fallback.Provider != "" {
		return &o.Fallback
	}
	return nil
}

// SearchConfig holds third-party web search settings.
type SearchConfig struct {
	BraveAPIKey  string `mapstructure:"brave_api_key"`
	Count        int    `mapstructure:"count"`
	CacheSize    int    `mapstructure:"cache_size"`
	CacheTTLSecs int    `mapstructure:"cache_ttl_secs"`
}

// DedupeConfig holds company-name clustering thresholds.
type DedupeConfig struct {
	MaxDistance     int `mapstructure:"max_distance"`
	MinSubstringLen int `mapstructure:"min_substring_len"`
}

// SegmentConfig holds PDF layout heuristics.
type SegmentConfig struct {
	HeadingRatio  float64 `mapstructure:"heading_ratio"`
	ColumnGap     float64 `mapstructure:"column_gap"`
	LineTolerance float64 `mapstructure:"line_tolerance"`
}

// PipelineConfig holds worker pool and run deadline settings.
type PipelineConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ICPConfig points at an optional rubric override file.
type ICPConfig struct {
	File string `mapstructure:"file"`
}

// HistoryConfig holds run history database settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
}

// S3Config holds AWS S3 settings for publishing outputs.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the ICPSCOUT_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ICPSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Input/output defaults
	v.SetDefault("input.dir", "data/input")
	v.SetDefault("output.dir", "data/output")
	v.SetDefault("output.raw_file", "raw_companies.json")
	v.SetDefault("output.csv_file", "validated_companies.csv")
	v.SetDefault("output.xlsx_file", "validated_companies.xlsx")
	v.SetDefault("output.write_xlsx", true)

	// Research and scoring defaults
	v.SetDefault("research.mode", string(domain.ResearchTrainingData))
	v.SetDefault("scoring.mode", string(domain.ScoringHolistic))
	v.SetDefault("scoring.threshold_preset", "standard")
	v.SetDefault("scoring.thresholds.high", 70)
	v.SetDefault("scoring.thresholds.medium", 45)
	v.SetDefault("scoring.thresholds.low", 25)
	v.SetDefault("scoring.thresholds.skip", 25)

	// Oracle defaults
	v.SetDefault("oracle.provider", "claude")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("oracle.max_tokens", 2048)
	v.SetDefault("oracle.timeout_secs", 120)
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.backoff_ms", 1000)
	v.SetDefault("oracle.max_backoff_ms", 30000)
	v.SetDefault("oracle.fallback.provider", "")
	v.SetDefault("oracle.fallback.api_key", "")
	v.SetDefault("oracle.fallback.default_model", "")
	v.SetDefault("oracle.fallback.max_tokens", 2048)
	v.SetDefault("oracle.fallback.timeout_secs", 120)

	// Search defaults
	v.SetDefault("search.brave_api_key", "")
	v.SetDefault("search.count", 5)
	v.SetDefault("search.cache_size", 256)
	v.SetDefault("search.cache_ttl_secs", 3600)

	// Dedupe and segment defaults
	v.SetDefault("dedupe.max_distance", 2)
	v.SetDefault("dedupe.min_substring_len", 4)
	v.SetDefault("segment.heading_ratio", 1.2)
	v.SetDefault("segment.column_gap", 40.0)
	v.SetDefault("segment.line_tolerance", 2.0)

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.timeout", "30m")

	v.SetDefault("icp.file", "")

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.dsn", "data/icpscout.db")

	// S3 defaults (publishing disabled when bucket is empty)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "icpscout")
	v.SetDefault("s3.endpoint", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"input.dir":                     "ICPSCOUT_INPUT_DIR",
		"output.dir":                    "ICPSCOUT_OUTPUT_DIR",
		"output.raw_file":               "ICPSCOUT_OUTPUT_RAW_FILE",
		"output.csv_file":               "ICPSCOUT_OUTPUT_CSV_FILE",
		"output.xlsx_file":              "ICPSCOUT_OUTPUT_XLSX_FILE",
		"output.write_xlsx":             "ICPSCOUT_OUTPUT_WRITE_XLSX",
		"research.mode":                 "ICPSCOUT_RESEARCH_MODE",
		"scoring.mode":                  "ICPSCOUT_SCORING_MODE",
		"scoring.threshold_preset":      "ICPSCOUT_SCORING_THRESHOLD_PRESET",
		"scoring.thresholds.high":       "ICPSCOUT_SCORING_THRESHOLDS_HIGH",
		"scoring.thresholds.medium":     "ICPSCOUT_SCORING_THRESHOLDS_MEDIUM",
		"scoring.thresholds.low":        "ICPSCOUT_SCORING_THRESHOLDS_LOW",
		"scoring.thresholds.skip":       "ICPSCOUT_SCORING_THRESHOLDS_SKIP",
		"oracle.provider":               "ICPSCOUT_ORACLE_PROVIDER",
		"oracle.api_key":                "ICPSCOUT_ORACLE_API_KEY",
		"oracle.default_model":          "ICPSCOUT_ORACLE_DEFAULT_MODEL",
		"oracle.max_tokens":             "ICPSCOUT_ORACLE_MAX_TOKENS",
		"oracle.timeout_secs":           "ICPSCOUT_ORACLE_TIMEOUT_SECS",
		"oracle.max_attempts":           "ICPSCOUT_ORACLE_MAX_ATTEMPTS",
		"oracle.backoff_ms":             "ICPSCOUT_ORACLE_BACKOFF_MS",
		"oracle.max_backoff_ms":         "ICPSCOUT_ORACLE_MAX_BACKOFF_MS",
		"oracle.fallback.provider":      "ICPSCOUT_ORACLE_FALLBACK_PROVIDER",
		"oracle.fallback.api_key":       "ICPSCOUT_ORACLE_FALLBACK_API_KEY",
		"oracle.fallback.default_model": "ICPSCOUT_ORACLE_FALLBACK_DEFAULT_MODEL",
		"oracle.fallback.max_tokens":    "ICPSCOUT_ORACLE_FALLBACK_MAX_TOKENS",
		"oracle.fallback.timeout_secs":  "ICPSCOUT_ORACLE_FALLBACK_TIMEOUT_SECS",
		"search.brave_api_key":          "ICPSCOUT_SEARCH_BRAVE_API_KEY",
		"search.count":                  "ICPSCOUT_SEARCH_COUNT",
		"search.cache_size":             "ICPSCOUT_SEARCH_CACHE_SIZE",
		"search.cache_ttl_secs":         "ICPSCOUT_SEARCH_CACHE_TTL_SECS",
		"dedupe.max_distance":           "ICPSCOUT_DEDUPE_MAX_DISTANCE",
		"dedupe.min_substring_len":      "ICPSCOUT_DEDUPE_MIN_SUBSTRING_LEN",
		"segment.heading_ratio":         "ICPSCOUT_SEGMENT_HEADING_RATIO",
		"segment.column_gap":            "ICPSCOUT_SEGMENT_COLUMN_GAP",
		"segment.line_tolerance":        "ICPSCOUT_SEGMENT_LINE_TOLERANCE",
		"pipeline.concurrency":          "ICPSCOUT_PIPELINE_CONCURRENCY",
		"pipeline.timeout":              "ICPSCOUT_PIPELINE_TIMEOUT",
		"icp.file":                      "ICPSCOUT_ICP_FILE",
		"history.enabled":               "ICPSCOUT_HISTORY_ENABLED",
		"history.driver":                "ICPSCOUT_HISTORY_DRIVER",
		"history.dsn":                   "ICPSCOUT_HISTORY_DSN",
		"s3.region":                     "ICPSCOUT_S3_REGION",
		"s3.bucket":                     "ICPSCOUT_S3_BUCKET",
		"s3.prefix":                     "ICPSCOUT_S3_PREFIX",
		"s3.endpoint":                   "ICPSCOUT_S3_ENDPOINT",
		"s3.access_key":                 "ICPSCOUT_S3_ACCESS_KEY",
		"s3.secret_key":                 "ICPSCOUT_S3_SECRET_KEY",
		"log.level":                     "ICPSCOUT_LOG_LEVEL",
		"log.format":                    "ICPSCOUT_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}
	cfg.Input = InputConfig{Dir: v.GetString("input.dir")}
	cfg.Output = OutputConfig{
		Dir:       v.GetString("output.dir"),
		RawFile:   v.GetString("output.raw_file"),
		CSVFile:   v.GetString("output.csv_file"),
		XLSXFile:  v.GetString("output.xlsx_file"),
		WriteXLSX: v.GetBool("output.write_xlsx"),
	}
	cfg.Research = ResearchConfig{Mode: v.GetString("research.mode")}
	cfg.Scoring = ScoringConfig{
		Mode:   v.GetString("scoring.mode"),
		Preset: v.GetString("scoring.threshold_preset"),
		Thresholds: ThresholdConfig{
			High:   v.GetInt("scoring.thresholds.high"),
			Medium: v.GetInt("scoring.thresholds.medium"),
			Low:    v.GetInt("scoring.thresholds.low"),
			Skip:   v.GetInt("scoring.thresholds.skip"),
		},
	}
	cfg.Oracle = OracleConfig{
		Provider:         v.GetString("oracle.provider"),
		APIKey:           v.GetString("oracle.api_key"),
		DefaultModel:     v.GetString("oracle.default_model"),
		MaxTokens:        v.GetInt("oracle.max_tokens"),
		TimeoutSecs:      v.GetInt("oracle.timeout_secs"),
		MaxAttempts:      v.GetInt("oracle.max_attempts"),
		BackoffMillis:    v.GetInt("oracle.backoff_ms"),
		MaxBackoffMillis: v.GetInt("oracle.max_backoff_ms"),
		Fallback: ProviderConfig{
			Provider:     v.GetString("oracle.fallback.provider"),
			APIKey:       v.GetString("oracle.fallback.api_key"),
			DefaultModel: v.GetString("oracle.fallback.default_model"),
			MaxTokens:    v.GetInt("oracle.fallback.max_tokens"),
			TimeoutSecs:  v.GetInt("oracle.fallback.timeout_secs"),
		},
	}
	cfg.Search = SearchConfig{
		BraveAPIKey:  v.GetString("search.brave_api_key"),
		Count:        v.GetInt("search.count"),
		CacheSize:    v.GetInt("search.cache_size"),
		CacheTTLSecs: v.GetInt("search.cache_ttl_secs"),
	}
	cfg.Dedupe = DedupeConfig{
		MaxDistance:     v.GetInt("dedupe.max_distance"),
		MinSubstringLen: v.GetInt("dedupe.min_substring_len"),
	}
	cfg.Segment = SegmentConfig{
		HeadingRatio:  v.GetFloat64("segment.heading_ratio"),
		ColumnGap:     v.GetFloat64("segment.column_gap"),
		LineTolerance: v.GetFloat64("segment.line_tolerance"),
	}
	cfg.Pipeline = PipelineConfig{
		Concurrency: v.GetInt("pipeline.concurrency"),
		Timeout:     v.GetDuration("pipeline.timeout"),
	}
	cfg.ICP = ICPConfig{File: v.GetString("icp.file")}
	cfg.History = HistoryConfig{
		Enabled: v.GetBool("history.enabled"),
		Driver:  v.GetString("history.driver"),
		DSN:     v.GetString("history.dsn"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Prefix:    v.GetString("s3.prefix"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	return cfg, nil
}

// Validate checks settings that cannot be defaulted away. Credentials are
// checked by the commands that need them.
func (c *Config) Validate() error {
	if _, err := domain.ParseResearchMode(c.Research.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := domain.ParseScoringMode(c.Scoring.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("config: pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Oracle.MaxAttempts < 1 {
		return fmt.Errorf("config: oracle.max_attempts must be at least 1, got %d", c.Oracle.MaxAttempts)
	}
	if c.Dedupe.MaxDistance < 0 {
		return fmt.Errorf("config: dedupe.max_distance must not be negative")
	}
	if c.Segment.HeadingRatio <= 1 {
		return fmt.Errorf("config: segment.heading_ratio must be greater than 1, got %g", c.Segment.HeadingRatio)
	}
	switch c.History.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("config: unsupported history.driver %q", c.History.Driver)
	}
	return nil
}
