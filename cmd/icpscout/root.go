package main

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"icpscout/internal/config"
	"icpscout/internal/logging"
	"icpscout/internal/scoring"
)

// overrides are the command-line flags that take precedence over config.
type overrides struct {
	researchMode string
	scoringMode  string
	thresholds   string
	input        string
	output       string
	model        string
	concurrency  int
	timeout      time.Duration
}

type app struct {
	cfg        *config.Config
	thresholds scoring.Thresholds
	flags      overrides
	closeLog   func()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "icpscout",
		Short:         "Extract companies from conference PDFs and score them against the ICP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.input, "input", "", "directory of conference PDFs (overrides input.dir)")
	f.StringVar(&a.flags.output, "output", "", "directory for result files (overrides output.dir)")

	root.AddCommand(newRunCmd(a), newExtractCmd(a), newRunsCmd(a))
	return root
}

// close flushes the logger. It is safe to call when setup never ran.
func (a *app) close() {
	if a.closeLog != nil {
		a.closeLog()
	}
}

// setup loads .env and config, then applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	// a missing .env file is normal
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "loading config")
	}
	a.applyOverrides(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	t, err := resolveThresholds(a.flags.thresholds, cfg.Scoring)
	if err != nil {
		return err
	}
	a.thresholds = t

	closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	a.closeLog = closeLog
	a.cfg = cfg
	return nil
}

func (a *app) applyOverrides(cfg *config.Config, cmd *cobra.Command) {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("input") {
		cfg.Input.Dir = a.flags.input
	}
	if changed("output") {
		cfg.Output.Dir = a.flags.output
	}
	if changed("research-mode") {
		cfg.Research.Mode = a.flags.researchMode
	}
	if changed("scoring-mode") {
		cfg.Scoring.Mode = a.flags.scoringMode
	}
	if changed("model") {
		cfg.Oracle.DefaultModel = a.flags.model
	}
	if changed("concurrency") {
		cfg.Pipeline.Concurrency = a.flags.concurrency
	}
	if changed("timeout") {
		cfg.Pipeline.Timeout = a.flags.timeout
	}
}

// resolveThresholds accepts a preset name or four comma-separated values.
// An empty flag falls back to the configured preset or custom values.
func resolveThresholds(flag string, sc config.ScoringConfig) (scoring.Thresholds, error) {
	flag = strings.TrimSpace(flag)
	switch {
	case flag == "":
		custom := scoring.Thresholds{
			High:   sc.Thresholds.High,
			Medium: sc.Thresholds.Medium,
			Low:    sc.Thresholds.Low,
			Skip:   sc.Thresholds.Skip,
		}
		return scoring.Resolve(sc.Preset, custom)
	case strings.Contains(flag, ","):
		return scoring.ParseThresholds(flag)
	default:
		t, err := scoring.Preset(flag)
		if err != nil {
			return scoring.Thresholds{}, errors.Join(err, errors.New("use standard, strict or high,medium,low,skip"))
		}
		return t, nil
	}
}
