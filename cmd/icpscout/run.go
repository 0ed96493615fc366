package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"icpscout/internal/config"
	"icpscout/internal/domain"
	"icpscout/internal/icp"
	"icpscout/internal/oracle"
	"icpscout/internal/oracle/gemini"
	"icpscout/internal/output"
	"icpscout/internal/pipeline"
	"icpscout/internal/port"
	"icpscout/internal/reconcile"
	"icpscout/internal/repository/history"
	"icpscout/internal/scoring"
	"icpscout/internal/search/brave"
	"icpscout/internal/segment"
	"icpscout/internal/storage/s3"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, research, score and reconcile every company in the input PDFs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.flags.researchMode, "research-mode", "", "training_data, web_search_provider_a or web_search_provider_b")
	f.StringVar(&a.flags.scoringMode, "scoring-mode", "", "holistic or decomposed")
	f.StringVar(&a.flags.thresholds, "thresholds", "", "standard, strict or high,medium,low,skip")
	f.StringVar(&a.flags.model, "model", "", "oracle model id")
	f.IntVar(&a.flags.concurrency, "concurrency", 0, "parallel oracle calls")
	f.DurationVar(&a.flags.timeout, "timeout", 0, "overall run deadline")
	return cmd
}

func (a *app) run(parent context.Context, out io.Writer) error {
	cfg := a.cfg
	mode, _ := domain.ParseResearchMode(cfg.Research.Mode)
	scoringMode, _ := domain.ParseScoringMode(cfg.Scoring.Mode)

	if cfg.Oracle.APIKey == "" {
		return eris.Wrapf(domain.ErrMissingCredential, "set ICPSCOUT_ORACLE_API_KEY for provider %s", cfg.Oracle.Provider)
	}
	if err := checkProviders(&cfg.Oracle, mode); err != nil {
		return err
	}

	var searcher port.WebSearcher
	if mode == domain.ResearchWebSearchProviderB {
		b, err := brave.New(&cfg.Search)
		if err != nil {
			return eris.Wrap(err, "web search")
		}
		searcher = b
	}

	docs, err := loadInput(cfg.Input.Dir)
	if err != nil {
		return err
	}

	rubric, err := icp.Load(cfg.ICP.File)
	if err != nil {
		return eris.Wrap(err, "loading ICP rubric")
	}
	policy, err := scoring.NewPolicy(scoringMode, rubric.Weights)
	if err != nil {
		return eris.Wrap(err, "scoring policy")
	}

	o, closeOracle, err := oracle.FromConfig(&cfg.Oracle)
	if err != nil {
		return eris.Wrap(err, "creating oracle")
	}
	defer func() {
		if err := closeOracle(); err != nil {
			zap.L().Warn("oracle: close failed", zap.Error(err))
		}
	}()
	client, err := oracle.NewClient(o, searcher, oracle.Options{
		Mode:        mode,
		Policy:      policy,
		Thresholds:  a.thresholds,
		Rubric:      rubric,
		MaxTokens:   cfg.Oracle.MaxTokens,
		SearchCount: cfg.Search.Count,
		Retrier: oracle.NewRetrier(cfg.Oracle.MaxAttempts,
			time.Duration(cfg.Oracle.BackoffMillis)*time.Millisecond,
			time.Duration(cfg.Oracle.MaxBackoffMillis)*time.Millisecond),
	})
	if err != nil {
		return eris.Wrap(err, "creating oracle client")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Pipeline.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pipeline.Timeout)
		defer cancel()
	}

	recorder, closeHistory := a.openHistory()
	defer closeHistory()

	emitter, err := a.newEmitter(ctx)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Deps{
		Researcher: client,
		Recorder:   recorder,
		Emitter:    emitter,
	}, a.pipelineOptions(mode, scoringMode))

	res, err := p.Run(ctx, docs)
	if err != nil {
		return err
	}
	printSummary(out, res)
	if res.Cancelled {
		return eris.Wrapf(ctx.Err(), "run stopped early, %d of %d companies researched, partial results written to %s",
			res.Summary.Researched, res.Summary.Identities, cfg.Output.Dir)
	}
	return nil
}

// checkProviders rejects a research mode that the primary or the fallback
// provider cannot serve.
func checkProviders(cfg *config.OracleConfig, mode domain.ResearchMode) error {
	for _, p := range []string{cfg.Provider, cfg.Fallback.Provider} {
		if p == "gemini" && !gemini.SupportsMode(mode) {
			return eris.Errorf("provider gemini does not support research mode %s", mode)
		}
	}
	return nil
}

func (a *app) pipelineOptions(mode domain.ResearchMode, scoringMode domain.ScoringMode) pipeline.Options {
	cfg := a.cfg
	return pipeline.Options{
		Segment: segment.Options{
			HeadingRatio:  cfg.Segment.HeadingRatio,
			ColumnGap:     cfg.Segment.ColumnGap,
			LineTolerance: cfg.Segment.LineTolerance,
		},
		Dedupe: reconcile.DedupeConfig{
			MaxDistance:     cfg.Dedupe.MaxDistance,
			MinSubstringLen: cfg.Dedupe.MinSubstringLen,
		},
		Thresholds:   a.thresholds,
		Concurrency:  cfg.Pipeline.Concurrency,
		ResearchMode: string(mode),
		ScoringMode:  string(scoringMode),
		Model:        cfg.Oracle.DefaultModel,
	}
}

// loadInput reads every PDF in dir. Unreadable files are logged and skipped.
func loadInput(dir string) ([]segment.Document, error) {
	docs, skipped, err := segment.LoadDir(dir)
	for _, pe := range skipped {
		zap.L().Warn("input: skipping unreadable document", zap.String("source", pe.Source), zap.Error(pe.Err))
	}
	if err != nil {
		return nil, eris.Wrap(err, "reading input")
	}
	return docs, nil
}

// openHistory opens the run history database. History is optional, so a
// failure is logged and the run continues without it.
func (a *app) openHistory() (port.RunRecorder, func()) {
	if !a.cfg.History.Enabled {
		return nil, func() {}
	}
	db, err := history.Open(&a.cfg.History)
	if err != nil {
		zap.L().Warn("history: disabled for this run", zap.Error(err))
		return nil, func() {}
	}
	return history.NewRunRepo(db), func() { _ = db.Close() }
}

func (a *app) newEmitter(ctx context.Context) (*output.Emitter, error) {
	var storage port.ObjectStorage
	if a.cfg.S3.Bucket != "" {
		c, err := s3.New(ctx, &a.cfg.S3)
		if err != nil {
			return nil, eris.Wrap(err, "creating s3 client")
		}
		storage = c
	}
	return output.New(a.cfg.Output, storage, a.cfg.S3), nil
}

func printSummary(out io.Writer, res *pipeline.Result) {
	s := res.Summary
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", res.RunID)
	fmt.Fprintf(tw, "Documents\t%d\n", s.Documents)
	fmt.Fprintf(tw, "Companies\t%d (from %d mentions)\n", s.Identities, s.Candidates)
	fmt.Fprintf(tw, "Researched\t%d\n", s.Researched)
	fmt.Fprintf(tw, "Failed\t%d\n", s.Failed)
	fmt.Fprintf(tw, "Not researched\t%d\n", s.Cancelled)
	for _, lvl := range []domain.FitLevel{domain.FitHigh, domain.FitMedium, domain.FitLow, domain.FitSkip} {
		fmt.Fprintf(tw, "%s fit\t%d\n", lvl, s.ByFit[lvl])
	}
	fmt.Fprintf(tw, "Enrichments / resolutions\t%d / %d\n", s.Enrichments, s.Resolutions)
	fmt.Fprintf(tw, "Merge conflicts\t%d\n", s.Conflicts)
	fmt.Fprintf(tw, "Duration\t%s\n", res.Duration.Round(time.Second))
	_ = tw.Flush()

	if len(s.Top) == 0 {
		return
	}
	fmt.Fprintln(out, "\nTop accounts")
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, t := range s.Top {
		fmt.Fprintf(tw, "%d.\t%s\t%d\t%s\n", i+1, t.CompanyName, t.ICPScore, t.FitLevel)
	}
	_ = tw.Flush()
}
