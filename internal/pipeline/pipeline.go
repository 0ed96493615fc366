// Package pipeline sequences segmentation, extraction, clustering, research
// and reconciliation into one batch run.
package pipeline

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"icpscout/internal/domain"
	"icpscout/internal/extract"
	"icpscout/internal/oracle"
	"icpscout/internal/port"
	"icpscout/internal/reconcile"
	"icpscout/internal/scoring"
	"icpscout/internal/segment"
	"icpscout/internal/store"
	"icpscout/internal/textutil"
)

// Run statuses persisted in run history.
const (
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// Researcher researches one company identity. It reports failures in the
// returned result rather than as an error.
type Researcher interface {
	Research(ctx context.Context, id oracle.Identity) *domain.ResearchResult
}

// Emitter persists the outputs of a run.
type Emitter interface {
	EmitRaw(ctx context.Context, ex *Extraction) error
	EmitRows(ctx context.Context, res *Result) error
}

// Options tune a pipeline.
type Options struct {
	Segment     segment.Options
	Dedupe      reconcile.DedupeConfig
	Thresholds  scoring.Thresholds
	Concurrency int

	// Labels stored with the run record.
	ResearchMode string
	ScoringMode  string
	Model        string
}

// Deps are the collaborators of a pipeline. Recorder and Emitter are optional.
type Deps struct {
	Researcher Researcher
	Recorder   port.RunRecorder
	Emitter    Emitter
}

// Extraction is the output of the first half of a run.
type Extraction struct {
	Documents int
	Records   []domain.CandidateRecord
	Stats     extract.Stats
	Groups    []reconcile.Group
	Conflicts []domain.ReconciliationConflict
	Store     *store.Store
}

// Result is the output of a full run.
type Result struct {
	RunID      string
	Extraction *Extraction
	Rows       []domain.CanonicalRecord
	Summary    Summary
	// Cancelled is set when the run stopped before every identity was researched.
	Cancelled bool
	Duration  time.Duration
}

// Pipeline orchestrates one batch run.
type Pipeline struct {
	segmenter  *segment.Segmenter
	extractor  *extract.Extractor
	researcher Researcher
	recorder   port.RunRecorder
	emitter    Emitter
	opts       Options
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Dedupe == (reconcile.DedupeConfig{}) {
		opts.Dedupe = reconcile.DefaultDedupe()
	}
	if opts.Thresholds == (scoring.Thresholds{}) {
		opts.Thresholds = scoring.Standard
	}
	return &Pipeline{
		segmenter:  segment.New(opts.Segment),
		extractor:  extract.New(),
		researcher: deps.Researcher,
		recorder:   deps.Recorder,
		emitter:    deps.Emitter,
		opts:       opts,
	}
}

// Extract segments and extracts docs, clusters the records into identities
// and registers them in a fresh store. The raw records are emitted when an
// emitter is configured.
func (p *Pipeline) Extract(ctx context.Context, docs []segment.Document) (*Extraction, error) {
	if len(docs) == 0 {
		return nil, eris.Wrap(domain.ErrNoInput, "pipeline: extract")
	}
	start := time.Now()

	ext := p.extractor.Extract(p.segmenter.Blocks(docs))
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: extract")
	}

	groups := reconcile.Cluster(ext.Records, p.opts.Dedupe)
	st := store.New()
	conflicts, err := reconcile.Register(st, groups)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: register identities")
	}
	for _, c := range conflicts {
		zap.L().Info("pipeline: merge conflict",
			zap.String("key", c.Key),
			zap.String("field", c.Field),
			zap.String("kept", c.Kept),
			zap.String("discarded", c.Discarded))
	}

	ex := &Extraction{
		Documents: len(docs),
		Records:   ext.Records,
		Stats:     ext.Stats,
		Groups:    groups,
		Conflicts: conflicts,
		Store:     st,
	}
	zap.L().Info("pipeline: extraction complete",
		zap.Int("documents", len(docs)),
		zap.Int("blocks", ext.Stats.Blocks),
		zap.Int("candidates", len(ext.Records)),
		zap.Int("identities", st.Len()),
		zap.Int("conflicts", len(conflicts)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	if p.emitter != nil {
		if err := p.emitter.EmitRaw(context.WithoutCancel(ctx), ex); err != nil {
			return ex, eris.Wrap(err, "pipeline: emit raw records")
		}
	}
	return ex, nil
}

// Run executes the whole pipeline. Once ctx is done no new research calls
// are started; results already collected are kept and every identity not
// researched becomes a cancelled row, so the row count always equals the
// identity count. Outputs are emitted in either case. Per-company research
// failures never fail the run.
func (p *Pipeline) Run(ctx context.Context, docs []segment.Document) (*Result, error) {
	if p.researcher == nil {
		return nil, eris.New("pipeline: no researcher configured")
	}
	start := time.Now()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run",
		zap.Int("documents", len(docs)),
		zap.Int("concurrency", p.opts.Concurrency),
		zap.String("research_mode", p.opts.ResearchMode),
		zap.String("scoring_mode", p.opts.ScoringMode))

	run := &domain.RunRecord{
		ID:           runID,
		StartedAt:    start.UTC(),
		ResearchMode: p.opts.ResearchMode,
		ScoringMode:  p.opts.ScoringMode,
		Model:        p.opts.Model,
		Documents:    len(docs),
		Status:       "running",
	}
	p.startRun(ctx, run)

	ex, err := p.Extract(ctx, docs)
	if err != nil {
		p.finishRun(ctx, run, nil, err)
		return nil, err
	}
	run.Candidates = len(ex.Records)
	run.Identities = ex.Store.Len()

	p.research(ctx, log, ex.Store)

	rows, err := reconcile.NewEngine(p.opts.Thresholds).Reconcile(ex.Store)
	if err != nil {
		err = eris.Wrap(err, "pipeline: reconcile")
		p.finishRun(ctx, run, ex.Store, err)
		return nil, err
	}

	res := &Result{
		RunID:      runID,
		Extraction: ex,
		Rows:       rows,
		Summary:    Summarize(ex, rows, ex.Store.Events()),
		Cancelled:  ctx.Err() != nil,
		Duration:   time.Since(start),
	}
	res.Summary.Log(log)

	var emitErr error
	if p.emitter != nil {
		if err := p.emitter.EmitRows(context.WithoutCancel(ctx), res); err != nil {
			emitErr = eris.Wrap(err, "pipeline: emit rows")
		}
	}

	run.Researched = res.Summary.Researched
	run.Failed = res.Summary.Failed
	run.Cancelled = res.Summary.Cancelled
	run.HighFit = res.Summary.ByFit[domain.FitHigh]
	p.finishRun(ctx, run, ex.Store, errors.Join(emitErr, cancelCause(ctx)))

	log.Info("pipeline: run complete",
		zap.Int("rows", len(rows)),
		zap.Bool("cancelled", res.Cancelled),
		zap.Int64("duration_ms", res.Duration.Milliseconds()))
	return res, emitErr
}

// research runs one oracle call per identity through a bounded pool.
func (p *Pipeline) research(ctx context.Context, log *zap.Logger, st *store.Store) {
	ids := Identities(st)
	start := time.Now()

	var (
		g       errgroup.Group
		skipped int
	)
	g.SetLimit(p.opts.Concurrency)

	for i, id := range ids {
		if ctx.Err() != nil {
			skipped = len(ids) - i
			break
		}
		g.Go(func() error {
			res := p.researcher.Research(ctx, id)
			if err := st.Attach(id.Key, res); err != nil {
				log.Error("pipeline: attach research result", zap.String("key", id.Key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if skipped > 0 {
		log.Warn("pipeline: run interrupted, remaining companies not researched",
			zap.Int("skipped", skipped), zap.Error(ctx.Err()))
	}
	log.Info("pipeline: research complete",
		zap.Int("identities", len(ids)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
}

// Identities builds one oracle identity per store entry, in detection order.
func Identities(st *store.Store) []oracle.Identity {
	snaps := st.Snapshot()
	ids := make([]oracle.Identity, 0, len(snaps))
	for _, s := range snaps {
		rec := s.Record
		id := oracle.Identity{
			Key:          s.Key,
			Name:         rec.CompanyName,
			AttendeeName: rec.AttendeeName,
			Title:        rec.Contact.Title,
			Flags:        rec.FlagKinds(),
		}
		if rec.TeamSize != nil {
			size := *rec.TeamSize
			id.TeamSize = &size
		}
		for _, m := range s.Mentions {
			name := textutil.CleanCompanyName(m.CompanyName)
			if name != "" && !slices.Contains(id.Aliases, name) {
				id.Aliases = append(id.Aliases, name)
			}
		}
		ids = append(ids, id)
	}
	return ids
}

func (p *Pipeline) startRun(ctx context.Context, run *domain.RunRecord) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.StartRun(context.WithoutCancel(ctx), run); err != nil {
		zap.L().Warn("pipeline: failed to record run start", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// finishRun records the outcome of a run. History is best effort and never
// fails the run.
func (p *Pipeline) finishRun(ctx context.Context, run *domain.RunRecord, st *store.Store, runErr error) {
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	switch {
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		run.Status = RunCancelled
	case runErr != nil:
		run.Status = RunFailed
	default:
		run.Status = RunCompleted
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	if p.recorder == nil {
		return
	}

	hctx := context.WithoutCancel(ctx)
	log := zap.L().With(zap.String("run_id", run.ID))
	if st != nil {
		events := st.Events()
		for i := range events {
			events[i].RunID = run.ID
		}
		if err := p.recorder.RecordEvents(hctx, events); err != nil {
			log.Warn("pipeline: failed to record store events", zap.Error(err))
		}
	}
	if err := p.recorder.FinishRun(hctx, run); err != nil {
		log.Warn("pipeline: failed to record run finish", zap.Error(err))
	}
}

func cancelCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: run interrupted")
	}
	return nil
}
