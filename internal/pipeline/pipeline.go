package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"

	"github.com/qwyt/wp-police-shooting/internal/adapter/csvsource"
	"github.com/qwyt/wp-police-shooting/internal/domain"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

// Sink is an output destination for a run.
type Sink interface {
	Name() string
}

// BatchLoader writes enriched events in batches.
type BatchLoader interface {
	Sink
	LoadBatch(ctx context.Context, runID string, events []domain.EnrichedEvent) error
}

// RunLoader replaces its contents with the whole output of a run at once.
type RunLoader interface {
	Sink
	LoadRun(ctx context.Context, runID string, events []domain.EnrichedEvent, states []domain.StateAggregate) error
}

// Result is the output of one run.
type Result struct {
	RunID      string
	Events     []domain.EnrichedEvent
	States     []domain.StateAggregate
	Report     domain.ReconcileReport
	Issues     []csvsource.Issue
	Facts      []domain.CountyFacts
	Spending   []domain.StateSpending
	Dictionary csvsource.Dictionary
}

// Options tunes a Pipeline.
type Options struct {
	BatchSize    int
	HomicideYear int
	// Choose resolves multi-weapon entries; nil picks the first listed.
	Choose domain.Chooser
	// SinkAttempts is the number of tries per batch before a sink fails the run.
	SinkAttempts int
}

// Pipeline orchestrates load, reconcile, aggregate and sink.
type Pipeline struct {
	sources Sources
	ref     *reference.Data
	sinks   []Sink
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	latest  atomic.Pointer[Result]
}

// New creates a Pipeline. Sinks must implement BatchLoader or RunLoader.
func New(sources Sources, ref *reference.Data, sinks []Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Pipeline, error) {
	for _, s := range sinks {
		switch s.(type) {
		case BatchLoader, RunLoader:
		default:
			return nil, fmt.Errorf("sink %s implements neither BatchLoader nor RunLoader", s.Name())
		}
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 50
	}
	if opts.SinkAttempts < 1 {
		opts.SinkAttempts = 3
	}
	return &Pipeline{
		sources: sources,
		ref:     ref,
		sinks:   sinks,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LatestReport returns the reconcile report of the last completed run.
func (p *Pipeline) LatestReport() (domain.ReconcileReport, bool) {
	r := p.latest.Load()
	if r == nil {
		return domain.ReconcileReport{}, false
	}
	return r.Report, true
}

// Run executes one complete run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := time.Now()

	logger.Info("pipeline run started", "batch_size", p.opts.BatchSize, "sinks", len(p.sinks))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res, err := p.run(ctx, runID, logger)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.LastRunSuccess.Set(0)
		logger.Error("pipeline run failed", "error", err)
		return nil, err
	}

	p.metrics.LastRunSuccess.Set(1)
	p.latest.Store(res)
	p.ready.Store(true)
	logger.Info("pipeline run complete",
		"events", res.Report.Total,
		"spatial", res.Report.BySource[domain.MatchSpatial],
		"key", res.Report.BySource[domain.MatchKey],
		"unmatched", res.Report.BySource[domain.MatchNone],
		"states", len(res.States),
		"duration", time.Since(start),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, logger *slog.Logger) (*Result, error) {
	in, err := p.sources.Load(ctx)
	if err != nil {
		return nil, err
	}

	issues := csvsource.ValidateEvents(in.Events)
	p.metrics.ValidationIssues.Add(float64(len(issues)))
	for _, is := range issues {
		logger.Debug("event failed validation", "event_id", is.EventID, "field", is.Field, "rule", is.Rule)
	}
	if len(issues) > 0 {
		logger.Warn("events failed validation, keeping them", "issues", len(issues))
	}

	idx := domain.NewFactsIndex(in.Facts, p.ref.StateNames)
	enricher := &domain.Enricher{
		Locator:    in.Locator,
		Index:      idx,
		IncomeCode: p.ref.IncomeCode,
		Choose:     p.opts.Choose,
	}
	events, report := enricher.EnrichAll(in.Events)
	for source, n := range report.BySource {
		p.metrics.EventsReconciled.WithLabelValues(string(source)).Add(float64(n))
	}
	p.metrics.IncomeBackfills.Add(float64(report.IncomeBackfills))
	if report.MatchedWithoutFacts > 0 {
		logger.Warn("matched counties missing from facts", "events", report.MatchedWithoutFacts)
	}

	homicides := domain.AverageHomicides(in.Homicides, p.opts.HomicideYear)
	if len(homicides) == 0 {
		logger.Warn("no homicide records for year", "year", p.opts.HomicideYear)
	}
	states := domain.AggregateStates(in.Facts, p.ref.StateNames, p.ref.DemographicKeys, homicides)

	for _, sink := range p.sinks {
		if err := p.write(ctx, sink, runID, events, states, logger); err != nil {
			p.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			return nil, fmt.Errorf("sink %s: %w", sink.Name(), err)
		}
	}

	return &Result{
		RunID:      runID,
		Events:     events,
		States:     states,
		Report:     report,
		Issues:     issues,
		Facts:      in.Facts,
		Spending:   in.Spending,
		Dictionary: in.Dictionary,
	}, nil
}

func (p *Pipeline) write(ctx context.Context, sink Sink, runID string, events []domain.EnrichedEvent, states []domain.StateAggregate, logger *slog.Logger) error {
	if rl, ok := sink.(RunLoader); ok {
		err := p.withRetry(ctx, sink.Name(), logger, func() error {
			return rl.LoadRun(ctx, runID, events, states)
		})
		if err == nil {
			p.metrics.SinkWrites.WithLabelValues(sink.Name()).Add(float64(len(events)))
		}
		return err
	}

	bl := sink.(BatchLoader)
	for start := 0; start < len(events); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(events))
		batch := events[start:end]
		err := p.withRetry(ctx, sink.Name(), logger, func() error {
			return bl.LoadBatch(ctx, runID, batch)
		})
		if err != nil {
			return err
		}
		p.metrics.SinkWrites.WithLabelValues(sink.Name()).Add(float64(len(batch)))
	}
	return nil
}

// withRetry calls fn up to SinkAttempts times with exponential backoff:
// start at 200ms, double each retry, cap at 5s.
func (p *Pipeline) withRetry(ctx context.Context, name string, logger *slog.Logger, fn func() error) error {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var err error
	for attempt := 1; attempt <= p.opts.SinkAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == p.opts.SinkAttempts {
			break
		}
		logger.Warn("sink write failed, retrying", "sink", name, "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return err
}
