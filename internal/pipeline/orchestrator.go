// Package pipeline drives report generation runs through their stages.
package pipeline

import (
	"context"
	"github.com/google/uuid"
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/broker"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/logging"
	"github.com/myrjola/dossier/internal/metrics"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/report"
	"github.com/myrjola/dossier/internal/store"
	"github.com/myrjola/dossier/internal/usage"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ProgressBroker hands the progress updates of a run to its live stream subscriber.
type ProgressBroker = broker.ChannelBroker[string, models.AIAnalysisProgress]

// Options are the optional collaborators of an Orchestrator.
type Options struct {
	// Pace multiplies the nominal stage durations to get the time a simulated stage waits. Zero disables waits.
	Pace    float64
	Broker  *ProgressBroker
	Metrics *metrics.Metrics
}

// Orchestrator executes generation runs. Runs of different investigations may overlap; each investigation has at
// most one run in flight.
type Orchestrator struct {
	store     *store.Store
	registry  *ai.Registry
	assembler *report.Assembler
	broker    *ProgressBroker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	pace      float64
	runs      sync.WaitGroup
}

func NewOrchestrator(
	st *store.Store,
	registry *ai.Registry,
	assembler *report.Assembler,
	logger *slog.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		store:     st,
		registry:  registry,
		assembler: assembler,
		broker:    opts.Broker,
		metrics:   opts.Metrics,
		logger:    logger.With("source", "Orchestrator"),
		pace:      max(opts.Pace, 0),
	}
}

// Result is the outcome of a background run.
type Result struct {
	Report models.Report
	Err    error
}

// GenerateReport executes one complete run for the investigation and returns the stored report.
//
// Provider failures never fail the run. The returned error wraps store.ErrNotFound when the investigation doesn't
// exist, store.ErrAlreadyProcessing when it already has a run in flight, and store.ErrPersistence when the outcome
// could not be saved.
func (o *Orchestrator) GenerateReport(ctx context.Context, investigationID string) (models.Report, error) {
	inv, updates, release, err := o.begin(investigationID)
	if err != nil {
		return models.Report{}, err
	}
	defer release()
	return o.run(ctx, inv, updates)
}

// Start begins a run in the background. Lookup failures and overlapping runs are reported synchronously; the
// outcome of the run is delivered on the returned channel.
func (o *Orchestrator) Start(ctx context.Context, investigationID string) (<-chan Result, error) {
	inv, updates, release, err := o.begin(investigationID)
	if err != nil {
		return nil, err
	}
	done := make(chan Result, 1)
	o.runs.Add(1)
	go func() {
		defer o.runs.Done()
		defer close(done)
		defer release()
		r, runErr := o.run(ctx, inv, updates)
		done <- Result{Report: r, Err: runErr}
	}()
	return done, nil
}

// Wait blocks until every background run has finished.
func (o *Orchestrator) Wait() {
	o.runs.Wait()
}

// begin claims the investigation for a run and publishes the run's progress channel, so that a stream subscriber
// can pick it up as soon as the run is accepted. The returned release must be called when the run ends.
func (o *Orchestrator) begin(
	investigationID string,
) (models.Investigation, chan models.AIAnalysisProgress, func(), error) {
	inv, err := o.store.Investigation(investigationID)
	if err != nil {
		return models.Investigation{}, nil, nil, errors.Wrap(err, "generate report")
	}
	releaseRun, err := o.store.BeginRun(investigationID)
	if err != nil {
		return models.Investigation{}, nil, nil, errors.Wrap(err, "generate report")
	}
	updates := make(chan models.AIAnalysisProgress, len(Stages))
	if o.broker != nil {
		o.broker.Publish(inv.ID, updates)
	}
	release := func() {
		close(updates)
		if o.broker != nil {
			o.broker.Unpublish(inv.ID)
		}
		releaseRun()
	}
	return inv, updates, release, nil
}

func (o *Orchestrator) run(
	ctx context.Context,
	inv models.Investigation,
	updates chan<- models.AIAnalysisProgress,
) (models.Report, error) {
	ctx = logging.WithAttrs(ctx,
		slog.String("investigation_id", inv.ID),
		slog.String("run_id", uuid.NewString()))
	start := time.Now()
	finish := o.metrics.RunStarted(string(inv.Type))

	o.logger.LogAttrs(ctx, slog.LevelInfo, "run started", slog.String("investigation_type", string(inv.Type)))
	r, err := o.stages(ctx, inv, updates)
	if err != nil {
		finish("failed")
		if statusErr := o.store.SetStatus(ctx, inv.ID, models.StatusFailed); statusErr != nil {
			o.logger.LogAttrs(ctx, slog.LevelError, "could not mark investigation failed",
				errors.SlogError(statusErr))
		}
		o.logger.LogAttrs(ctx, slog.LevelError, "run failed", errors.SlogError(err))
		return models.Report{}, err
	}
	finish("completed")
	o.logger.LogAttrs(ctx, slog.LevelInfo, "run completed",
		slog.String("report_id", r.ID),
		slog.Int("confidence_score", r.ConfidenceScore),
		slog.Duration("duration", time.Since(start)))
	return r, nil
}

// stages walks through Stages. Progress is published on entering a stage, before its work starts.
func (o *Orchestrator) stages(
	ctx context.Context,
	inv models.Investigation,
	updates chan<- models.AIAnalysisProgress,
) (models.Report, error) {
	if err := o.store.SetStatus(ctx, inv.ID, models.StatusProcessing); err != nil {
		return models.Report{}, errors.Wrap(err, "mark investigation processing")
	}
	// Configuration changes take effect on the next run.
	cfg := o.store.AIConfig()

	var (
		in  report.Input
		r   models.Report
		err error
	)
	for i, spec := range Stages {
		if spec.Stage == models.StageCompleted {
			if err = o.store.SetStatus(ctx, inv.ID, models.StatusCompleted); err != nil {
				return models.Report{}, errors.Wrap(err, "mark investigation completed")
			}
		}
		o.publish(ctx, progressFor(inv.ID, i), updates)
		stageStart := time.Now()
		paced := true

		switch spec.Stage {
		case models.StageInitializing:
		case models.StageAnalyzing:
			if in, err = o.analyze(ctx, inv, cfg); err != nil {
				return models.Report{}, err
			}
			paced = in.Source != report.SourceProvider && in.Source != report.SourceFallback
		case models.StageGenerating:
			r = o.assembler.Assemble(in)
		case models.StageReviewing:
			if err = o.store.AppendReport(ctx, r); err != nil {
				return models.Report{}, errors.Wrap(err, "store report", slog.String("report_id", r.ID))
			}
		case models.StageCompleted:
			paced = false
		}

		if paced {
			o.pause(ctx, spec.Nominal)
		}
		o.metrics.ObserveStage(string(spec.Stage), time.Since(stageStart))
	}
	return r, nil
}

func (o *Orchestrator) publish(
	ctx context.Context,
	p models.AIAnalysisProgress,
	updates chan<- models.AIAnalysisProgress,
) {
	o.store.SetProgress(p)
	select {
	case updates <- p:
	default:
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, "stage entered",
		slog.String("stage", string(p.Stage)), slog.Int("progress", p.Progress))
}

// pause simulates the work of a stage. A done ctx cuts it short without failing the run.
func (o *Orchestrator) pause(ctx context.Context, nominal time.Duration) {
	d := time.Duration(float64(nominal) * o.pace)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// client resolves the provider selected in cfg. The boolean is false when AI assistance can't be used for this run,
// which is not an error: the run falls back to local synthesis.
func (o *Orchestrator) client(cfg models.AIConfig) (ai.Provider, ai.Descriptor, bool) {
	credential := strings.TrimSpace(cfg.Credential(cfg.SelectedModel))
	if credential == "" {
		return nil, ai.Descriptor{}, false
	}
	p, d, err := o.registry.Client(cfg.SelectedModel, ai.Settings{Credential: credential, Depth: cfg.AnalysisDepth})
	if err != nil {
		return nil, ai.Descriptor{}, false
	}
	return p, d, true
}

func (o *Orchestrator) analyze(ctx context.Context, inv models.Investigation, cfg models.AIConfig) (report.Input, error) {
	in := report.Input{Investigation: inv, Config: cfg, Source: report.SourceLocal}
	if !cfg.Enabled {
		return in, nil
	}
	in.Provider = cfg.SelectedModel
	provider, descriptor, ok := o.client(cfg)
	if !ok {
		// Treated as AI disabled for this run, so the report carries no AI provenance.
		o.logger.LogAttrs(ctx, slog.LevelWarn, "no usable credential for the selected provider, using local analysis",
			slog.String("provider", cfg.SelectedModel))
		return in, nil
	}
	in.Model = descriptor.Model
	ctx = logging.WithAttrs(ctx, slog.String("provider", descriptor.ID))

	start := time.Now()
	narrative, err := provider.GenerateNarrative(ctx, inv)
	latency := time.Since(start)
	if recordErr := o.record(ctx, descriptor.ID, "generate_narrative", err, narrative.TokensUsed, latency); recordErr != nil {
		return in, recordErr
	}
	if err != nil {
		in.Source = report.SourceFallback
		in.FailureKind = ai.Kind(err)
		return in, nil
	}

	in.Source = report.SourceProvider
	in.Narrative = narrative.Text
	in.Insights = narrative.Insights
	in.Confidence = narrative.Confidence
	if in.Confidence <= 0 {
		in.Confidence = descriptor.DefaultConfidence
	}
	return in, nil
}

// record folds one provider request into the usage statistics and metrics, and logs failures with their kind.
func (o *Orchestrator) record(
	ctx context.Context,
	provider, operation string,
	callErr error,
	tokens int,
	latency time.Duration,
) error {
	status := "success"
	if callErr != nil {
		status = ai.Kind(callErr)
		o.logger.LogAttrs(ctx, slog.LevelWarn, "provider request failed",
			slog.String("operation", operation),
			slog.String("kind", status),
			errors.SlogError(callErr))
	}
	o.metrics.ObserveProvider(provider, operation, status, tokens, latency)
	if _, err := o.store.RecordUsage(ctx, provider, usage.Delta{
		Success: callErr == nil,
		Tokens:  tokens,
		Latency: latency,
	}); err != nil {
		return errors.Wrap(err, "record usage", slog.String("provider", provider))
	}
	return nil
}
