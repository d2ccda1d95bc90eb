// Package app wires the components shared by the binaries.
package app

import (
	"context"
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/broker"
	"github.com/myrjola/dossier/internal/config"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/metrics"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/pipeline"
	"github.com/myrjola/dossier/internal/report"
	"github.com/myrjola/dossier/internal/repositories"
	"github.com/myrjola/dossier/internal/scoring"
	"github.com/myrjola/dossier/internal/sqlite"
	"github.com/myrjola/dossier/internal/store"
	"log/slog"
	"strings"
	"time"
)

// App owns the long-lived components. Close it to stop background work and release the database.
type App struct {
	Config       config.Config
	DB           *sqlite.Database
	Records      *repositories.RecordRepository
	Store        *store.Store
	Registry     *ai.Registry
	Broker       *pipeline.ProgressBroker
	Metrics      *metrics.Metrics
	Orchestrator *pipeline.Orchestrator
	logger       *slog.Logger
}

// New connects to the database, restores the persisted state and assembles the orchestrator. Background goroutines
// run until ctx is done or Close is called.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return nil, errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	records := repositories.NewRecordRepository(db, logger)
	st := store.New(records, logger, time.Now)
	if err = st.Load(ctx); err != nil {
		return nil, errors.Join(errors.Wrap(err, "load store"), db.Close())
	}
	if err = seedCredential(ctx, st, ai.ProviderOpenAI, cfg.OpenAIAPIKey); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	registry := ai.DefaultRegistry(cfg.OpenAI(), cfg.SimulatedDelay)
	progress := broker.NewChannelBroker[string, models.AIAnalysisProgress]()
	go progress.Start(ctx)
	m := metrics.New()
	orchestrator := pipeline.NewOrchestrator(
		st,
		registry,
		report.NewAssembler(scoring.NewRandomScorer(nil), time.Now),
		logger,
		pipeline.Options{Pace: cfg.StagePace, Broker: progress, Metrics: m},
	)

	return &App{
		Config:       cfg,
		DB:           db,
		Records:      records,
		Store:        st,
		Registry:     registry,
		Broker:       progress,
		Metrics:      m,
		Orchestrator: orchestrator,
		logger:       logger.With("source", "App"),
	}, nil
}

// seedCredential stores credential for provider unless the persisted configuration already has one.
func seedCredential(ctx context.Context, st *store.Store, provider, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" || st.AIConfig().Credential(provider) != "" {
		return nil
	}
	update := models.AIConfigUpdate{Credentials: map[string]string{provider: credential}}
	if _, err := st.UpdateAIConfig(ctx, update); err != nil {
		return errors.Wrap(err, "seed credential", slog.String("provider", provider))
	}
	return nil
}

// Close waits for the runs in flight, stops the progress broker and closes the database.
func (a *App) Close() error {
	a.Orchestrator.Wait()
	a.Broker.Stop()
	if err := a.DB.Close(); err != nil {
		return errors.Wrap(err, "close database")
	}
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "closed")
	return nil
}
