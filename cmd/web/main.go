package main

import (
	"context"
	"github.com/joho/godotenv"
	"github.com/myrjola/dossier/internal/app"
	"github.com/myrjola/dossier/internal/config"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/logging"
	"github.com/myrjola/dossier/internal/metrics"
	"github.com/myrjola/dossier/internal/pipeline"
	"github.com/myrjola/dossier/internal/pprofserver"
	"github.com/myrjola/dossier/internal/store"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

type application struct {
	logger       *slog.Logger
	store        *store.Store
	orchestrator *pipeline.Orchestrator
	broker       *pipeline.ProgressBroker
	metrics      *metrics.Metrics
	// requestTimeout bounds every API request but the progress stream.
	requestTimeout time.Duration
	// providerTimeout is added to requestTimeout for requests that wait on an AI provider.
	providerTimeout time.Duration
	// runCtx is the parent of background generation runs. It outlives the requests that start them.
	runCtx context.Context //nolint:containedctx // runs are detached from requests
	// streams is done when the server shuts down.
	streams context.Context //nolint:containedctx // see above
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	cfg, err := config.Load(lookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if cfg.PprofAddr != "" {
		// Initialise pprof listening on localhost so that it's not open to the world.
		pprofserver.Launch(ctx, cfg.PprofAddr, logger)
	}

	var dossier *app.App
	if dossier, err = app.New(ctx, cfg, logger); err != nil {
		return errors.Wrap(err, "create app")
	}
	defer func() {
		if closeErr := dossier.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "error closing app", errors.SlogError(closeErr))
		}
	}()

	web := application{
		logger:       logger,
		store:        dossier.Store,
		orchestrator: dossier.Orchestrator,
		broker:       dossier.Broker,
		metrics:      dossier.Metrics,
		runCtx:       context.WithoutCancel(ctx),

		requestTimeout:  cfg.RequestTimeout,
		providerTimeout: cfg.ProviderTimeout,
	}
	return web.configureAndStartServer(ctx, cfg.Addr)
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "error loading .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
