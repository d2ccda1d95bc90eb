package main

import (
	"context"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/repositories"
	"github.com/myrjola/dossier/internal/sqlite"
	"github.com/myrjola/dossier/internal/store"
	"github.com/myrjola/dossier/internal/testhelpers"
	"log/slog"
	"os"
	"time"
)

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("DOSSIER_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "DOSSIER_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	// The migrated database must still hold the records and they must still decode.
	records := repositories.NewRecordRepository(db, logger)
	var keys []string
	if keys, err = records.Keys(ctx); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error listing records", errors.SlogError(err))
		os.Exit(1)
	}
	if len(keys) == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no records found, something is likely wrong")
		os.Exit(1)
	}
	st := store.New(records, logger, time.Now)
	if err = st.Load(ctx); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error loading store", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "record count",
		slog.Int("records", len(keys)), slog.Int("investigations", len(st.Investigations())))

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
