package main

import (
	"context"
	"github.com/myrjola/dossier/internal/e2etest"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/logging"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"os"
	"time"
)

// TestReportGeneration runs a whole investigation through the deployed API and removes it afterwards.
func TestReportGeneration(ctx context.Context, client *e2etest.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second) //nolint:mnd // a paced run takes about 8 seconds
	defer cancel()

	inv, err := client.CreateInvestigation(ctx, models.Investigation{ //nolint:exhaustruct // assigned by the server
		Type:    models.InvestigationTypeGeneral,
		Subject: models.Subject{Name: "Smoke Test", Occupation: "tester"},
	})
	if err != nil {
		return errors.Wrap(err, "create investigation")
	}
	ctx = logging.WithAttrs(ctx, slog.String("investigation_id", inv.ID))
	defer func() {
		if deleteErr := client.DeleteInvestigation(context.WithoutCancel(ctx), inv.ID); deleteErr != nil {
			slog.Default().LogAttrs(ctx, slog.LevelWarn, "could not clean up", errors.SlogError(deleteErr))
		}
	}()

	if err = client.GenerateReport(ctx, inv.ID); err != nil {
		return errors.Wrap(err, "generate report")
	}
	var progress e2etest.Progress
	if progress, err = client.WaitForRun(ctx, inv.ID); err != nil {
		return errors.Wrap(err, "wait for run")
	}
	if progress.Status != models.StatusCompleted {
		return errors.New("run did not complete", slog.String("status", string(progress.Status)))
	}
	var reports []models.Report
	if reports, err = client.Reports(ctx, inv.ID); err != nil {
		return errors.Wrap(err, "list reports")
	}
	if len(reports) != 1 {
		return errors.New("expected exactly one report", slog.Int("count", len(reports)))
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	slog.SetDefault(logger)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	client := e2etest.NewClient(url)
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready", errors.SlogError(err))
		os.Exit(1)
	}
	if err = TestReportGeneration(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing report generation", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
