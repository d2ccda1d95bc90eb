package app_test

import (
	"context"
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/app"
	"github.com/myrjola/dossier/internal/config"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func TestNew_generatesReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig(t, map[string]string{
		"DOSSIER_SQLITE_URL": ":memory:",
		"DOSSIER_STAGE_PACE": "0",
	})
	a, err := app.New(ctx, cfg, testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	inv, err := a.Store.CreateInvestigation(ctx, models.Investigation{
		Type:    models.InvestigationTypeGeneral,
		Subject: models.Subject{Name: "Li Wei"},
	})
	require.NoError(t, err)

	r, err := a.Orchestrator.GenerateReport(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, inv.ID, r.InvestigationID)
	require.Nil(t, r.AIGenerated, "AI assistance is disabled by default")
	require.NotEmpty(t, metricNames(t, a))
}

func metricNames(t *testing.T, a *app.App) []string {
	t.Helper()
	families, err := a.Metrics.Gatherer().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	return names
}

func TestNew_seedsCredentialOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	url := filepath.Join(t.TempDir(), "dossier.sqlite")
	logger := testhelpers.NewLogger(io.Discard)

	a, err := app.New(ctx, testConfig(t, map[string]string{
		"DOSSIER_SQLITE_URL": url,
		"OPENAI_API_KEY":     "sk-first",
	}), logger)
	require.NoError(t, err)
	require.Equal(t, "sk-first", a.Store.AIConfig().Credential(ai.ProviderOpenAI))
	require.NoError(t, a.Close())

	// The stored credential wins over the environment after a restart.
	a, err = app.New(ctx, testConfig(t, map[string]string{
		"DOSSIER_SQLITE_URL": url,
		"OPENAI_API_KEY":     "sk-second",
	}), logger)
	require.NoError(t, err)
	require.Equal(t, "sk-first", a.Store.AIConfig().Credential(ai.ProviderOpenAI))
	require.NoError(t, a.Close())
}
