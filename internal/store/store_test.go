package store_test

import (
	"context"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/repositories"
	"github.com/myrjola/dossier/internal/sqlite"
	"github.com/myrjola/dossier/internal/store"
	"github.com/myrjola/dossier/internal/testhelpers"
	"github.com/myrjola/dossier/internal/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
	"time"
)

var errDiskFull = errors.NewSentinel("disk full")

// memPersister keeps records in memory. Saves fail while fail is set.
type memPersister struct {
	mu      sync.Mutex
	records map[string][]byte
	fail    bool
}

func newMemPersister() *memPersister {
	return &memPersister{records: map[string][]byte{}}
}

func (p *memPersister) Save(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errDiskFull
	}
	p.records[key] = value
	return nil
}

func (p *memPersister) Load(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.records[key]
	return v, ok, nil
}

func (p *memPersister) setFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

func fixedClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newStore(t *testing.T, p store.Persister) *store.Store {
	t.Helper()
	return store.New(p, testhelpers.NewLogger(io.Discard), fixedClock())
}

func generalInvestigation(id string) models.Investigation {
	return models.Investigation{
		ID:      id,
		Type:    models.InvestigationTypeGeneral,
		Subject: models.Subject{Name: "Zhang San"},
	}
}

func datingInvestigation(id string) models.Investigation {
	return models.Investigation{
		ID:      id,
		Type:    models.InvestigationTypeDating,
		Subject: models.Subject{Name: "Li Wei", Location: "Beijing"},
		Details: models.Details{Age: 29, Query: models.QueryConfig{SocialMedia: true}},
		Dating: &models.DatingProfile{
			Preferences: models.PartnerPreferences{AgeMin: 25, AgeMax: 35, Interests: []string{"hiking"}},
			Personality: models.PersonalityScores{Openness: 70, Agreeableness: 80},
		},
	}
}

func aiReport(id, investigationID string) models.Report {
	return models.Report{
		ID:              id,
		InvestigationID: investigationID,
		Analysis: models.AnalysisData{
			OverallScore:      80,
			Narrative:         "narrative",
			PersonalityTraits: []models.PersonalityTrait{{Name: "Openness", Score: 75, Description: "curious"}},
			RiskAssessment: models.RiskAssessment{
				Overall: models.RiskLow,
				Score:   10,
				Categories: []models.RiskCategory{
					{Name: "Identity", Level: models.RiskLow, Factors: []string{"f"}, Recommendations: []string{"r"}},
				},
			},
		},
		GeneratedAt:     time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC),
		ConfidenceScore: 92,
		AIGenerated: &models.AIProvenance{
			IsAIGenerated: true,
			AIModel:       "gpt-4",
			AIConfidence:  0.92,
			AIInsights:    []string{"insight"},
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := testhelpers.NewLogger(io.Discard)
	dbs, err := sqlite.NewDatabase(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, dbs.Close()) })
	repo := repositories.NewRecordRepository(dbs, logger)

	s := newStore(t, repo)
	require.NoError(t, s.Load(ctx))
	_, err = s.CreateInvestigation(ctx, generalInvestigation("x1"))
	require.NoError(t, err)
	_, err = s.CreateInvestigation(ctx, datingInvestigation("d1"))
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, "x1", models.StatusCompleted))
	require.NoError(t, s.AppendReport(ctx, aiReport("r1", "x1")))
	enabled := true
	_, err = s.UpdateAIConfig(ctx, models.AIConfigUpdate{
		Enabled:     &enabled,
		Credentials: map[string]string{"openai": "sk-test"},
	})
	require.NoError(t, err)
	_, err = s.RecordUsage(ctx, "openai", usage.Delta{Success: true, Tokens: 120, Latency: 300 * time.Millisecond})
	require.NoError(t, err)

	reloaded := newStore(t, repo)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, s.Investigations(), reloaded.Investigations())
	require.Equal(t, s.ReportsFor("x1"), reloaded.ReportsFor("x1"))
	require.Equal(t, s.AIConfig(), reloaded.AIConfig())
	require.Equal(t, 1, reloaded.UsageStats()["openai"].SuccessfulRequests)
}

func TestStore_LoadDefaults(t *testing.T) {
	s := newStore(t, newMemPersister())
	require.NoError(t, s.Load(context.Background()))
	require.Empty(t, s.Investigations())
	cfg := s.AIConfig()
	require.False(t, cfg.Enabled)
	require.InDelta(t, 0.7, cfg.ConfidenceThreshold, 1e-9)
	require.NotNil(t, cfg.Credentials)
}

func TestStore_LoadMarksInterruptedRunsFailed(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	s := newStore(t, p)
	_, err := s.CreateInvestigation(ctx, generalInvestigation("x1"))
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, "x1", models.StatusProcessing))

	reloaded := newStore(t, p)
	require.NoError(t, reloaded.Load(ctx))
	inv, err := reloaded.Investigation("x1")
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, inv.Status)
}

func TestStore_CreateInvestigation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())

	inv, err := s.CreateInvestigation(ctx, models.Investigation{
		Type:    models.InvestigationTypeGeneral,
		Subject: models.Subject{Name: "Wang Wu"},
		Status:  models.StatusCompleted,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, models.StatusPending, inv.Status)
	assert.False(t, inv.CreatedAt.IsZero())

	_, err = s.CreateInvestigation(ctx, models.Investigation{Type: models.InvestigationTypeDating,
		Subject: models.Subject{Name: "No dating info"}})
	require.ErrorIs(t, err, models.ErrInvalidInvestigation)

	_, err = s.CreateInvestigation(ctx, generalInvestigation(inv.ID))
	require.ErrorIs(t, err, models.ErrInvalidInvestigation, "duplicate id")

	second, err := s.CreateInvestigation(ctx, generalInvestigation("x2"))
	require.NoError(t, err)
	list := s.Investigations()
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID, "newest first")
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())
	_, err := s.CreateInvestigation(ctx, datingInvestigation("d1"))
	require.NoError(t, err)

	inv, err := s.Investigation("d1")
	require.NoError(t, err)
	inv.Dating.Preferences.Interests[0] = "mutated"
	inv.Subject.Name = "mutated"

	again, err := s.Investigation("d1")
	require.NoError(t, err)
	require.Equal(t, "hiking", again.Dating.Preferences.Interests[0])
	require.Equal(t, "Li Wei", again.Subject.Name)
}

func TestStore_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	s := newStore(t, p)
	_, err := s.CreateInvestigation(ctx, generalInvestigation("x1"))
	require.NoError(t, err)

	p.setFail(true)
	_, err = s.CreateInvestigation(ctx, generalInvestigation("x2"))
	require.ErrorIs(t, err, store.ErrPersistence)
	require.ErrorIs(t, err, errDiskFull)
	_, err = s.Investigation("x2")
	require.ErrorIs(t, err, store.ErrNotFound, "failed save must not be visible")

	err = s.AppendReport(ctx, aiReport("r1", "x1"))
	require.ErrorIs(t, err, store.ErrPersistence)
	require.Empty(t, s.ReportsFor("x1"))

	enabled := true
	_, err = s.UpdateAIConfig(ctx, models.AIConfigUpdate{Enabled: &enabled})
	require.ErrorIs(t, err, store.ErrPersistence)
	require.False(t, s.AIConfig().Enabled)
}

func TestStore_Reports(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())
	_, err := s.CreateInvestigation(ctx, generalInvestigation("x1"))
	require.NoError(t, err)

	require.NoError(t, s.AppendReport(ctx, aiReport("r1", "x1")))
	require.NoError(t, s.AppendReport(ctx, aiReport("r2", "x1")))
	require.Error(t, s.AppendReport(ctx, aiReport("r2", "x1")), "reports are never replaced")

	local := aiReport("r3", "x1")
	local.AIGenerated = nil
	require.NoError(t, s.AppendReport(ctx, local))

	reports := s.ReportsFor("x1")
	require.Len(t, reports, 3)
	require.Equal(t, "r3", reports[0].ID, "newest first")
	require.Empty(t, s.ReportsFor("unknown"))

	_, err = s.Report("missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	reviewed, err := s.MarkReviewed(ctx, "r1")
	require.NoError(t, err)
	require.True(t, reviewed.AIGenerated.HumanReviewed)
	r1, err := s.Report("r1")
	require.NoError(t, err)
	require.True(t, r1.AIGenerated.HumanReviewed)

	_, err = s.MarkReviewed(ctx, "r3")
	require.ErrorIs(t, err, store.ErrNotReviewable)
	_, err = s.MarkReviewed(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_DeleteInvestigation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())
	_, err := s.CreateInvestigation(ctx, generalInvestigation("x1"))
	require.NoError(t, err)
	_, err = s.CreateInvestigation(ctx, generalInvestigation("x2"))
	require.NoError(t, err)
	require.NoError(t, s.AppendReport(ctx, aiReport("r1", "x1")))
	require.NoError(t, s.AppendReport(ctx, aiReport("r2", "x2")))

	release, err := s.BeginRun("x1")
	require.NoError(t, err)
	require.ErrorIs(t, s.DeleteInvestigation(ctx, "x1"), store.ErrAlreadyProcessing)
	release()

	require.NoError(t, s.DeleteInvestigation(ctx, "x1"))
	_, err = s.Investigation("x1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Report("r1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Report("r2")
	require.NoError(t, err)
	require.ErrorIs(t, s.DeleteInvestigation(ctx, "x1"), store.ErrNotFound)
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())
	_, err := s.CreateInvestigation(ctx, generalInvestigation("x1"))
	require.NoError(t, err)
	_, err = s.CreateInvestigation(ctx, generalInvestigation("x2"))
	require.NoError(t, err)

	_, err = s.BeginRun("unknown")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.False(t, s.IsProcessing())

	release, err := s.BeginRun("x1")
	require.NoError(t, err)
	require.True(t, s.IsProcessing())
	require.True(t, s.IsRunning("x1"))

	_, err = s.BeginRun("x1")
	require.ErrorIs(t, err, store.ErrAlreadyProcessing)

	releaseOther, err := s.BeginRun("x2")
	require.NoError(t, err, "runs of different investigations may overlap")

	release()
	release()
	require.False(t, s.IsRunning("x1"))
	require.True(t, s.IsProcessing())
	releaseOther()
	require.False(t, s.IsProcessing())
}

func TestStore_Progress(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())
	_, err := s.CreateInvestigation(ctx, generalInvestigation("x1"))
	require.NoError(t, err)

	_, ok := s.Progress("x1")
	require.False(t, ok)

	s.SetProgress(models.AIAnalysisProgress{InvestigationID: "x1", Stage: models.StageGenerating, Progress: 50})
	p, ok := s.Progress("x1")
	require.True(t, ok)
	require.Equal(t, models.StageGenerating, p.Stage)
	inv, err := s.Investigation("x1")
	require.NoError(t, err)
	require.Equal(t, 50, inv.Progress)
}

func TestStore_UpdateAIConfigMerges(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())
	enabled := true
	depth := models.DepthDeep
	_, err := s.UpdateAIConfig(ctx, models.AIConfigUpdate{
		Enabled:     &enabled,
		Credentials: map[string]string{"openai": "sk-1", "google": "g-1"},
	})
	require.NoError(t, err)

	cfg, err := s.UpdateAIConfig(ctx, models.AIConfigUpdate{
		AnalysisDepth: &depth,
		Credentials:   map[string]string{"google": ""},
	})
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Equal(t, models.DepthDeep, cfg.AnalysisDepth)
	require.Equal(t, map[string]string{"openai": "sk-1"}, cfg.Credentials)
	require.Equal(t, "openai", cfg.SelectedModel)
}

func TestStore_UpdateAIConfigRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newMemPersister())
	threshold := 2.0
	_, err := s.UpdateAIConfig(ctx, models.AIConfigUpdate{ConfidenceThreshold: &threshold})
	require.ErrorIs(t, err, models.ErrInvalidConfig)
	require.InDelta(t, models.DefaultAIConfig().ConfidenceThreshold, s.AIConfig().ConfidenceThreshold, 0)
}

func TestStore_RecordUsage(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	s := newStore(t, p)

	_, err := s.RecordUsage(ctx, "openai", usage.Delta{Success: true, Tokens: 10, Latency: 100 * time.Millisecond})
	require.NoError(t, err)
	p.setFail(true)
	stats, err := s.RecordUsage(ctx, "openai", usage.Delta{Success: false, Latency: 300 * time.Millisecond})
	require.ErrorIs(t, err, store.ErrPersistence)
	require.Equal(t, 2, stats.TotalRequests)
	require.Equal(t, stats.TotalRequests, stats.SuccessfulRequests+stats.FailedRequests)
	require.InDelta(t, 200, stats.AverageResponseMs, 1e-9)
	require.Equal(t, stats, s.AIConfig().UsageStats["openai"])
}

func TestStore_UsageStatsDuringLoad(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	s := newStore(t, p)
	_, err := s.RecordUsage(ctx, "openai", usage.Delta{Success: true, Tokens: 10, Latency: 100 * time.Millisecond})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 20 {
			assert.NoError(t, s.Load(ctx))
		}
	}()
	for range 20 {
		assert.Equal(t, 1, s.UsageStats()["openai"].TotalRequests)
	}
	wg.Wait()
}
