package pipeline_test

import (
	"context"
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/broker"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/pipeline"
	"github.com/myrjola/dossier/internal/report"
	"github.com/myrjola/dossier/internal/scoring"
	"github.com/myrjola/dossier/internal/store"
	"github.com/myrjola/dossier/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const fakeID = "fake"

// fakeProvider answers with canned results. When gate is set, GenerateNarrative blocks until it is closed.
type fakeProvider struct {
	narrative ai.Narrative
	err       error
	followUps []string
	valid     bool
	gate      chan struct{}
	calls     atomic.Int32
}

func (p *fakeProvider) ValidateCredential(_ context.Context) (bool, error) {
	p.calls.Add(1)
	return p.valid, p.err
}

func (p *fakeProvider) GenerateNarrative(ctx context.Context, _ models.Investigation) (ai.Narrative, error) {
	p.calls.Add(1)
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ai.Narrative{}, ctx.Err()
		}
	}
	return p.narrative, p.err
}

func (p *fakeProvider) SuggestFollowUps(_ context.Context, _ models.Investigation) ([]string, error) {
	p.calls.Add(1)
	return p.followUps, p.err
}

func (p *fakeProvider) UsageStats() models.APIUsageStats {
	return models.APIUsageStats{}
}

// memPersister keeps records in memory. Saves of failKey fail.
type memPersister struct {
	mu      sync.Mutex
	records map[string][]byte
	failKey string
}

func (p *memPersister) Save(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if key == p.failKey {
		return errors.New("disk full")
	}
	if p.records == nil {
		p.records = map[string][]byte{}
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

type fixture struct {
	store        *store.Store
	orchestrator *pipeline.Orchestrator
	persister    *memPersister
	broker       *pipeline.ProgressBroker
	logs         *testhelpers.LogSink
}

func newFixture(t *testing.T, provider *fakeProvider) fixture {
	t.Helper()
	logs := &testhelpers.LogSink{}
	logger := testhelpers.NewLogger(logs)
	persister := &memPersister{}
	st := store.New(persister, logger, nil)
	registry := ai.NewRegistry(ai.Descriptor{
		ID:                fakeID,
		Model:             "fake-model",
		DefaultConfidence: 0.8,
		New:               func(ai.Settings) ai.Provider { return provider },
	})
	assembler := report.NewAssembler(scoring.NewRandomScorer(nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	br := broker.NewChannelBroker[string, models.AIAnalysisProgress]()
	go br.Start(ctx)
	t.Cleanup(cancel)

	return fixture{
		store:        st,
		orchestrator: pipeline.NewOrchestrator(st, registry, assembler, logger, pipeline.Options{Broker: br}),
		persister:    persister,
		broker:       br,
		logs:         logs,
	}
}

func (f fixture) createInvestigation(t *testing.T, id string) {
	t.Helper()
	_, err := f.store.CreateInvestigation(context.Background(), models.Investigation{
		ID:      id,
		Type:    models.InvestigationTypeGeneral,
		Subject: models.Subject{Name: "Zhang San"},
	})
	require.NoError(t, err)
}

func (f fixture) enableAI(t *testing.T, credential string) {
	t.Helper()
	enabled := true
	selected := fakeID
	_, err := f.store.UpdateAIConfig(context.Background(), models.AIConfigUpdate{
		Enabled:       &enabled,
		SelectedModel: &selected,
		Credentials:   map[string]string{fakeID: credential},
	})
	require.NoError(t, err)
}

func TestGenerateReport_AIDisabled(t *testing.T) {
	provider := &fakeProvider{}
	f := newFixture(t, provider)
	f.createInvestigation(t, "x1")

	r, err := f.orchestrator.GenerateReport(context.Background(), "x1")
	require.NoError(t, err)
	require.Nil(t, r.AIGenerated)
	assert.GreaterOrEqual(t, r.Analysis.OverallScore, 60)
	assert.LessOrEqual(t, r.Analysis.OverallScore, 100)
	assert.Zero(t, provider.calls.Load())
	assert.Empty(t, f.store.UsageStats())

	stored, err := f.store.Report(r.ID)
	require.NoError(t, err)
	require.Equal(t, r, stored)

	inv, err := f.store.Investigation("x1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, inv.Status)
	assert.Equal(t, 100, inv.Progress)

	p, ok := f.store.Progress("x1")
	require.True(t, ok)
	assert.True(t, p.Done())
	assert.Zero(t, p.EstimatedTimeRemaining)
	assert.False(t, f.store.IsProcessing())
}

func TestGenerateReport_ProviderSuccess(t *testing.T) {
	provider := &fakeProvider{narrative: ai.Narrative{
		Text:       "Zhang San is a reliable engineer.",
		Insights:   []string{"Stable employment."},
		Confidence: 0.92,
		TokensUsed: 321,
	}}
	f := newFixture(t, provider)
	f.createInvestigation(t, "x1")
	f.enableAI(t, "valid-key")

	r, err := f.orchestrator.GenerateReport(context.Background(), "x1")
	require.NoError(t, err)
	require.NotNil(t, r.AIGenerated)
	assert.True(t, r.AIGenerated.IsAIGenerated)
	assert.InDelta(t, 0.92, r.AIGenerated.AIConfidence, 1e-9)
	assert.Equal(t, "fake-model", r.AIGenerated.AIModel)
	assert.Equal(t, "Zhang San is a reliable engineer.", r.Analysis.Narrative)
	assert.Equal(t, 92, r.ConfidenceScore)

	stats := f.store.UsageStats()[fakeID]
	assert.Equal(t, 1, stats.SuccessfulRequests)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 321, stats.TotalTokensUsed)
	assert.False(t, stats.LastUsed.IsZero())
}

func TestGenerateReport_ProviderDefaultConfidence(t *testing.T) {
	provider := &fakeProvider{narrative: ai.Narrative{Text: "narrative"}}
	f := newFixture(t, provider)
	f.createInvestigation(t, "x1")
	f.enableAI(t, "valid-key")

	r, err := f.orchestrator.GenerateReport(context.Background(), "x1")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, r.AIGenerated.AIConfidence, 1e-9)
}

func TestGenerateReport_ProviderFailure(t *testing.T) {
	tests := []struct {
		name string
		kind error
		want string
	}{
		{name: "timeout", kind: ai.ErrTimeout, want: "kind=timeout"},
		{name: "auth", kind: ai.ErrAuth, want: "kind=auth"},
		{name: "rate limited", kind: ai.ErrRateLimited, want: "kind=rate_limited"},
		{name: "malformed", kind: ai.ErrMalformedResponse, want: "kind=malformed_response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{err: &ai.ProviderError{Provider: fakeID, Op: "generate narrative", Kind: tt.kind}}
			f := newFixture(t, provider)
			f.createInvestigation(t, "x1")
			f.enableAI(t, "valid-key")

			r, err := f.orchestrator.GenerateReport(context.Background(), "x1")
			require.NoError(t, err, "provider failures must not fail the run")
			require.NotNil(t, r.AIGenerated)
			assert.True(t, r.AIGenerated.IsAIGenerated)
			assert.InDelta(t, report.FallbackConfidence, r.AIGenerated.AIConfidence, 1e-9)
			require.Len(t, r.AIGenerated.AIInsights, 1)
			assert.Contains(t, r.AIGenerated.AIInsights[0], report.FallbackNotice)

			stats := f.store.UsageStats()[fakeID]
			assert.Equal(t, 1, stats.FailedRequests)
			assert.Equal(t, 1, stats.TotalRequests)
			assert.Zero(t, stats.SuccessfulRequests)

			assert.Contains(t, f.logs.String(), tt.want)
			assert.Contains(t, f.logs.String(), "investigation_id=x1")

			inv, err := f.store.Investigation("x1")
			require.NoError(t, err)
			assert.Equal(t, models.StatusCompleted, inv.Status)
		})
	}
}

func TestGenerateReport_NoCredential(t *testing.T) {
	provider := &fakeProvider{}
	f := newFixture(t, provider)
	f.createInvestigation(t, "x1")
	f.enableAI(t, "")

	r, err := f.orchestrator.GenerateReport(context.Background(), "x1")
	require.NoError(t, err)
	assert.Nil(t, r.AIGenerated, "a missing credential is treated as AI disabled")
	assert.Zero(t, provider.calls.Load())
	assert.Empty(t, f.store.UsageStats())
	assert.Contains(t, f.logs.String(), "no usable credential")

	_, err = f.store.MarkReviewed(context.Background(), r.ID)
	require.ErrorIs(t, err, store.ErrNotReviewable)
}

func TestGenerateReport_UnknownInvestigation(t *testing.T) {
	provider := &fakeProvider{}
	f := newFixture(t, provider)
	f.enableAI(t, "valid-key")

	_, err := f.orchestrator.GenerateReport(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, ok := f.store.Progress("missing")
	assert.False(t, ok, "no progress for unknown investigations")
	assert.Empty(t, f.store.UsageStats())
	assert.Zero(t, provider.calls.Load())
	assert.False(t, f.store.IsProcessing())
}

func TestGenerateReport_PersistenceFailure(t *testing.T) {
	f := newFixture(t, &fakeProvider{})
	f.createInvestigation(t, "x1")
	f.persister.failKey = store.KeyReports

	_, err := f.orchestrator.GenerateReport(context.Background(), "x1")
	require.ErrorIs(t, err, store.ErrPersistence)
	assert.False(t, f.store.IsProcessing(), "processing flag must be released on failure")
	assert.Empty(t, f.store.ReportsFor("x1"))

	inv, err := f.store.Investigation("x1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, inv.Status)

	p, ok := f.store.Progress("x1")
	require.True(t, ok)
	assert.False(t, p.Done())
}

func TestGenerateReport_ProgressStream(t *testing.T) {
	gate := make(chan struct{})
	provider := &fakeProvider{narrative: ai.Narrative{Text: "done", Confidence: 0.9}, gate: gate}
	f := newFixture(t, provider)
	f.createInvestigation(t, "x1")
	f.enableAI(t, "valid-key")
	ctx := context.Background()

	done, err := f.orchestrator.Start(ctx, "x1")
	require.NoError(t, err)

	// The provider holds the run in the analyzing stage, so the progress channel is published by now.
	require.Eventually(t, func() bool { return provider.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.True(t, f.store.IsProcessing())

	_, err = f.orchestrator.GenerateReport(ctx, "x1")
	require.ErrorIs(t, err, store.ErrAlreadyProcessing)

	updates := <-f.broker.Subscribe("x1")
	require.NotNil(t, updates)
	close(gate)

	var got []models.AIAnalysisProgress
	for p := range updates {
		got = append(got, p)
	}
	result := <-done
	require.NoError(t, result.Err)
	f.orchestrator.Wait()

	require.Len(t, got, len(pipeline.Stages))
	for i, p := range got {
		assert.Equal(t, pipeline.Stages[i].Stage, p.Stage)
		assert.Equal(t, pipeline.Stages[i].Task, p.CurrentTask)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Progress, got[i-1].Progress, "progress must not decrease")
			assert.LessOrEqual(t, p.EstimatedTimeRemaining, got[i-1].EstimatedTimeRemaining)
		}
	}
	assert.Equal(t, []int{0, 25, 50, 75, 100}, []int{
		got[0].Progress, got[1].Progress, got[2].Progress, got[3].Progress, got[4].Progress,
	})
	assert.Equal(t, 7500*time.Millisecond, got[0].EstimatedTimeRemaining)
	assert.Equal(t, time.Duration(0), got[4].EstimatedTimeRemaining)
	assert.False(t, f.store.IsProcessing())
}

func TestGenerateReport_ConcurrentInvestigations(t *testing.T) {
	f := newFixture(t, &fakeProvider{narrative: ai.Narrative{Text: "ok", Confidence: 0.9}})
	f.enableAI(t, "valid-key")
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		f.createInvestigation(t, id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orchestrator.GenerateReport(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats := f.store.UsageStats()[fakeID]
	assert.Equal(t, len(ids), stats.TotalRequests)
	assert.Equal(t, stats.TotalRequests, stats.SuccessfulRequests+stats.FailedRequests)
	for _, id := range ids {
		p, ok := f.store.Progress(id)
		require.True(t, ok)
		assert.True(t, p.Done(), "investigation %s", id)
		assert.Len(t, f.store.ReportsFor(id), 1)
	}
}

func TestGenerateReport_DoesNotMutateInvestigationFacts(t *testing.T) {
	f := newFixture(t, &fakeProvider{})
	f.createInvestigation(t, "x1")
	before, err := f.store.Investigation("x1")
	require.NoError(t, err)

	_, err = f.orchestrator.GenerateReport(context.Background(), "x1")
	require.NoError(t, err)

	after, err := f.store.Investigation("x1")
	require.NoError(t, err)
	assert.Equal(t, before.Subject, after.Subject)
	assert.Equal(t, before.Details, after.Details)
	assert.Equal(t, before.Type, after.Type)
}

func TestGenerateReport_Pacing(t *testing.T) {
	logger := testhelpers.NewLogger(io.Discard)
	st := store.New(&memPersister{}, logger, nil)
	o := pipeline.NewOrchestrator(st, ai.NewRegistry(), report.NewAssembler(scoring.NewRandomScorer(nil), nil),
		logger, pipeline.Options{Pace: 0.001})
	_, err := st.CreateInvestigation(context.Background(), models.Investigation{
		ID: "x1", Type: models.InvestigationTypeGeneral, Subject: models.Subject{Name: "Zhang San"},
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = o.GenerateReport(context.Background(), "x1")
	require.NoError(t, err)
	// 7.5s nominal at a thousandth of the pace.
	assert.GreaterOrEqual(t, time.Since(start), 7*time.Millisecond)
}
