package ai_test

import (
	"context"
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/models"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestSimulatedClient(t *testing.T) {
	client := ai.NewSimulatedClient("anthropic", "claude-3-sonnet", 0.88, 0,
		ai.Settings{Credential: "key", Depth: models.DepthDeep})
	ctx := context.Background()

	ok, err := client.ValidateCredential(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	inv := testInvestigation()
	first, err := client.GenerateNarrative(ctx, inv)
	require.NoError(t, err)
	require.Contains(t, first.Text, "Zhang San")
	require.NotEmpty(t, first.Insights)
	require.InDelta(t, 0.88, first.Confidence, 1e-9)
	require.Positive(t, first.TokensUsed)

	questions, err := client.SuggestFollowUps(ctx, inv)
	require.NoError(t, err)
	require.NotEmpty(t, questions)

	stats := client.UsageStats()
	require.Equal(t, 3, stats.TotalRequests)
	require.Equal(t, 3, stats.SuccessfulRequests)
}

func TestSimulatedClient_EmptyCredential(t *testing.T) {
	client := ai.NewSimulatedClient("google", "gemini-pro", 0.85, 0, ai.Settings{})
	ok, err := client.ValidateCredential(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSimulatedClient_ContextDeadline(t *testing.T) {
	client := ai.NewSimulatedClient("google", "gemini-pro", 0.85, time.Second, ai.Settings{Credential: "key"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.GenerateNarrative(ctx, testInvestigation())
	require.ErrorIs(t, err, ai.ErrTimeout)
	require.Equal(t, "timeout", ai.Kind(err))
	require.Equal(t, 1, client.UsageStats().FailedRequests)
}
