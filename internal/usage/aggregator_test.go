package usage_test

import (
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/usage"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestAggregator_Update(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	agg := usage.NewAggregator(nil, fixedClock(now))

	agg.Update("openai", usage.Delta{Success: true, Tokens: 100, Latency: 100 * time.Millisecond})
	agg.Update("openai", usage.Delta{Success: false, Latency: 300 * time.Millisecond})
	got := agg.Update("openai", usage.Delta{Success: true, Tokens: 50, Latency: 200 * time.Millisecond})

	require.Equal(t, models.APIUsageStats{
		TotalRequests:      3,
		SuccessfulRequests: 2,
		FailedRequests:     1,
		TotalTokensUsed:    150,
		AverageResponseMs:  200,
		LastUsed:           now,
	}, got)
	require.Equal(t, got, agg.Get("openai"))
	require.Zero(t, agg.Get("anthropic"), "unused provider must stay zero")
}

func TestAggregator_GetDoesNotStamp(t *testing.T) {
	agg := usage.NewAggregator(map[string]models.APIUsageStats{
		"openai": {TotalRequests: 1, SuccessfulRequests: 1},
	}, fixedClock(time.Now()))
	require.True(t, agg.Get("openai").LastUsed.IsZero())
	require.True(t, agg.Snapshot()["openai"].LastUsed.IsZero())
}

func TestAggregator_SeedIsCopied(t *testing.T) {
	seed := map[string]models.APIUsageStats{"openai": {TotalRequests: 4, SuccessfulRequests: 3, FailedRequests: 1}}
	agg := usage.NewAggregator(seed, nil)
	agg.Update("openai", usage.Delta{Success: true})
	require.Equal(t, 4, seed["openai"].TotalRequests)
	require.Equal(t, 5, agg.Get("openai").TotalRequests)
}

func TestAggregator_Concurrent(t *testing.T) {
	agg := usage.NewAggregator(nil, nil)
	providers := []string{"openai", "anthropic", "google"}
	const perProvider = 200

	var wg sync.WaitGroup
	for _, provider := range providers {
		for i := range perProvider {
			wg.Add(1)
			go func() {
				defer wg.Done()
				agg.Update(provider, usage.Delta{Success: i%3 != 0, Tokens: 1, Latency: time.Millisecond})
			}()
		}
	}
	wg.Wait()

	for provider, s := range agg.Snapshot() {
		require.Equal(t, perProvider, s.TotalRequests, provider)
		require.Equal(t, s.TotalRequests, s.SuccessfulRequests+s.FailedRequests, provider)
		require.Equal(t, perProvider, s.TotalTokensUsed, provider)
		require.InDelta(t, 1.0, s.AverageResponseMs, 1e-9, provider)
	}
}
