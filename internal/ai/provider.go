// Package ai talks to external AI vendors behind a vendor-neutral capability set.
//
// A Provider never knows about the process-wide usage statistics. It keeps its own running tally which callers may
// inspect with UsageStats; folding request outcomes into the shared aggregator is the caller's job.
package ai

import (
	"context"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/usage"
	"time"
)

// Provider is implemented once per AI vendor.
//
// GenerateNarrative and SuggestFollowUps may return different output for the same investigation on every call.
type Provider interface {
	// ValidateCredential reports whether the configured credential is accepted. A rejected credential is reported as
	// false with a nil error; an error means the provider could not be reached.
	ValidateCredential(ctx context.Context) (bool, error)
	GenerateNarrative(ctx context.Context, inv models.Investigation) (Narrative, error)
	SuggestFollowUps(ctx context.Context, inv models.Investigation) ([]string, error)
	UsageStats() models.APIUsageStats
}

// Narrative is the provider's analysis of an investigation.
type Narrative struct {
	Text     string
	Insights []string
	// Confidence in (0,1]. Zero means the provider did not report one.
	Confidence float64
	TokensUsed int
	Latency    time.Duration
}

// Settings are the per-run knobs a provider client is built with.
type Settings struct {
	Credential string
	Depth      models.AnalysisDepth
}

const tallyKey = "self"

// tally is the running request tally every client keeps for itself.
type tally struct {
	agg *usage.Aggregator
}

func newTally() tally {
	return tally{agg: usage.NewAggregator(nil, nil)}
}

func (t tally) record(success bool, tokens int, latency time.Duration) {
	t.agg.Update(tallyKey, usage.Delta{Success: success, Tokens: tokens, Latency: latency})
}

func (t tally) snapshot() models.APIUsageStats {
	return t.agg.Get(tallyKey)
}
