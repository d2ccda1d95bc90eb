package ai

import (
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Factory builds a Provider for the given settings.
type Factory func(settings Settings) Provider

// Descriptor registers one provider.
type Descriptor struct {
	ID    string
	Model string
	// DefaultConfidence is used when the provider does not report a confidence of its own.
	DefaultConfidence float64
	New               Factory
}

type cachedClient struct {
	settings Settings
	provider Provider
}

// Registry maps provider ids to implementations. Clients are cached per provider so that their running tallies
// survive between runs; a client is rebuilt when its settings change.
type Registry struct {
	mu          sync.Mutex
	descriptors map[string]Descriptor
	clients     map[string]cachedClient
}

func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{
		descriptors: map[string]Descriptor{},
		clients:     map[string]cachedClient{},
	}
	for _, d := range descriptors {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.ID] = d
	delete(r.clients, d.ID)
}

func (r *Registry) Descriptor(id string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[id]
	return d, ok
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Client returns the provider client for id built with settings.
func (r *Registry) Client(id string, settings Settings) (Provider, Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[id]
	if !ok {
		return nil, Descriptor{}, errors.Wrap(ErrUnknownProvider, "lookup provider", slog.String("provider", id))
	}
	if cached, ok := r.clients[id]; ok && cached.settings == settings {
		return cached.provider, d, nil
	}
	p := d.New(settings)
	r.clients[id] = cachedClient{settings: settings, provider: p}
	return p, d, nil
}

// ClientStats returns the running tallies of the clients built so far, keyed by provider id.
func (r *Registry) ClientStats() map[string]models.APIUsageStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := make(map[string]models.APIUsageStats, len(r.clients))
	for id, c := range r.clients {
		stats[id] = c.provider.UsageStats()
	}
	return stats
}

const (
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// DefaultRegistry registers the live OpenAI integration and the simulated stand-ins.
func DefaultRegistry(cfg OpenAIConfig, simulatedDelay time.Duration) *Registry {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	simulated := func(id, model string, confidence float64) Descriptor {
		return Descriptor{
			ID:                id,
			Model:             model,
			DefaultConfidence: confidence,
			New: func(settings Settings) Provider {
				return NewSimulatedClient(id, model, confidence, simulatedDelay, settings)
			},
		}
	}
	return NewRegistry(
		Descriptor{
			ID:    ProviderOpenAI,
			Model: model,
			// The most capable model gets a high fixed confidence when it doesn't report one.
			DefaultConfidence: 0.95, //nolint:mnd // see above
			New: func(settings Settings) Provider {
				return NewOpenAIClient(settings, cfg)
			},
		},
		simulated(ProviderAnthropic, "claude-3-sonnet", 0.88),
		simulated(ProviderGoogle, "gemini-pro", 0.85),
	)
}
