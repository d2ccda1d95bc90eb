package pipeline

import (
	"github.com/myrjola/dossier/internal/models"
	"strings"
)

// ProviderInfo describes a registered provider. ClientStats is the running tally the provider's client keeps for
// itself since it was built, nil when no client has been built in this process.
type ProviderInfo struct {
	ID          string                `json:"id"`
	Model       string                `json:"model"`
	Selected    bool                  `json:"selected"`
	Configured  bool                  `json:"configured"`
	ClientStats *models.APIUsageStats `json:"clientStats"`
}

// Providers lists the registered providers in id order.
func (o *Orchestrator) Providers() []ProviderInfo {
	cfg := o.store.AIConfig()
	tallies := o.registry.ClientStats()
	ids := o.registry.IDs()
	providers := make([]ProviderInfo, 0, len(ids))
	for _, id := range ids {
		d, ok := o.registry.Descriptor(id)
		if !ok {
			continue
		}
		info := ProviderInfo{
			ID:          id,
			Model:       d.Model,
			Selected:    cfg.SelectedModel == id,
			Configured:  strings.TrimSpace(cfg.Credential(id)) != "",
			ClientStats: nil,
		}
		if stats, ok := tallies[id]; ok {
			info.ClientStats = &stats
		}
		providers = append(providers, info)
	}
	return providers
}
