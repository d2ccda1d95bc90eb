package store

import (
	"context"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/usage"
	"log/slog"
)

// AIConfig returns the current configuration including usage statistics.
func (s *Store) AIConfig() models.AIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.config.Clone()
	c.UsageStats = s.usage.Snapshot()
	return c
}

// UpdateAIConfig merges update into the configuration. Fields the update leaves out are kept. Invalid updates wrap
// models.ErrInvalidConfig and change nothing.
func (s *Store) UpdateAIConfig(ctx context.Context, update models.AIConfigUpdate) (models.AIConfig, error) {
	if err := update.Validate(); err != nil {
		return models.AIConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := update.Apply(s.config)
	if err := s.saveConfig(ctx, next); err != nil {
		return models.AIConfig{}, err
	}
	s.config = next
	s.logger.LogAttrs(ctx, slog.LevelInfo, "updated AI configuration",
		slog.Bool("enabled", next.Enabled),
		slog.String("selected_model", next.SelectedModel),
		slog.String("analysis_depth", string(next.AnalysisDepth)))

	c := next.Clone()
	c.UsageStats = s.usage.Snapshot()
	return c, nil
}

// RecordUsage folds one provider request into the usage statistics and persists them. The request stays counted even
// when the save fails.
func (s *Store) RecordUsage(ctx context.Context, provider string, delta usage.Delta) (models.APIUsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.usage.Update(provider, delta)
	if err := s.saveConfig(ctx, s.config); err != nil {
		return stats, err
	}
	return stats, nil
}

// UsageStats returns a snapshot of the per-provider usage statistics.
func (s *Store) UsageStats() map[string]models.APIUsageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage.Snapshot()
}
