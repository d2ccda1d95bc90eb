// Package store is the process-wide state container for investigations, reports, AI configuration and in-flight
// progress.
//
// Mutations of investigations, reports and configuration are persisted through a Persister before they become
// visible, so a failed save leaves them untouched. Progress is never persisted.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/usage"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var (
	ErrNotFound          = errors.NewSentinel("not found")
	ErrPersistence       = errors.NewSentinel("persistence failure")
	ErrAlreadyProcessing = errors.NewSentinel("investigation is already being processed")
	ErrNotReviewable     = errors.NewSentinel("report has no AI analysis to review")
)

// Keys under which the state is persisted.
const (
	KeyInvestigations = "investigations"
	KeyReports        = "reports"
	KeyAIConfig       = "ai-config"
)

// Persister is the durable key-value layer. Values are JSON documents.
type Persister interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
}

type Store struct {
	persister Persister
	logger    *slog.Logger
	now       func() time.Time

	// mu guards the fields below. Writers hold it across the save so that saves are ordered like the mutations.
	mu             sync.RWMutex
	investigations map[string]models.Investigation
	reports        []models.Report
	config         models.AIConfig
	usage          *usage.Aggregator
	progress       map[string]models.AIAnalysisProgress
	running        map[string]struct{}
}

// New creates an empty store with the default AI configuration. Call Load to restore persisted state.
func New(persister Persister, logger *slog.Logger, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		persister:      persister,
		logger:         logger.With("source", "Store"),
		now:            now,
		investigations: map[string]models.Investigation{},
		config:         models.DefaultAIConfig(),
		usage:          usage.NewAggregator(nil, now),
		progress:       map[string]models.AIAnalysisProgress{},
		running:        map[string]struct{}{},
	}
}

// Load replaces the in-memory state with the persisted one. Missing keys keep their defaults.
//
// Investigations that were processing when the process stopped are marked failed since their runs are gone.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var investigations []models.Investigation
	if err := s.load(ctx, KeyInvestigations, &investigations); err != nil {
		return err
	}
	var reports []models.Report
	if err := s.load(ctx, KeyReports, &reports); err != nil {
		return err
	}
	config := models.DefaultAIConfig()
	if err := s.load(ctx, KeyAIConfig, &config); err != nil {
		return err
	}

	byID := make(map[string]models.Investigation, len(investigations))
	interrupted := 0
	for _, inv := range investigations {
		if inv.Status == models.StatusProcessing {
			inv.Status = models.StatusFailed
			interrupted++
		}
		byID[inv.ID] = inv
	}
	if config.Credentials == nil {
		config.Credentials = map[string]string{}
	}

	s.investigations = byID
	s.reports = reports
	s.usage = usage.NewAggregator(config.UsageStats, s.now)
	config.UsageStats = nil
	s.config = config
	s.progress = map[string]models.AIAnalysisProgress{}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "loaded state",
		slog.Int("investigations", len(byID)),
		slog.Int("reports", len(reports)),
		slog.Int("interrupted", interrupted))
	return nil
}

func (s *Store) load(ctx context.Context, key string, v any) error {
	data, found, err := s.persister.Load(ctx, key)
	if err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", ErrPersistence, err), "load state", slog.String("key", key))
	}
	if !found {
		return nil
	}
	if err = json.Unmarshal(data, v); err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", ErrPersistence, err), "decode state", slog.String("key", key))
	}
	return nil
}

// save must be called with mu held.
func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", ErrPersistence, err), "encode state", slog.String("key", key))
	}
	if err = s.persister.Save(ctx, key, data); err != nil {
		return errors.Wrap(fmt.Errorf("%w: %w", ErrPersistence, err), "save state", slog.String("key", key))
	}
	return nil
}

func (s *Store) saveInvestigations(ctx context.Context, investigations map[string]models.Investigation) error {
	return s.save(ctx, KeyInvestigations, sortedInvestigations(investigations))
}

// saveConfig persists the configuration together with the current usage statistics.
func (s *Store) saveConfig(ctx context.Context, config models.AIConfig) error {
	config.UsageStats = s.usage.Snapshot()
	return s.save(ctx, KeyAIConfig, config)
}

func sortedInvestigations(m map[string]models.Investigation) []models.Investigation {
	list := make([]models.Investigation, 0, len(m))
	for _, inv := range m {
		list = append(list, inv)
	}
	slices.SortFunc(list, func(a, b models.Investigation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list
}

func notFound(kind, id string) error {
	return errors.Wrap(ErrNotFound, "lookup "+kind, slog.String(kind+"_id", id))
}
