package store

import (
	"context"
	"github.com/google/uuid"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"maps"
	"slices"
)

// CreateInvestigation validates and stores a new pending investigation. An empty ID is assigned a fresh one.
func (s *Store) CreateInvestigation(ctx context.Context, inv models.Investigation) (models.Investigation, error) {
	if err := inv.Validate(); err != nil {
		return models.Investigation{}, errors.Wrap(err, "validate investigation")
	}
	inv = inv.Clone()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := s.now().UTC()
	inv.Status = models.StatusPending
	inv.Progress = 0
	inv.CreatedAt = now
	inv.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.investigations[inv.ID]; exists {
		return models.Investigation{}, errors.Wrap(models.ErrInvalidInvestigation, "investigation id already exists",
			slog.String("investigation_id", inv.ID))
	}
	next := maps.Clone(s.investigations)
	next[inv.ID] = inv
	if err := s.saveInvestigations(ctx, next); err != nil {
		return models.Investigation{}, err
	}
	s.investigations = next
	return inv.Clone(), nil
}

// Investigation returns the investigation with id or ErrNotFound.
func (s *Store) Investigation(id string) (models.Investigation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investigations[id]
	if !ok {
		return models.Investigation{}, notFound("investigation", id)
	}
	return inv.Clone(), nil
}

// Investigations lists all investigations, newest first.
func (s *Store) Investigations() []models.Investigation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := sortedInvestigations(s.investigations)
	for i := range list {
		list[i] = list[i].Clone()
	}
	return list
}

// DeleteInvestigation removes an investigation together with its reports and progress. Investigations with a run in
// flight can't be deleted.
func (s *Store) DeleteInvestigation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investigations[id]; !ok {
		return notFound("investigation", id)
	}
	if _, ok := s.running[id]; ok {
		return errors.Wrap(ErrAlreadyProcessing, "delete investigation", slog.String("investigation_id", id))
	}

	next := maps.Clone(s.investigations)
	delete(next, id)
	reports := slices.DeleteFunc(slices.Clone(s.reports), func(r models.Report) bool {
		return r.InvestigationID == id
	})
	removedReports := len(s.reports) - len(reports)
	if err := s.saveInvestigations(ctx, next); err != nil {
		return err
	}
	s.investigations = next
	delete(s.progress, id)
	// Orphaned reports are harmless, so a failure here leaves the investigation deleted.
	if removedReports > 0 {
		if err := s.save(ctx, KeyReports, reports); err != nil {
			return err
		}
		s.reports = reports
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "deleted investigation",
		slog.String("investigation_id", id), slog.Int("reports", removedReports))
	return nil
}

// SetStatus moves an investigation to status. Completed investigations report full progress.
func (s *Store) SetStatus(ctx context.Context, id string, status models.InvestigationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.investigations[id]
	if !ok {
		return notFound("investigation", id)
	}
	inv.Status = status
	switch status {
	case models.StatusPending, models.StatusProcessing:
		inv.Progress = 0
	case models.StatusCompleted:
		inv.Progress = 100
	case models.StatusFailed:
	}
	inv.UpdatedAt = s.now().UTC()

	next := maps.Clone(s.investigations)
	next[id] = inv
	if err := s.saveInvestigations(ctx, next); err != nil {
		return err
	}
	s.investigations = next
	return nil
}
