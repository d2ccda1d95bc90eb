package store

import (
	"context"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"slices"
)

// AppendReport persists a newly generated report. Reports are never replaced.
func (s *Store) AppendReport(ctx context.Context, r models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.reports, func(existing models.Report) bool { return existing.ID == r.ID }) {
		return errors.New("report already exists", slog.String("report_id", r.ID))
	}
	next := append(slices.Clone(s.reports), r.Clone())
	if err := s.save(ctx, KeyReports, next); err != nil {
		return err
	}
	s.reports = next
	return nil
}

// Report returns the report with id or ErrNotFound.
func (s *Store) Report(id string) (models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.reports, func(r models.Report) bool { return r.ID == id })
	if i < 0 {
		return models.Report{}, notFound("report", id)
	}
	return s.reports[i].Clone(), nil
}

// ReportsFor returns the reports of an investigation, newest first.
func (s *Store) ReportsFor(investigationID string) []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reports []models.Report
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].InvestigationID == investigationID {
			reports = append(reports, s.reports[i].Clone())
		}
	}
	return reports
}

// MarkReviewed flags the AI analysis of a report as reviewed by a human, the only change a report accepts after
// creation.
func (s *Store) MarkReviewed(ctx context.Context, id string) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.reports, func(r models.Report) bool { return r.ID == id })
	if i < 0 {
		return models.Report{}, notFound("report", id)
	}
	r := s.reports[i].Clone()
	if r.AIGenerated == nil {
		return models.Report{}, errors.Wrap(ErrNotReviewable, "mark reviewed", slog.String("report_id", id))
	}
	if r.AIGenerated.HumanReviewed {
		return r, nil
	}
	r.AIGenerated.HumanReviewed = true

	next := slices.Clone(s.reports)
	next[i] = r
	if err := s.save(ctx, KeyReports, next); err != nil {
		return models.Report{}, err
	}
	s.reports = next
	return r.Clone(), nil
}
