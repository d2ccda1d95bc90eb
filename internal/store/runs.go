package store

import (
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"sync"
)

// BeginRun marks the investigation as having a run in flight. The returned release must be called when the run ends,
// on every exit path; calling it more than once is harmless.
func (s *Store) BeginRun(id string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.investigations[id]; !ok {
		return nil, notFound("investigation", id)
	}
	if _, ok := s.running[id]; ok {
		return nil, errors.Wrap(ErrAlreadyProcessing, "begin run", slog.String("investigation_id", id))
	}
	s.running[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.running, id)
		})
	}, nil
}

// IsProcessing reports whether any run is in flight.
func (s *Store) IsProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running) > 0
}

// IsRunning reports whether a run for the investigation is in flight.
func (s *Store) IsRunning(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.running[id]
	return ok
}

// SetProgress publishes the progress of a run. The investigation's progress follows in memory and is persisted with
// its next status change.
func (s *Store) SetProgress(p models.AIAnalysisProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[p.InvestigationID] = p
	if inv, ok := s.investigations[p.InvestigationID]; ok {
		inv.Progress = p.Progress
		s.investigations[p.InvestigationID] = inv
	}
}

// Progress returns the latest progress of an investigation's run. The last state of a finished run is kept.
func (s *Store) Progress(id string) (models.AIAnalysisProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[id]
	return p, ok
}
