package pipeline

import (
	"context"
	"fmt"
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/logging"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"strings"
	"time"
)

// SuggestFollowUps asks the selected provider for follow-up questions about an investigation. Like report generation
// it falls back to locally generated questions when AI assistance is unavailable or the provider fails.
func (o *Orchestrator) SuggestFollowUps(ctx context.Context, investigationID string) ([]string, error) {
	inv, err := o.store.Investigation(investigationID)
	if err != nil {
		return nil, errors.Wrap(err, "suggest follow-ups")
	}
	ctx = logging.WithAttrs(ctx, slog.String("investigation_id", inv.ID))
	cfg := o.store.AIConfig()
	if !cfg.Enabled {
		return LocalFollowUps(inv), nil
	}
	provider, descriptor, ok := o.client(cfg)
	if !ok {
		return LocalFollowUps(inv), nil
	}
	ctx = logging.WithAttrs(ctx, slog.String("provider", descriptor.ID))

	start := time.Now()
	questions, err := provider.SuggestFollowUps(ctx, inv)
	if recordErr := o.record(ctx, descriptor.ID, "suggest_follow_ups", err, 0, time.Since(start)); recordErr != nil {
		return nil, recordErr
	}
	if err != nil || len(questions) == 0 {
		return LocalFollowUps(inv), nil
	}
	return questions, nil
}

// ValidateCredential checks the stored credential of a provider. A missing or rejected credential is reported as
// false; an error means the provider could not be reached or is unknown.
func (o *Orchestrator) ValidateCredential(ctx context.Context, providerID string) (bool, error) {
	if _, ok := o.registry.Descriptor(providerID); !ok {
		return false, errors.Wrap(ai.ErrUnknownProvider, "validate credential", slog.String("provider", providerID))
	}
	cfg := o.store.AIConfig()
	credential := strings.TrimSpace(cfg.Credential(providerID))
	if credential == "" {
		return false, nil
	}
	provider, descriptor, err := o.registry.Client(providerID,
		ai.Settings{Credential: credential, Depth: cfg.AnalysisDepth})
	if err != nil {
		return false, errors.Wrap(err, "validate credential")
	}
	ctx = logging.WithAttrs(ctx, slog.String("provider", descriptor.ID))

	start := time.Now()
	valid, err := provider.ValidateCredential(ctx)
	if recordErr := o.record(ctx, descriptor.ID, "validate_credential", err, 0, time.Since(start)); recordErr != nil {
		return false, recordErr
	}
	if err != nil {
		return false, errors.Wrap(err, "validate credential")
	}
	o.logger.LogAttrs(ctx, slog.LevelInfo, "validated credential", slog.Bool("valid", valid))
	return valid, nil
}

// LocalFollowUps derives follow-up questions from the facts that are missing or unchecked.
func LocalFollowUps(inv models.Investigation) []string {
	s := inv.Subject
	var questions []string
	if s.Occupation == "" {
		questions = append(questions, fmt.Sprintf("What is %s's current occupation?", s.Name))
	} else {
		questions = append(questions, fmt.Sprintf("Can %s's role as %s be confirmed by a reference?", s.Name, s.Occupation))
	}
	if s.Location == "" {
		questions = append(questions, fmt.Sprintf("Where does %s currently live?", s.Name))
	}
	q := inv.Details.Query
	if !q.Criminal {
		questions = append(questions, "Should public criminal records be checked as well?")
	}
	if !q.Financial {
		questions = append(questions, "Is the subject's financial situation relevant to this investigation?")
	}
	if inv.Type == models.InvestigationTypeDating {
		questions = append(questions, "Do the subject's relationship goals match the requester's?")
	}
	return questions
}
