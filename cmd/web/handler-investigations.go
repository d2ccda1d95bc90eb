package main

import (
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/logging"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"net/http"
)

// createInvestigationRequest holds the fields a client may set. Ids, status and timestamps are assigned by the store.
type createInvestigationRequest struct {
	Type    models.InvestigationType `json:"investigationType"`
	Subject models.Subject           `json:"subject"`
	Details models.Details           `json:"additionalInfo"`
	Dating  *models.DatingProfile    `json:"datingInfo,omitempty"`
}

func (app *application) createInvestigation(w http.ResponseWriter, r *http.Request) {
	var req createInvestigationRequest
	if err := readJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	inv, err := app.store.CreateInvestigation(ctx, models.Investigation{
		Type:    req.Type,
		Subject: req.Subject,
		Details: req.Details,
		Dating:  req.Dating,
	})
	if err != nil {
		app.handleError(w, r, errors.Wrap(err, "create investigation"))
		return
	}
	ctx = logging.WithAttrs(ctx, slog.String("investigation_id", inv.ID))
	app.logger.LogAttrs(ctx, slog.LevelInfo, "created investigation",
		slog.String("investigation_type", string(inv.Type)))

	if app.store.AIConfig().AutoGenerate {
		if _, err = app.orchestrator.Start(app.runCtx, inv.ID); err != nil {
			// The investigation exists either way; the client can start the run again.
			app.logger.LogAttrs(ctx, slog.LevelWarn, "auto-generate failed to start", errors.SlogError(err))
		}
	}

	w.Header().Set("Location", "/api/investigations/"+inv.ID)
	app.writeJSON(w, r, http.StatusCreated, inv)
}

func (app *application) listInvestigations(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.store.Investigations())
}

func (app *application) getInvestigation(w http.ResponseWriter, r *http.Request) {
	inv, err := app.store.Investigation(r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, inv)
}

func (app *application) deleteInvestigation(w http.ResponseWriter, r *http.Request) {
	if err := app.store.DeleteInvestigation(r.Context(), r.PathValue("id")); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type followUpsResponse struct {
	InvestigationID string   `json:"investigationId"`
	Questions       []string `json:"questions"`
}

func (app *application) suggestFollowUps(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	questions, err := app.orchestrator.SuggestFollowUps(r.Context(), id)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, followUpsResponse{InvestigationID: id, Questions: questions})
}
