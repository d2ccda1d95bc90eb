package main

import (
	"github.com/myrjola/dossier/internal/models"
	"net/http"
)

type generateReportResponse struct {
	InvestigationID string `json:"investigationId"`
	ProgressURL     string `json:"progressUrl"`
	StreamURL       string `json:"streamUrl"`
}

// generateReport starts a run in the background. The outcome shows up in the investigation's reports and progress.
func (app *application) generateReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := app.orchestrator.Start(app.runCtx, id); err != nil {
		app.handleError(w, r, err)
		return
	}
	progressURL := "/api/investigations/" + id + "/progress"
	w.Header().Set("Location", progressURL)
	app.writeJSON(w, r, http.StatusAccepted, generateReportResponse{
		InvestigationID: id,
		ProgressURL:     progressURL,
		StreamURL:       progressURL + "/stream",
	})
}

func (app *application) listReports(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := app.store.Investigation(id); err != nil {
		app.handleError(w, r, err)
		return
	}
	reports := app.store.ReportsFor(id)
	if reports == nil {
		reports = []models.Report{}
	}
	app.writeJSON(w, r, http.StatusOK, reports)
}

func (app *application) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := app.store.Report(r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, report)
}

func (app *application) reviewReport(w http.ResponseWriter, r *http.Request) {
	report, err := app.store.MarkReviewed(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, report)
}
