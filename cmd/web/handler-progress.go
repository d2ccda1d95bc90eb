package main

import (
	"encoding/json"
	"fmt"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/logging"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"net/http"
	"time"
)

type progressResponse struct {
	InvestigationID string                     `json:"investigationId"`
	Status          models.InvestigationStatus `json:"status"`
	Running         bool                       `json:"running"`
	Progress        *models.AIAnalysisProgress `json:"progress"`
}

func (app *application) progressSnapshot(id string) (progressResponse, error) {
	inv, err := app.store.Investigation(id)
	if err != nil {
		return progressResponse{}, err
	}
	resp := progressResponse{
		InvestigationID: id,
		Status:          inv.Status,
		Running:         app.store.IsRunning(id),
		Progress:        nil,
	}
	if p, ok := app.store.Progress(id); ok {
		resp.Progress = &p
	}
	return resp, nil
}

// getProgress returns the latest progress of the investigation. Progress is null before the first run.
func (app *application) getProgress(w http.ResponseWriter, r *http.Request) {
	resp, err := app.progressSnapshot(r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}

// streamProgress streams the progress of a run as server-sent events.
//
// The first subscriber of a run receives every stage as a "progress" event. Later subscribers and subscribers that
// arrive when no run is in flight get the latest stored progress once the run is over. Every stream ends with a
// "done" event carrying the final snapshot.
func (app *application) streamProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := app.store.Investigation(id); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := logging.WithAttrs(r.Context(), slog.String("investigation_id", id))
	rc := http.NewResponseController(w)
	// The stream lasts as long as the run, so the server timeouts don't apply.
	if err := errors.Join(rc.SetReadDeadline(time.Time{}), rc.SetWriteDeadline(time.Time{})); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "stream keeps the server timeouts", errors.SlogError(err))
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) bool {
		if err := writeEvent(w, rc, event, v); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelDebug, "progress stream closed", errors.SlogError(err))
			return false
		}
		return true
	}

	var updates chan models.AIAnalysisProgress
	select {
	case updates = <-app.broker.Subscribe(id):
	case <-ctx.Done():
		return
	case <-app.streams.Done():
		return
	}

	var last *models.AIAnalysisProgress
	for updates != nil {
		select {
		case p, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if !send("progress", p) {
				return
			}
			last = &p
		case <-ctx.Done():
			return
		case <-app.streams.Done():
			return
		}
	}

	snapshot, err := app.progressSnapshot(id)
	if err != nil {
		// Deleted while streaming.
		send("done", progressResponse{InvestigationID: id, Status: "", Running: false, Progress: last})
		return
	}
	if snapshot.Progress != nil && (last == nil || *last != *snapshot.Progress) {
		if !send("progress", *snapshot.Progress) {
			return
		}
	}
	send("done", snapshot)
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode event", slog.String("event", event))
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return errors.Wrap(err, "write event", slog.String("event", event))
	}
	if err = rc.Flush(); err != nil {
		return errors.Wrap(err, "flush event", slog.String("event", event))
	}
	return nil
}
