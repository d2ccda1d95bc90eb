package main

import (
	"encoding/json"
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/store"
	"io"
	"log/slog"
	"net/http"
)

// maxBodyBytes bounds the request bodies the API decodes.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.NewSentinel("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError,
		errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	app.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

// handleError maps the domain errors to HTTP statuses. Anything unrecognised is a server error.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		app.clientError(w, r, http.StatusNotFound, err)
	case errors.Is(err, errBadRequest),
		errors.Is(err, models.ErrInvalidInvestigation),
		errors.Is(err, models.ErrInvalidConfig),
		errors.Is(err, ai.ErrUnknownProvider):
		app.clientError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrAlreadyProcessing), errors.Is(err, store.ErrNotReviewable):
		app.clientError(w, r, http.StatusConflict, err)
	default:
		app.serverError(w, r, err)
	}
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode response",
			slog.String("uri", r.URL.RequestURI()), errors.SlogError(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// readJSON decodes the request body into v. Unknown fields are rejected so that typos don't silently drop values.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.Wrap(errBadRequest, "decode request body", slog.String("cause", err.Error()))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.Wrap(errBadRequest, "request body must hold a single JSON value")
	}
	return nil
}
