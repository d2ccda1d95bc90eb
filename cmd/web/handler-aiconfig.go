package main

import (
	"github.com/myrjola/dossier/internal/ai"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"log/slog"
	"net/http"
)

// aiConfigView is the configuration as shown to clients. Credentials are masked.
type aiConfigView struct {
	models.AIConfig
	Credentials map[string]string `json:"apiKeys"`
}

func newAIConfigView(c models.AIConfig) aiConfigView {
	masked := make(map[string]string, len(c.Credentials))
	for provider, credential := range c.Credentials {
		masked[provider] = maskCredential(credential)
	}
	return aiConfigView{AIConfig: c, Credentials: masked}
}

// maskCredential keeps the last four characters so that operators can tell keys apart.
func maskCredential(credential string) string {
	const visible = 4
	if len(credential) <= visible {
		return "****"
	}
	return "****" + credential[len(credential)-visible:]
}

func (app *application) getAIConfig(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, newAIConfigView(app.store.AIConfig()))
}

func (app *application) updateAIConfig(w http.ResponseWriter, r *http.Request) {
	var update models.AIConfigUpdate
	if err := readJSON(w, r, &update); err != nil {
		app.handleError(w, r, err)
		return
	}
	cfg, err := app.store.UpdateAIConfig(r.Context(), update)
	if err != nil {
		app.handleError(w, r, errors.Wrap(err, "update AI config"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, newAIConfigView(cfg))
}

func (app *application) getUsage(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.store.UsageStats())
}

// listProviders lists the registered providers with the running tallies of their clients in this process.
func (app *application) listProviders(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.orchestrator.Providers())
}

type validateCredentialResponse struct {
	Provider string `json:"provider"`
	Valid    bool   `json:"valid"`
}

func (app *application) validateCredential(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	valid, err := app.orchestrator.ValidateCredential(r.Context(), provider)
	var providerErr *ai.ProviderError
	switch {
	case err == nil:
		app.writeJSON(w, r, http.StatusOK, validateCredentialResponse{Provider: provider, Valid: valid})
	case errors.As(err, &providerErr):
		// The provider could not be reached, which is an upstream failure rather than ours.
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "credential validation failed",
			slog.String("provider", provider), errors.SlogError(err))
		app.writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		app.handleError(w, r, err)
	}
}
