package main

import (
	"github.com/justinas/alice"
	"net/http"
	"time"
)

func (app *application) routes(defaultTimeout, providerTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	api := alice.New(jsonHeaders, withTimeout(defaultTimeout))
	// Requests answered by an AI provider wait for up to the provider timeout before falling back.
	providerBudget := providerTimeout + defaultTimeout
	provider := alice.New(jsonHeaders, app.extendDeadlines(providerBudget), withTimeout(providerBudget))

	mux.Handle("GET /api/healthy", api.ThenFunc(app.healthy))

	mux.Handle("POST /api/investigations", api.ThenFunc(app.createInvestigation))
	mux.Handle("GET /api/investigations", api.ThenFunc(app.listInvestigations))
	mux.Handle("GET /api/investigations/{id}", api.ThenFunc(app.getInvestigation))
	mux.Handle("DELETE /api/investigations/{id}", api.ThenFunc(app.deleteInvestigation))
	mux.Handle("POST /api/investigations/{id}/reports", api.ThenFunc(app.generateReport))
	mux.Handle("GET /api/investigations/{id}/reports", api.ThenFunc(app.listReports))
	mux.Handle("GET /api/investigations/{id}/progress", api.ThenFunc(app.getProgress))
	mux.Handle("POST /api/investigations/{id}/follow-ups", provider.ThenFunc(app.suggestFollowUps))
	// The stream writes for as long as the run lasts, so it can't sit behind the timeout handler.
	mux.Handle("GET /api/investigations/{id}/progress/stream", http.HandlerFunc(app.streamProgress))

	mux.Handle("GET /api/reports/{id}", api.ThenFunc(app.getReport))
	mux.Handle("POST /api/reports/{id}/review", api.ThenFunc(app.reviewReport))

	mux.Handle("GET /api/ai-config", api.ThenFunc(app.getAIConfig))
	mux.Handle("PATCH /api/ai-config", api.ThenFunc(app.updateAIConfig))
	mux.Handle("GET /api/ai-config/usage", api.ThenFunc(app.getUsage))
	mux.Handle("GET /api/ai-config/providers", api.ThenFunc(app.listProviders))
	mux.Handle("POST /api/ai-config/providers/{provider}/validate", provider.ThenFunc(app.validateCredential))

	mux.Handle("GET /metrics", app.metrics.Handler())

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
