package e2etest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/pipeline"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client drives the dossier JSON API.
type Client struct {
	client *http.Client
	url    string
}

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Progress mirrors the progress snapshot returned by the API.
type Progress struct {
	InvestigationID string                     `json:"investigationId"`
	Status          models.InvestigationStatus `json:"status"`
	Running         bool                       `json:"running"`
	Progress        *models.AIAnalysisProgress `json:"progress"`
}

// Event is one server-sent event.
type Event struct {
	Name string
	Data json.RawMessage
}

// NewClient creates a client for the API served at url.
func NewClient(url string) *Client {
	return &Client{
		client: &http.Client{},
		url:    strings.TrimSuffix(url, "/"),
	}
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		resp *http.Response
	)
	for {
		if resp, err = c.Get(ctx, urlPath); err == nil {
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	if req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.url+urlPath, nil); err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// do sends body as JSON and decodes the response into out unless out is nil. Any status but want is a *StatusError.
func (c *Client) do(ctx context.Context, method, urlPath string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request", slog.String("method", method), slog.String("path", urlPath))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		return errors.Wrap(&StatusError{Status: resp.StatusCode, Body: string(raw)}, "unexpected response",
			slog.String("method", method), slog.String("path", urlPath))
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body", slog.String("path", urlPath))
	}
	return nil
}

func (c *Client) CreateInvestigation(ctx context.Context, inv models.Investigation) (models.Investigation, error) {
	req := struct {
		Type    models.InvestigationType `json:"investigationType"`
		Subject models.Subject           `json:"subject"`
		Details models.Details           `json:"additionalInfo"`
		Dating  *models.DatingProfile    `json:"datingInfo,omitempty"`
	}{Type: inv.Type, Subject: inv.Subject, Details: inv.Details, Dating: inv.Dating}
	var created models.Investigation
	err := c.do(ctx, http.MethodPost, "/api/investigations", req, http.StatusCreated, &created)
	return created, err
}

func (c *Client) Investigations(ctx context.Context) ([]models.Investigation, error) {
	var list []models.Investigation
	err := c.do(ctx, http.MethodGet, "/api/investigations", nil, http.StatusOK, &list)
	return list, err
}

func (c *Client) Investigation(ctx context.Context, id string) (models.Investigation, error) {
	var inv models.Investigation
	err := c.do(ctx, http.MethodGet, "/api/investigations/"+id, nil, http.StatusOK, &inv)
	return inv, err
}

func (c *Client) DeleteInvestigation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/investigations/"+id, nil, http.StatusNoContent, nil)
}

// GenerateReport starts a run. Use WaitForRun or StreamProgress to follow it.
func (c *Client) GenerateReport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/investigations/"+id+"/reports", nil, http.StatusAccepted, nil)
}

func (c *Client) Reports(ctx context.Context, investigationID string) ([]models.Report, error) {
	var reports []models.Report
	err := c.do(ctx, http.MethodGet, "/api/investigations/"+investigationID+"/reports", nil, http.StatusOK, &reports)
	return reports, err
}

func (c *Client) Report(ctx context.Context, id string) (models.Report, error) {
	var r models.Report
	err := c.do(ctx, http.MethodGet, "/api/reports/"+id, nil, http.StatusOK, &r)
	return r, err
}

func (c *Client) ReviewReport(ctx context.Context, id string) (models.Report, error) {
	var r models.Report
	err := c.do(ctx, http.MethodPost, "/api/reports/"+id+"/review", nil, http.StatusOK, &r)
	return r, err
}

func (c *Client) Progress(ctx context.Context, id string) (Progress, error) {
	var p Progress
	err := c.do(ctx, http.MethodGet, "/api/investigations/"+id+"/progress", nil, http.StatusOK, &p)
	return p, err
}

// WaitForRun polls the progress of an investigation until no run is in flight and returns the last snapshot.
func (c *Client) WaitForRun(ctx context.Context, id string) (Progress, error) {
	for {
		p, err := c.Progress(ctx, id)
		if err != nil {
			return Progress{}, err
		}
		if !p.Running && p.Status != models.StatusProcessing {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return Progress{}, errors.Wrap(ctx.Err(), "wait for run", slog.String("investigation_id", id))
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// StreamProgress reads the progress stream of an investigation until the server ends it with the done event. The
// done event is included in the returned events.
func (c *Client) StreamProgress(ctx context.Context, id string) ([]Event, error) {
	resp, err := c.Get(ctx, "/api/investigations/"+id+"/progress/stream")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}

	var (
		events  []Event
		current Event
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = json.RawMessage(strings.TrimPrefix(line, "data: "))
		case line == "" && current.Name != "":
			events = append(events, current)
			if current.Name == "done" {
				return events, nil
			}
			current = Event{}
		}
	}
	if err = scanner.Err(); err != nil {
		return events, errors.Wrap(err, "read progress stream")
	}
	return events, errors.New("progress stream ended without done event")
}

type followUps struct {
	Questions []string `json:"questions"`
}

func (c *Client) SuggestFollowUps(ctx context.Context, id string) ([]string, error) {
	var out followUps
	err := c.do(ctx, http.MethodPost, "/api/investigations/"+id+"/follow-ups", nil, http.StatusOK, &out)
	return out.Questions, err
}

// AIConfig returns the configuration with masked credentials.
func (c *Client) AIConfig(ctx context.Context) (models.AIConfig, error) {
	var cfg models.AIConfig
	err := c.do(ctx, http.MethodGet, "/api/ai-config", nil, http.StatusOK, &cfg)
	return cfg, err
}

func (c *Client) UpdateAIConfig(ctx context.Context, update models.AIConfigUpdate) (models.AIConfig, error) {
	var cfg models.AIConfig
	err := c.do(ctx, http.MethodPatch, "/api/ai-config", update, http.StatusOK, &cfg)
	return cfg, err
}

func (c *Client) Usage(ctx context.Context) (map[string]models.APIUsageStats, error) {
	var stats map[string]models.APIUsageStats
	err := c.do(ctx, http.MethodGet, "/api/ai-config/usage", nil, http.StatusOK, &stats)
	return stats, err
}

// Providers lists the registered providers.
func (c *Client) Providers(ctx context.Context) ([]pipeline.ProviderInfo, error) {
	var providers []pipeline.ProviderInfo
	err := c.do(ctx, http.MethodGet, "/api/ai-config/providers", nil, http.StatusOK, &providers)
	return providers, err
}

type validation struct {
	Valid bool `json:"valid"`
}

func (c *Client) ValidateCredential(ctx context.Context, provider string) (bool, error) {
	var out validation
	err := c.do(ctx, http.MethodPost, "/api/ai-config/providers/"+provider+"/validate", nil, http.StatusOK, &out)
	return out.Valid, err
}
