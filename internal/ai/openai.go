package ai

import (
	"context"
	"encoding/json"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/models"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderOpenAI       = "openai"
	DefaultOpenAIModel   = openai.GPT4
	DefaultOpenAITimeout = 30 * time.Second
)

// OpenAIConfig holds the process-level OpenAI settings. Zero values fall back to the defaults.
type OpenAIConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient is the Provider that performs real network calls.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	depth   models.AnalysisDepth
	timeout time.Duration
	tally   tally
}

var _ Provider = (*OpenAIClient)(nil)

func NewOpenAIClient(settings Settings, cfg OpenAIConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(settings.Credential)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOpenAITimeout
	}
	// The per-call context deadline is what normally fires; the client timeout only guards against stuck bodies.
	clientConfig.HTTPClient = &http.Client{Timeout: 2 * cfg.Timeout} //nolint:mnd // see above
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		depth:   settings.Depth,
		timeout: cfg.Timeout,
		tally:   newTally(),
	}
}

func (c *OpenAIClient) fail(op string, err error) error {
	return &ProviderError{Provider: ProviderOpenAI, Op: op, Kind: classify(err), Err: err}
}

// ValidateCredential lists the models, which is the cheapest authenticated call.
func (c *OpenAIClient) ValidateCredential(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	_, err := c.client.ListModels(ctx)
	c.tally.record(err == nil, 0, time.Since(start))
	if err == nil {
		return true, nil
	}
	if status := httpStatus(err); status != 0 && errors.Is(classifyStatus(status), ErrAuth) {
		return false, nil
	}
	return false, c.fail("validate credential", err)
}

type narrativeResponse struct {
	Narrative  string   `json:"narrative"`
	Insights   []string `json:"insights"`
	Confidence float64  `json:"confidence"`
}

func (c *OpenAIClient) GenerateNarrative(ctx context.Context, inv models.Investigation) (Narrative, error) {
	var (
		out        narrativeResponse
		completion openai.ChatCompletionResponse
		err        error
	)
	start := time.Now()
	if completion, err = c.complete(ctx, narrativeInstructions, inv); err != nil {
		c.tally.record(false, 0, time.Since(start))
		return Narrative{}, c.fail("generate narrative", err)
	}
	latency := time.Since(start)
	tokens := completion.Usage.TotalTokens

	if err = decodeContent(completion, &out); err != nil || strings.TrimSpace(out.Narrative) == "" {
		c.tally.record(false, tokens, latency)
		if err == nil {
			err = errors.New("empty narrative")
		}
		return Narrative{}, &ProviderError{
			Provider: ProviderOpenAI, Op: "generate narrative", Kind: ErrMalformedResponse, Err: err,
		}
	}
	c.tally.record(true, tokens, latency)

	return Narrative{
		Text:       out.Narrative,
		Insights:   nonEmpty(out.Insights),
		Confidence: normalizeConfidence(out.Confidence),
		TokensUsed: tokens,
		Latency:    latency,
	}, nil
}

type followUpResponse struct {
	Questions []string `json:"questions"`
}

func (c *OpenAIClient) SuggestFollowUps(ctx context.Context, inv models.Investigation) ([]string, error) {
	var (
		out        followUpResponse
		completion openai.ChatCompletionResponse
		err        error
	)
	start := time.Now()
	if completion, err = c.complete(ctx, followUpInstructions, inv); err != nil {
		c.tally.record(false, 0, time.Since(start))
		return nil, c.fail("suggest follow-ups", err)
	}
	latency := time.Since(start)
	tokens := completion.Usage.TotalTokens

	var questions []string
	if err = decodeContent(completion, &out); err == nil {
		questions = nonEmpty(out.Questions)
	}
	if len(questions) == 0 {
		c.tally.record(false, tokens, latency)
		if err == nil {
			err = errors.New("no questions")
		}
		return nil, &ProviderError{
			Provider: ProviderOpenAI, Op: "suggest follow-ups", Kind: ErrMalformedResponse, Err: err,
		}
	}
	c.tally.record(true, tokens, latency)
	return questions, nil
}

func (c *OpenAIClient) UsageStats() models.APIUsageStats {
	return c.tally.snapshot()
}

func (c *OpenAIClient) complete(
	ctx context.Context,
	instructions string,
	inv models.Investigation,
) (openai.ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     c.model,
			MaxTokens: maxTokens(c.depth),
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(instructions, c.depth)},
				{Role: openai.ChatMessageRoleUser, Content: brief(inv)},
			},
		},
	)
	if err != nil {
		return openai.ChatCompletionResponse{}, errors.Wrap(err, "create chat completion",
			slog.String("model", c.model))
	}
	return completion, nil
}

// decodeContent unmarshals the first choice's JSON content into v.
func decodeContent(completion openai.ChatCompletionResponse, v any) error {
	if len(completion.Choices) == 0 {
		return errors.New("no choices in completion")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	// Some compatible endpoints wrap JSON mode output in a markdown fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return errors.Wrap(err, "decode completion content")
	}
	return nil
}

// normalizeConfidence accepts both fractions and percentages. Anything out of range counts as unreported.
func normalizeConfidence(c float64) float64 {
	switch {
	case c > 0 && c <= 1:
		return c
	case c > 1 && c <= 100:
		return c / 100 //nolint:mnd // percent
	default:
		return 0
	}
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
