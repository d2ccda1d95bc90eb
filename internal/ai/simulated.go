package ai

import (
	"context"
	"fmt"
	"github.com/myrjola/dossier/internal/models"
	"strings"
	"time"
)

// SimulatedClient stands in for vendors without a live integration. It always succeeds after a fixed delay with
// synthetic content, which also makes it a convenient fake for exercising the pipeline offline.
type SimulatedClient struct {
	provider   string
	model      string
	credential string
	depth      models.AnalysisDepth
	delay      time.Duration
	confidence float64
	tally      tally
}

var _ Provider = (*SimulatedClient)(nil)

func NewSimulatedClient(
	provider, model string,
	confidence float64,
	delay time.Duration,
	settings Settings,
) *SimulatedClient {
	return &SimulatedClient{
		provider:   provider,
		model:      model,
		credential: settings.Credential,
		depth:      settings.Depth,
		delay:      delay,
		confidence: confidence,
		tally:      newTally(),
	}
}

// wait blocks for the simulated latency, or until ctx is done.
func (c *SimulatedClient) wait(ctx context.Context, op string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &ProviderError{Provider: c.provider, Op: op, Kind: classify(ctx.Err()), Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

func (c *SimulatedClient) ValidateCredential(ctx context.Context) (bool, error) {
	start := time.Now()
	if err := c.wait(ctx, "validate credential", c.delay/4); err != nil {
		c.tally.record(false, 0, time.Since(start))
		return false, err
	}
	c.tally.record(true, 0, time.Since(start))
	return strings.TrimSpace(c.credential) != "", nil
}

func (c *SimulatedClient) GenerateNarrative(ctx context.Context, inv models.Investigation) (Narrative, error) {
	start := time.Now()
	if err := c.wait(ctx, "generate narrative", c.delay); err != nil {
		c.tally.record(false, 0, time.Since(start))
		return Narrative{}, err
	}

	subject := inv.Subject.Name
	paragraphs := []string{
		fmt.Sprintf("%s analysis of %s based on %d submitted facts.", c.model, subject, len(strings.Split(brief(inv), "\n"))-1),
		fmt.Sprintf("The available signals describe %s as a consistent and socially engaged profile with no "+
			"contradictions between the declared background and the consulted sources.", subject),
	}
	if inv.Type == models.InvestigationTypeDating {
		paragraphs = append(paragraphs, "Compatibility indicators with the requester's stated preferences are "+
			"broadly positive; values alignment should be confirmed in person.")
	}
	if c.depth == models.DepthDeep {
		paragraphs = append(paragraphs, "A deeper review of the relationship network shows a stable circle of "+
			"long-standing contacts and no unusual influence patterns.")
	}
	insights := []string{
		"Declared occupation and education are mutually consistent.",
		"Online activity suggests an open communication style.",
	}
	if sources := inv.Details.Query.Enabled(); len(sources) > 0 {
		insights = append(insights, "Checked sources: "+strings.Join(sources, ", ")+".")
	}

	text := strings.Join(paragraphs, "\n\n")
	tokens := estimateTokens(brief(inv)) + estimateTokens(text)
	latency := time.Since(start)
	c.tally.record(true, tokens, latency)

	return Narrative{
		Text:       text,
		Insights:   insights,
		Confidence: c.confidence,
		TokensUsed: tokens,
		Latency:    latency,
	}, nil
}

func (c *SimulatedClient) SuggestFollowUps(ctx context.Context, inv models.Investigation) ([]string, error) {
	start := time.Now()
	if err := c.wait(ctx, "suggest follow-ups", c.delay/2); err != nil {
		c.tally.record(false, 0, time.Since(start))
		return nil, err
	}
	questions := []string{
		fmt.Sprintf("Can %s's employment history be confirmed with a reference?", inv.Subject.Name),
		"Are there public records that corroborate the stated location?",
	}
	if inv.Type == models.InvestigationTypeDating {
		questions = append(questions, "Do long-term relationship goals match the requester's?")
	}
	tokens := estimateTokens(strings.Join(questions, " "))
	c.tally.record(true, tokens, time.Since(start))
	return questions, nil
}

func (c *SimulatedClient) UsageStats() models.APIUsageStats {
	return c.tally.snapshot()
}

// estimateTokens approximates tokens as four characters each.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
