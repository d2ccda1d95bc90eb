// Package report turns the outcome of a generation run into an immutable Report.
package report

import (
	"fmt"
	"github.com/google/uuid"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/scoring"
	"math"
	"strings"
	"time"
)

// Source tells where the narrative of a run came from.
type Source int

const (
	// SourceLocal means no provider was consulted, either because AI assistance was disabled or because the selected
	// provider had no usable credential.
	SourceLocal Source = iota
	// SourceProvider means the provider produced the narrative.
	SourceProvider
	// SourceFallback means the provider failed and local content was substituted.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceProvider:
		return "provider"
	case SourceFallback:
		return "fallback"
	}
	return "unknown"
}

const (
	// FallbackConfidence is the confidence reported when the provider failed mid-run.
	FallbackConfidence = 0.5
	// FallbackNotice starts the narrative and the insight of a report whose provider call failed.
	FallbackNotice = "Provider unavailable, using local analysis"
)

// Input is everything a run hands over to the Assembler.
type Input struct {
	Investigation models.Investigation
	Config        models.AIConfig
	Source        Source
	// Provider and Model identify the selected provider. Empty for SourceLocal.
	Provider string
	Model    string
	// Narrative, Insights and Confidence are only read for SourceProvider.
	Narrative  string
	Insights   []string
	Confidence float64
	// FailureKind describes why the provider failed, only read for SourceFallback.
	FailureKind string
}

// Assembler builds reports. It only reads the investigation it is given.
type Assembler struct {
	scorer scoring.Scorer
	now    func() time.Time
	newID  func() string
}

// NewAssembler creates an Assembler. A nil now uses time.Now.
func NewAssembler(scorer scoring.Scorer, now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{
		scorer: scorer,
		now:    now,
		newID:  uuid.NewString,
	}
}

// Assemble creates the report for in.
func (a *Assembler) Assemble(in Input) models.Report {
	inv := in.Investigation
	data := a.scorer.Score(inv)
	local := LocalNarrative(inv, data)

	r := models.Report{
		ID:              a.newID(),
		InvestigationID: inv.ID,
		GeneratedAt:     a.now().UTC(),
	}

	switch in.Source {
	case SourceProvider:
		data.Narrative = strings.TrimSpace(in.Narrative)
		if data.Narrative == "" {
			data.Narrative = local
		}
		insights := make([]string, 0, len(in.Insights)+1)
		for _, insight := range in.Insights {
			if insight = strings.TrimSpace(insight); insight != "" {
				insights = append(insights, insight)
			}
		}
		if in.Confidence < in.Config.ConfidenceThreshold {
			insights = append(insights, thresholdInsight(in.Confidence, in.Config))
		}
		r.AIGenerated = &models.AIProvenance{
			IsAIGenerated: true,
			AIModel:       in.Model,
			AIConfidence:  in.Confidence,
			AIInsights:    insights,
		}
	case SourceFallback:
		data.Narrative = FallbackNotice + ".\n\n" + local
		insight := FallbackNotice + "."
		if in.FailureKind != "" {
			insight = fmt.Sprintf("%s (%s: %s).", FallbackNotice, in.Provider, strings.ReplaceAll(in.FailureKind, "_", " "))
		}
		r.AIGenerated = &models.AIProvenance{
			IsAIGenerated: true,
			AIModel:       in.Model,
			AIConfidence:  FallbackConfidence,
			AIInsights:    []string{insight},
		}
	case SourceLocal:
		data.Narrative = local
	}

	r.Analysis = data
	if r.AIGenerated != nil && r.AIGenerated.IsAIGenerated {
		r.ConfidenceScore = int(math.Round(r.AIGenerated.AIConfidence * 100))
	} else {
		r.ConfidenceScore = a.scorer.LocalConfidence(inv)
	}
	return r
}

func thresholdInsight(confidence float64, cfg models.AIConfig) string {
	msg := fmt.Sprintf("Confidence %.2f is below the %.2f threshold", confidence, cfg.ConfidenceThreshold)
	if cfg.HumanReview {
		return msg + "; human review recommended."
	}
	return msg + "."
}

// LocalNarrative summarizes an investigation and its scores without any provider.
func LocalNarrative(inv models.Investigation, data models.AnalysisData) string {
	var b strings.Builder
	s := inv.Subject
	b.WriteString(s.Name)
	if inv.Details.Age > 0 {
		fmt.Fprintf(&b, ", %d,", inv.Details.Age)
	}
	switch {
	case s.Occupation != "" && s.Location != "":
		fmt.Fprintf(&b, " works as %s in %s.", s.Occupation, s.Location)
	case s.Occupation != "":
		fmt.Fprintf(&b, " works as %s.", s.Occupation)
	case s.Location != "":
		fmt.Fprintf(&b, " is based in %s.", s.Location)
	default:
		b.WriteString(" was profiled from the submitted facts.")
	}
	fmt.Fprintf(&b, " The overall profile score is %d/100 with %s overall risk.",
		data.OverallScore, data.RiskAssessment.Overall)
	if len(data.PersonalityTraits) > 0 {
		strongest := data.PersonalityTraits[0]
		for _, t := range data.PersonalityTraits[1:] {
			if t.Score > strongest.Score {
				strongest = t
			}
		}
		fmt.Fprintf(&b, " The most pronounced trait is %s (%d).", strings.ToLower(strongest.Name), strongest.Score)
	}
	if data.SocialActivity.Summary != "" {
		b.WriteString(" ")
		b.WriteString(data.SocialActivity.Summary)
	}
	if c := data.Compatibility; c != nil {
		fmt.Fprintf(&b, " Estimated compatibility with the requester is %d/100.", c.Score)
	}
	return b.String()
}
