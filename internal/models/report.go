package models

import (
	"slices"
	"time"
)

// RiskLevel is the categorical level of a risk assessment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Report is the persisted output of one successful generation run. Only AIGenerated.HumanReviewed may change after
// creation. ConfidenceScore is the report-level confidence in [0,100].
type Report struct {
	ID              string        `json:"id"`
	InvestigationID string        `json:"investigationId"`
	Analysis        AnalysisData  `json:"analysisData"`
	GeneratedAt     time.Time     `json:"generatedAt"`
	ConfidenceScore int           `json:"confidenceScore"`
	AIGenerated     *AIProvenance `json:"aiGenerated,omitempty"`
}

// AIProvenance tags a report with where its narrative came from.
type AIProvenance struct {
	IsAIGenerated bool     `json:"isAiGenerated"`
	AIModel       string   `json:"aiModel"`
	AIConfidence  float64  `json:"aiConfidence"`
	AIInsights    []string `json:"aiInsights"`
	HumanReviewed bool     `json:"humanReviewed"`
}

type AnalysisData struct {
	OverallScore      int                      `json:"overallScore"`
	Narrative         string                   `json:"narrative"`
	PersonalityTraits []PersonalityTrait       `json:"personalityTraits"`
	SocialActivity    SocialActivity           `json:"socialActivity"`
	RiskAssessment    RiskAssessment           `json:"riskAssessment"`
	Relationships     []Relationship           `json:"relationships"`
	Compatibility     *CompatibilityAssessment `json:"compatibility,omitempty"`
}

type PersonalityTrait struct {
	Name        string `json:"trait"`
	Score       int    `json:"score"`
	Description string `json:"description"`
}

type SocialActivity struct {
	Level     RiskLevel          `json:"activityLevel"`
	Platforms []PlatformActivity `json:"platforms"`
	Summary   string             `json:"summary"`
}

type PlatformActivity struct {
	Platform     string `json:"platform"`
	Followers    int    `json:"followers"`
	PostsPerWeek int    `json:"postsPerWeek"`
}

type RiskAssessment struct {
	Overall    RiskLevel      `json:"overallRisk"`
	Score      int            `json:"score"`
	Categories []RiskCategory `json:"categories"`
}

type RiskCategory struct {
	Name            string    `json:"category"`
	Level           RiskLevel `json:"level"`
	Factors         []string  `json:"factors"`
	Recommendations []string  `json:"recommendations"`
}

type Relationship struct {
	Name      string `json:"name"`
	Relation  string `json:"relation"`
	Influence int    `json:"influence"`
}

// CompatibilityAssessment is only present on dating reports.
type CompatibilityAssessment struct {
	Score     int      `json:"score"`
	Strengths []string `json:"strengths"`
	Concerns  []string `json:"concerns"`
}

// Clone returns a deep copy of the report.
func (r Report) Clone() Report {
	a := r.Analysis
	a.PersonalityTraits = slices.Clone(a.PersonalityTraits)
	a.SocialActivity.Platforms = slices.Clone(a.SocialActivity.Platforms)
	a.RiskAssessment.Categories = slices.Clone(a.RiskAssessment.Categories)
	for i, c := range a.RiskAssessment.Categories {
		a.RiskAssessment.Categories[i].Factors = slices.Clone(c.Factors)
		a.RiskAssessment.Categories[i].Recommendations = slices.Clone(c.Recommendations)
	}
	a.Relationships = slices.Clone(a.Relationships)
	if a.Compatibility != nil {
		c := *a.Compatibility
		c.Strengths = slices.Clone(c.Strengths)
		c.Concerns = slices.Clone(c.Concerns)
		a.Compatibility = &c
	}
	r.Analysis = a
	if r.AIGenerated != nil {
		p := *r.AIGenerated
		p.AIInsights = slices.Clone(p.AIInsights)
		r.AIGenerated = &p
	}
	return r
}
