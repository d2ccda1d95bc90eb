// Package scoring produces the numeric parts of a report.
//
// The default scorer is randomized within documented bounds; tests and future real data sources plug in their own
// Scorer.
package scoring

import (
	"fmt"
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/random"
	"strings"
)

// Bounds of every score a Scorer may produce, inclusive.
const (
	MinScore           = 60
	MaxScore           = 100
	MinInfluence       = 30
	MaxInfluence       = 95
	MinLocalConfidence = 70
	MaxLocalConfidence = 90
	MinFollowers       = 50
	MaxFollowers       = 5000
	MaxPostsPerWeek    = 21
	MaxRiskScore       = 100
)

// Scorer computes analysis data for an investigation. Implementations must only read inv.
type Scorer interface {
	// Score returns everything but the narrative, which the caller fills in.
	Score(inv models.Investigation) models.AnalysisData
	// LocalConfidence is the report confidence in [MinLocalConfidence, MaxLocalConfidence] used when no provider
	// contributed.
	LocalConfidence(inv models.Investigation) int
}

// RandomScorer draws every score uniformly from its bounds.
type RandomScorer struct {
	between func(lo, hi int) int
}

var _ Scorer = RandomScorer{}

// NewRandomScorer uses between to draw integers in [lo, hi]. A nil between uses a cryptographically secure source.
func NewRandomScorer(between func(lo, hi int) int) RandomScorer {
	if between == nil {
		between = secureBetween
	}
	return RandomScorer{between: between}
}

func secureBetween(lo, hi int) int {
	v, err := random.Between(lo, hi)
	if err != nil {
		return lo
	}
	return v
}

// draw clamps whatever the source returns so that a misbehaving source can't break the bounds.
func (s RandomScorer) draw(lo, hi int) int {
	return min(max(s.between(lo, hi), lo), hi)
}

var traits = []struct {
	name, description string
}{
	{"Openness", "Curious and receptive to new experiences."},
	{"Conscientiousness", "Organized, dependable and goal oriented."},
	{"Extraversion", "Draws energy from social interaction."},
	{"Agreeableness", "Cooperative and considerate towards others."},
	{"Emotional stability", "Stays composed under pressure."},
}

var platforms = []string{"WeChat", "Weibo", "LinkedIn", "Douyin"}

var relations = []struct {
	name, relation string
}{
	{"Family", "family"},
	{"Close friends", "friend"},
	{"Colleagues", "professional"},
	{"Former partners", "romantic"},
}

func (s RandomScorer) Score(inv models.Investigation) models.AnalysisData {
	data := models.AnalysisData{
		OverallScore:      s.draw(MinScore, MaxScore),
		PersonalityTraits: make([]models.PersonalityTrait, 0, len(traits)),
		Relationships:     make([]models.Relationship, 0, len(relations)),
	}
	for _, t := range traits {
		data.PersonalityTraits = append(data.PersonalityTraits, models.PersonalityTrait{
			Name:        t.name,
			Score:       s.draw(MinScore, MaxScore),
			Description: t.description,
		})
	}
	data.SocialActivity = s.socialActivity(inv)
	data.RiskAssessment = s.riskAssessment(inv)
	for _, r := range relations {
		data.Relationships = append(data.Relationships, models.Relationship{
			Name:      r.name,
			Relation:  r.relation,
			Influence: s.draw(MinInfluence, MaxInfluence),
		})
	}
	if inv.Type == models.InvestigationTypeDating && inv.Dating != nil {
		c := s.compatibility(*inv.Dating)
		data.Compatibility = &c
	}
	return data
}

func (s RandomScorer) LocalConfidence(_ models.Investigation) int {
	return s.draw(MinLocalConfidence, MaxLocalConfidence)
}

func (s RandomScorer) socialActivity(inv models.Investigation) models.SocialActivity {
	activity := models.SocialActivity{Platforms: make([]models.PlatformActivity, 0, len(platforms))}
	totalPosts := 0
	for _, p := range platforms {
		posts := s.draw(0, MaxPostsPerWeek)
		totalPosts += posts
		activity.Platforms = append(activity.Platforms, models.PlatformActivity{
			Platform:     p,
			Followers:    s.draw(MinFollowers, MaxFollowers),
			PostsPerWeek: posts,
		})
	}
	perPlatform := totalPosts / len(platforms)
	switch {
	case perPlatform >= 14:
		activity.Level = models.RiskHigh
	case perPlatform >= 5:
		activity.Level = models.RiskMedium
	default:
		activity.Level = models.RiskLow
	}
	activity.Summary = fmt.Sprintf("%s posts about %d times a week per platform; overall activity is %s.",
		inv.Subject.Name, perPlatform, activity.Level)
	return activity
}

// LevelFor maps a risk score in [0,100] onto a level.
func LevelFor(score int) models.RiskLevel {
	switch {
	case score >= 67:
		return models.RiskHigh
	case score >= 34:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

var riskCatalog = map[string]struct {
	factors         map[models.RiskLevel]string
	recommendations map[models.RiskLevel]string
}{
	"Identity": {
		factors: map[models.RiskLevel]string{
			models.RiskLow:    "Name, age and location are consistent across sources.",
			models.RiskMedium: "Some profile details could not be corroborated.",
			models.RiskHigh:   "Conflicting identity details across sources.",
		},
		recommendations: map[models.RiskLevel]string{
			models.RiskLow:    "No further identity checks needed.",
			models.RiskMedium: "Ask for a second form of identification.",
			models.RiskHigh:   "Verify identity in person before proceeding.",
		},
	},
	"Legal": {
		factors: map[models.RiskLevel]string{
			models.RiskLow:    "No public legal records found.",
			models.RiskMedium: "Minor civil disputes on record.",
			models.RiskHigh:   "Criminal proceedings on record.",
		},
		recommendations: map[models.RiskLevel]string{
			models.RiskLow:    "No action required.",
			models.RiskMedium: "Review the dispute outcomes.",
			models.RiskHigh:   "Consult a legal professional.",
		},
	},
	"Financial": {
		factors: map[models.RiskLevel]string{
			models.RiskLow:    "Stable income indicators.",
			models.RiskMedium: "Irregular income pattern.",
			models.RiskHigh:   "Signs of significant debt.",
		},
		recommendations: map[models.RiskLevel]string{
			models.RiskLow:    "No action required.",
			models.RiskMedium: "Avoid shared financial commitments early on.",
			models.RiskHigh:   "Do not enter financial arrangements.",
		},
	},
	"Online reputation": {
		factors: map[models.RiskLevel]string{
			models.RiskLow:    "Positive or neutral online footprint.",
			models.RiskMedium: "Occasional heated online exchanges.",
			models.RiskHigh:   "Repeated hostile online behaviour.",
		},
		recommendations: map[models.RiskLevel]string{
			models.RiskLow:    "No action required.",
			models.RiskMedium: "Keep an eye on public interactions.",
			models.RiskHigh:   "Limit sharing of personal information.",
		},
	},
}

func (s RandomScorer) riskAssessment(inv models.Investigation) models.RiskAssessment {
	names := []string{"Identity"}
	q := inv.Details.Query
	if q.Criminal {
		names = append(names, "Legal")
	}
	if q.Financial {
		names = append(names, "Financial")
	}
	if q.SocialMedia {
		names = append(names, "Online reputation")
	}

	assessment := models.RiskAssessment{Categories: make([]models.RiskCategory, 0, len(names))}
	highest := 0
	for _, name := range names {
		score := s.draw(0, MaxRiskScore)
		highest = max(highest, score)
		level := LevelFor(score)
		entry := riskCatalog[name]
		assessment.Categories = append(assessment.Categories, models.RiskCategory{
			Name:            name,
			Level:           level,
			Factors:         []string{entry.factors[level]},
			Recommendations: []string{entry.recommendations[level]},
		})
	}
	assessment.Score = highest
	assessment.Overall = LevelFor(highest)
	return assessment
}

func (s RandomScorer) compatibility(d models.DatingProfile) models.CompatibilityAssessment {
	p := d.Personality
	// Agreeable, conscientious and open requesters tend to match more easily.
	base := (p.Agreeableness + p.Conscientiousness + p.Openness) / 3
	score := MinScore + base*(MaxScore-MinScore)/100 + s.draw(-5, 5)
	c := models.CompatibilityAssessment{Score: min(max(score, MinScore), MaxScore)}

	if len(d.Preferences.Interests) > 0 {
		c.Strengths = append(c.Strengths, "Shared interests: "+strings.Join(d.Preferences.Interests, ", ")+".")
	}
	if len(d.Preferences.Values) > 0 {
		c.Strengths = append(c.Strengths, "Aligned values: "+strings.Join(d.Preferences.Values, ", ")+".")
	}
	if len(c.Strengths) == 0 {
		c.Strengths = append(c.Strengths, "Compatible communication styles.")
	}
	for _, db := range d.Preferences.Dealbreakers {
		c.Concerns = append(c.Concerns, "Check dealbreaker: "+db+".")
	}
	if p.Neuroticism > 70 {
		c.Concerns = append(c.Concerns, "High stress sensitivity may strain early communication.")
	}
	if len(c.Concerns) == 0 {
		c.Concerns = append(c.Concerns, "Long-term goals should be discussed early.")
	}
	return c
}
