package scoring_test

import (
	"github.com/myrjola/dossier/internal/models"
	"github.com/myrjola/dossier/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func datingInvestigation() models.Investigation {
	return models.Investigation{
		ID:      "d1",
		Type:    models.InvestigationTypeDating,
		Subject: models.Subject{Name: "Li Wei"},
		Details: models.Details{Query: models.QueryConfig{SocialMedia: true, Criminal: true, Financial: true}},
		Dating: &models.DatingProfile{
			Preferences: models.PartnerPreferences{
				Interests:    []string{"hiking"},
				Dealbreakers: []string{"smoking"},
			},
			Personality: models.PersonalityScores{
				Openness: 80, Conscientiousness: 70, Agreeableness: 90, Neuroticism: 20,
			},
		},
	}
}

func TestRandomScorer_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		between func(lo, hi int) int
	}{
		{name: "secure source", between: nil},
		{name: "always low", between: func(lo, _ int) int { return lo }},
		{name: "always high", between: func(_, hi int) int { return hi }},
		{name: "misbehaving source", between: func(_, _ int) int { return 1000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := scoring.NewRandomScorer(tt.between)
			inv := datingInvestigation()
			for range 50 {
				data := scorer.Score(inv)
				assert.GreaterOrEqual(t, data.OverallScore, scoring.MinScore)
				assert.LessOrEqual(t, data.OverallScore, scoring.MaxScore)
				require.Len(t, data.PersonalityTraits, 5)
				for _, trait := range data.PersonalityTraits {
					assert.GreaterOrEqual(t, trait.Score, scoring.MinScore)
					assert.LessOrEqual(t, trait.Score, scoring.MaxScore)
				}
				for _, r := range data.Relationships {
					assert.GreaterOrEqual(t, r.Influence, scoring.MinInfluence)
					assert.LessOrEqual(t, r.Influence, scoring.MaxInfluence)
				}
				require.Len(t, data.RiskAssessment.Categories, 4)
				for _, c := range data.RiskAssessment.Categories {
					assert.NotEmpty(t, c.Factors)
					assert.NotEmpty(t, c.Recommendations)
				}
				assert.Equal(t, scoring.LevelFor(data.RiskAssessment.Score), data.RiskAssessment.Overall)
				require.NotNil(t, data.Compatibility)
				assert.GreaterOrEqual(t, data.Compatibility.Score, scoring.MinScore)
				assert.LessOrEqual(t, data.Compatibility.Score, scoring.MaxScore)
				assert.NotEmpty(t, data.Compatibility.Strengths)
				assert.NotEmpty(t, data.Compatibility.Concerns)
				assert.Empty(t, data.Narrative)

				confidence := scorer.LocalConfidence(inv)
				assert.GreaterOrEqual(t, confidence, scoring.MinLocalConfidence)
				assert.LessOrEqual(t, confidence, scoring.MaxLocalConfidence)
			}
		})
	}
}

func TestRandomScorer_GeneralHasNoCompatibility(t *testing.T) {
	inv := models.Investigation{
		ID:      "g1",
		Type:    models.InvestigationTypeGeneral,
		Subject: models.Subject{Name: "Zhang San"},
	}
	data := scoring.NewRandomScorer(nil).Score(inv)
	require.Nil(t, data.Compatibility)
	require.Len(t, data.RiskAssessment.Categories, 1, "identity is always assessed")
	require.Contains(t, data.SocialActivity.Summary, "Zhang San")
}

func TestRandomScorer_DoesNotMutateInvestigation(t *testing.T) {
	inv := datingInvestigation()
	before := inv.Clone()
	scoring.NewRandomScorer(nil).Score(inv)
	require.Equal(t, before, inv)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score int
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{33, models.RiskLow},
		{34, models.RiskMedium},
		{66, models.RiskMedium},
		{67, models.RiskHigh},
		{100, models.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.LevelFor(tt.score), "score %d", tt.score)
	}
}
