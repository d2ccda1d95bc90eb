package ai

import (
	"fmt"
	"github.com/myrjola/dossier/internal/models"
	"strings"
)

const narrativeInstructions = `You are an analyst writing a background profile from the facts supplied by the user.
Respond with a JSON object with the keys "narrative" (string), "insights" (array of short strings)
and "confidence" (number between 0 and 1 describing how well the facts support the narrative).`

const followUpInstructions = `You are an analyst planning the next steps of a background check.
Respond with a JSON object with the key "questions" holding an array of short follow-up questions
the requester should clarify or verify next.`

var depthGuidance = map[models.AnalysisDepth]string{
	models.DepthBasic:    "Keep the narrative to one short paragraph and at most three insights.",
	models.DepthStandard: "Write two or three paragraphs and up to five insights.",
	models.DepthDeep: "Write a thorough multi-paragraph analysis covering personality, social footprint, " +
		"risks and relationships, with up to eight insights.",
}

// maxTokens caps the completion length per depth.
func maxTokens(depth models.AnalysisDepth) int {
	switch depth {
	case models.DepthBasic:
		return 512
	case models.DepthDeep:
		return 4096
	case models.DepthStandard:
		return 1536
	default:
		return 1536
	}
}

func systemPrompt(instructions string, depth models.AnalysisDepth) string {
	guidance, ok := depthGuidance[depth]
	if !ok {
		guidance = depthGuidance[models.DepthStandard]
	}
	return instructions + "\n" + guidance
}

// brief renders the investigation facts as plain text for the model.
func brief(inv models.Investigation) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	line("Report type", string(inv.Type))
	line("Name", inv.Subject.Name)
	line("Occupation", inv.Subject.Occupation)
	line("Location", inv.Subject.Location)
	if inv.Details.Age > 0 {
		line("Age", fmt.Sprint(inv.Details.Age))
	}
	line("Education", inv.Details.Education)
	line("Sources to consider", strings.Join(inv.Details.Query.Enabled(), ", "))

	if d := inv.Dating; d != nil {
		p := d.Preferences
		if p.AgeMin > 0 || p.AgeMax > 0 {
			line("Preferred partner age", fmt.Sprintf("%d-%d", p.AgeMin, p.AgeMax))
		}
		line("Preferred partner education", p.Education)
		line("Shared interests wanted", strings.Join(p.Interests, ", "))
		line("Values", strings.Join(p.Values, ", "))
		line("Relationship goal", p.Relationship)
		line("Dealbreakers", strings.Join(p.Dealbreakers, ", "))
		s := d.Personality
		line("Requester personality (OCEAN)", fmt.Sprintf("O%d C%d E%d A%d N%d",
			s.Openness, s.Conscientiousness, s.Extraversion, s.Agreeableness, s.Neuroticism))
		b.WriteString("Assess compatibility with the requester in addition to the general profile.\n")
	}
	return b.String()
}
