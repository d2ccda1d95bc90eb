package models_test

import (
	"encoding/json"
	"github.com/myrjola/dossier/internal/models"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestAIAnalysisProgress_JSON(t *testing.T) {
	p := models.AIAnalysisProgress{
		InvestigationID:        "x1",
		Stage:                  models.StageAnalyzing,
		Progress:               25,
		CurrentTask:            "Analyzing the subject",
		EstimatedTimeRemaining: 6*time.Second + 250*time.Millisecond,
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"investigationId": "x1",
		"stage": "analyzing",
		"progress": 25,
		"currentTask": "Analyzing the subject",
		"estimatedTimeRemainingMs": 6250
	}`, string(b))

	var decoded models.AIAnalysisProgress
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, p, decoded)

	require.Error(t, json.Unmarshal([]byte(`{"estimatedTimeRemainingMs":"soon"}`), &decoded))
}
