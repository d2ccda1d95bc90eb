package pipeline

import (
	"github.com/myrjola/dossier/internal/models"
	"time"
)

// StageSpec describes one stage of a run. Nominal is only used to estimate the remaining time; the actual duration
// is whatever the stage's work takes.
type StageSpec struct {
	Stage   models.Stage
	Task    string
	Nominal time.Duration
}

// Stages is the fixed sequence every run walks through.
var Stages = []StageSpec{
	{Stage: models.StageInitializing, Task: "Preparing investigation data", Nominal: time.Second},
	{Stage: models.StageAnalyzing, Task: "Analyzing subject profile", Nominal: 3 * time.Second},
	{Stage: models.StageGenerating, Task: "Generating report content", Nominal: 2 * time.Second},
	{Stage: models.StageReviewing, Task: "Reviewing report quality", Nominal: 1500 * time.Millisecond},
	{Stage: models.StageCompleted, Task: "Report ready", Nominal: 0},
}

// progressAt is the progress percentage on entering stage i. Only the last stage reaches 100.
func progressAt(i int) int {
	return i * 100 / (len(Stages) - 1)
}

// remainingAt sums the nominal durations of stage i and the stages after it.
func remainingAt(i int) time.Duration {
	var d time.Duration
	for _, s := range Stages[i:] {
		d += s.Nominal
	}
	return d
}

func progressFor(investigationID string, i int) models.AIAnalysisProgress {
	return models.AIAnalysisProgress{
		InvestigationID:        investigationID,
		Stage:                  Stages[i].Stage,
		Progress:               progressAt(i),
		CurrentTask:            Stages[i].Task,
		EstimatedTimeRemaining: remainingAt(i),
	}
}
