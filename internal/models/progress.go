package models

import (
	"encoding/json"
	"github.com/myrjola/dossier/internal/errors"
	"time"
)

// Stage is one named phase of a generation run.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageAnalyzing    Stage = "analyzing"
	StageGenerating   Stage = "generating"
	StageReviewing    Stage = "reviewing"
	StageCompleted    Stage = "completed"
)

// AIAnalysisProgress describes the in-flight generation of one investigation. In JSON the remaining time is whole
// milliseconds under estimatedTimeRemainingMs.
type AIAnalysisProgress struct {
	InvestigationID        string
	Stage                  Stage
	Progress               int
	CurrentTask            string
	EstimatedTimeRemaining time.Duration
}

type progressJSON struct {
	InvestigationID          string `json:"investigationId"`
	Stage                    Stage  `json:"stage"`
	Progress                 int    `json:"progress"`
	CurrentTask              string `json:"currentTask"`
	EstimatedTimeRemainingMs int64  `json:"estimatedTimeRemainingMs"`
}

func (p AIAnalysisProgress) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(progressJSON{
		InvestigationID:          p.InvestigationID,
		Stage:                    p.Stage,
		Progress:                 p.Progress,
		CurrentTask:              p.CurrentTask,
		EstimatedTimeRemainingMs: p.EstimatedTimeRemaining.Milliseconds(),
	})
	return b, errors.Wrap(err, "marshal progress")
}

func (p *AIAnalysisProgress) UnmarshalJSON(data []byte) error {
	var v progressJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "unmarshal progress")
	}
	*p = AIAnalysisProgress{
		InvestigationID:        v.InvestigationID,
		Stage:                  v.Stage,
		Progress:               v.Progress,
		CurrentTask:            v.CurrentTask,
		EstimatedTimeRemaining: time.Duration(v.EstimatedTimeRemainingMs) * time.Millisecond,
	}
	return nil
}

// Done reports whether the run reached its terminal stage.
func (p AIAnalysisProgress) Done() bool {
	return p.Stage == StageCompleted && p.Progress == 100
}
