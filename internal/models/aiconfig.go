package models

import (
	"github.com/myrjola/dossier/internal/errors"
	"log/slog"
	"maps"
	"time"
)

var ErrInvalidConfig = errors.NewSentinel("invalid AI configuration")

// AnalysisDepth controls how detailed the provider prompt is.
type AnalysisDepth string

const (
	DepthBasic    AnalysisDepth = "basic"
	DepthStandard AnalysisDepth = "standard"
	DepthDeep     AnalysisDepth = "deep"
)

// AIConfig is the process-wide AI assistance configuration.
type AIConfig struct {
	Enabled             bool                     `json:"isEnabled" yaml:"isEnabled"`
	SelectedModel       string                   `json:"selectedModel" yaml:"selectedModel"`
	AnalysisDepth       AnalysisDepth            `json:"analysisDepth" yaml:"analysisDepth"`
	AutoGenerate        bool                     `json:"autoGenerate" yaml:"autoGenerate"`
	HumanReview         bool                     `json:"humanReview" yaml:"humanReview"`
	ConfidenceThreshold float64                  `json:"confidenceThreshold" yaml:"confidenceThreshold"`
	Credentials         map[string]string        `json:"apiKeys" yaml:"apiKeys"`
	UsageStats          map[string]APIUsageStats `json:"usageStats" yaml:"-"`
}

// DefaultAIConfig is the configuration a fresh installation starts with.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Enabled:             false,
		SelectedModel:       "openai",
		AnalysisDepth:       DepthStandard,
		AutoGenerate:        false,
		HumanReview:         true,
		ConfidenceThreshold: 0.7,
		Credentials:         map[string]string{},
		UsageStats:          map[string]APIUsageStats{},
	}
}

// Credential returns the credential for the given provider, or "" when none is configured.
func (c AIConfig) Credential(provider string) string {
	return c.Credentials[provider]
}

// Clone returns a deep copy of the configuration.
func (c AIConfig) Clone() AIConfig {
	c.Credentials = maps.Clone(c.Credentials)
	c.UsageStats = maps.Clone(c.UsageStats)
	return c
}

// AIConfigUpdate is a partial AIConfig. Nil fields are left untouched when applied.
type AIConfigUpdate struct {
	Enabled             *bool             `json:"isEnabled,omitempty" yaml:"isEnabled,omitempty"`
	SelectedModel       *string           `json:"selectedModel,omitempty" yaml:"selectedModel,omitempty"`
	AnalysisDepth       *AnalysisDepth    `json:"analysisDepth,omitempty" yaml:"analysisDepth,omitempty"`
	AutoGenerate        *bool             `json:"autoGenerate,omitempty" yaml:"autoGenerate,omitempty"`
	HumanReview         *bool             `json:"humanReview,omitempty" yaml:"humanReview,omitempty"`
	ConfidenceThreshold *float64          `json:"confidenceThreshold,omitempty" yaml:"confidenceThreshold,omitempty"`
	Credentials         map[string]string `json:"apiKeys,omitempty" yaml:"apiKeys,omitempty"`
}

// Validate rejects values that no configuration may hold.
func (u AIConfigUpdate) Validate() error {
	if u.AnalysisDepth != nil {
		switch *u.AnalysisDepth {
		case DepthBasic, DepthStandard, DepthDeep:
		default:
			return errors.Wrap(ErrInvalidConfig, "unknown analysis depth",
				slog.String("analysis_depth", string(*u.AnalysisDepth)))
		}
	}
	if u.ConfidenceThreshold != nil && (*u.ConfidenceThreshold < 0 || *u.ConfidenceThreshold > 1) {
		return errors.Wrap(ErrInvalidConfig, "confidence threshold must be within [0,1]",
			slog.Float64("confidence_threshold", *u.ConfidenceThreshold))
	}
	if u.SelectedModel != nil && *u.SelectedModel == "" {
		return errors.Wrap(ErrInvalidConfig, "selected model must not be empty")
	}
	return nil
}

// Apply merges u into c. Credentials are merged per provider; an empty credential removes the entry.
func (u AIConfigUpdate) Apply(c AIConfig) AIConfig {
	c = c.Clone()
	if u.Enabled != nil {
		c.Enabled = *u.Enabled
	}
	if u.SelectedModel != nil {
		c.SelectedModel = *u.SelectedModel
	}
	if u.AnalysisDepth != nil {
		c.AnalysisDepth = *u.AnalysisDepth
	}
	if u.AutoGenerate != nil {
		c.AutoGenerate = *u.AutoGenerate
	}
	if u.HumanReview != nil {
		c.HumanReview = *u.HumanReview
	}
	if u.ConfidenceThreshold != nil {
		c.ConfidenceThreshold = *u.ConfidenceThreshold
	}
	if len(u.Credentials) > 0 && c.Credentials == nil {
		c.Credentials = map[string]string{}
	}
	for provider, credential := range u.Credentials {
		if credential == "" {
			delete(c.Credentials, provider)
			continue
		}
		c.Credentials[provider] = credential
	}
	return c
}

// APIUsageStats are monotonically accumulating counters for one provider.
type APIUsageStats struct {
	TotalRequests      int       `json:"totalRequests"`
	SuccessfulRequests int       `json:"successfulRequests"`
	FailedRequests     int       `json:"failedRequests"`
	TotalTokensUsed    int       `json:"totalTokensUsed"`
	AverageResponseMs  float64   `json:"averageResponseTime"`
	LastUsed           time.Time `json:"lastUsed"`
}

// SuccessRate returns the share of successful requests in [0,1], or 0 before the first request.
func (s APIUsageStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}
