package models

import (
	"github.com/myrjola/dossier/internal/errors"
	"log/slog"
	"slices"
	"time"
)

var ErrInvalidInvestigation = errors.NewSentinel("invalid investigation")

// InvestigationType selects the report variant and which detail record an Investigation carries.
type InvestigationType string

const (
	InvestigationTypeGeneral InvestigationType = "general"
	InvestigationTypeDating  InvestigationType = "dating"
)

// InvestigationStatus is the lifecycle state of an Investigation.
type InvestigationStatus string

const (
	StatusPending    InvestigationStatus = "pending"
	StatusProcessing InvestigationStatus = "processing"
	StatusCompleted  InvestigationStatus = "completed"
	StatusFailed     InvestigationStatus = "failed"
)

// Investigation is a user-submitted request describing a subject to be profiled.
//
// Type acts as the tag of a union: a dating investigation carries Dating, a general one must not.
type Investigation struct {
	ID        string              `json:"id"`
	Type      InvestigationType   `json:"investigationType"`
	Subject   Subject             `json:"subject"`
	Details   Details             `json:"additionalInfo"`
	Dating    *DatingProfile      `json:"datingInfo,omitempty"`
	Status    InvestigationStatus `json:"status"`
	Progress  int                 `json:"progress"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Subject holds the identity facts of the person being investigated.
type Subject struct {
	Name       string `json:"targetName"`
	PhotoURL   string `json:"photoUrl,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Location   string `json:"location,omitempty"`
	Occupation string `json:"occupation,omitempty"`
}

// Details are the facts shared by both investigation variants.
type Details struct {
	Age       int         `json:"age,omitempty"`
	Education string      `json:"education,omitempty"`
	Query     QueryConfig `json:"queryConfig"`
}

// QueryConfig toggles which simulated data sources are consulted.
type QueryConfig struct {
	SocialMedia   bool `json:"socialMedia"`
	Criminal      bool `json:"criminalRecords"`
	Financial     bool `json:"financialStatus"`
	Employment    bool `json:"employmentHistory"`
	Education     bool `json:"educationBackground"`
	Relationships bool `json:"relationships"`
}

// Enabled lists the human-readable names of the enabled sources.
func (q QueryConfig) Enabled() []string {
	var sources []string
	for _, s := range []struct {
		on   bool
		name string
	}{
		{q.SocialMedia, "social media"},
		{q.Criminal, "criminal records"},
		{q.Financial, "financial status"},
		{q.Employment, "employment history"},
		{q.Education, "education background"},
		{q.Relationships, "relationships"},
	} {
		if s.on {
			sources = append(sources, s.name)
		}
	}
	return sources
}

// DatingProfile holds the dating-variant data: what the requester looks for and their personality test results.
type DatingProfile struct {
	Preferences PartnerPreferences `json:"partnerPreferences"`
	Personality PersonalityScores  `json:"personalityTest"`
}

type PartnerPreferences struct {
	AgeMin        int      `json:"ageMin,omitempty"`
	AgeMax        int      `json:"ageMax,omitempty"`
	Education     string   `json:"education,omitempty"`
	Interests     []string `json:"interests,omitempty"`
	Values        []string `json:"values,omitempty"`
	Relationship  string   `json:"relationshipGoal,omitempty"`
	Dealbreakers  []string `json:"dealbreakers,omitempty"`
	LocationRange string   `json:"locationRange,omitempty"`
}

// PersonalityScores are Big Five style scores, each in [0,100].
type PersonalityScores struct {
	Openness          int `json:"openness"`
	Conscientiousness int `json:"conscientiousness"`
	Extraversion      int `json:"extraversion"`
	Agreeableness     int `json:"agreeableness"`
	Neuroticism       int `json:"neuroticism"`
}

// Validate checks the structural invariants that the pipeline relies on. Field formats are validated upstream.
func (inv Investigation) Validate() error {
	if inv.Subject.Name == "" {
		return errors.Wrap(ErrInvalidInvestigation, "subject name is required")
	}
	switch inv.Type {
	case InvestigationTypeGeneral:
		if inv.Dating != nil {
			return errors.Wrap(ErrInvalidInvestigation, "general investigation must not carry dating info")
		}
	case InvestigationTypeDating:
		if inv.Dating == nil {
			return errors.Wrap(ErrInvalidInvestigation, "dating investigation requires dating info")
		}
	default:
		return errors.Wrap(ErrInvalidInvestigation, "unknown investigation type",
			slog.String("investigation_type", string(inv.Type)))
	}
	return nil
}

// Clone returns a deep copy so that callers can't mutate store-owned state.
func (inv Investigation) Clone() Investigation {
	if inv.Dating != nil {
		dating := *inv.Dating
		dating.Preferences.Interests = slices.Clone(dating.Preferences.Interests)
		dating.Preferences.Values = slices.Clone(dating.Preferences.Values)
		dating.Preferences.Dealbreakers = slices.Clone(dating.Preferences.Dealbreakers)
		inv.Dating = &dating
	}
	return inv
}
