package models

import "time"

// RootCauseCategory buckets the root-cause hypothesis.
type RootCauseCategory string

const (
	CategoryCodeBug            RootCauseCategory = "code_bug"
	CategoryConfigError        RootCauseCategory = "config_error"
	CategoryDependencyFailure  RootCauseCategory = "dependency_failure"
	CategoryResourceExhaustion RootCauseCategory = "resource_exhaustion"
)

// IsValid checks if the category is a known value.
func (c RootCauseCategory) IsValid() bool {
	switch c {
	case CategoryCodeBug, CategoryConfigError, CategoryDependencyFailure, CategoryResourceExhaustion:
		return true
	default:
		return false
	}
}

// RecommendedAction is the remediation the signature calls for.
type RecommendedAction string

const (
	ActionFixCode      RecommendedAction = "fix_code"
	ActionRollback     RecommendedAction = "rollback"
	ActionScaleUp      RecommendedAction = "scale_up"
	ActionConfigChange RecommendedAction = "config_change"
)

// IsValid checks if the action is a known value.
func (a RecommendedAction) IsValid() bool {
	switch a {
	case ActionFixCode, ActionRollback, ActionScaleUp, ActionConfigChange:
		return true
	default:
		return false
	}
}

// Evidence is one item in the root-cause evidence chain.
type Evidence struct {
	Source    string    `json:"source"` // logs|traces|metrics|deployment
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Relevance string    `json:"relevance"`
}

// ThoughtSignature is the structured root-cause hypothesis that drives
// remediation target selection.
type ThoughtSignature struct {
	IncidentID        string            `json:"incident_id"`
	RootCause         string            `json:"root_cause"`
	RootCauseCategory RootCauseCategory `json:"root_cause_category"`
	EvidenceChain     []Evidence        `json:"evidence_chain"`
	AffectedServices  []string          `json:"affected_services"`
	ConfidenceScore   float64           `json:"confidence_score"`

	RecommendedAction RecommendedAction `json:"recommended_action"`
	TargetRepository  string            `json:"target_repository,omitempty"`
	TargetFile        string            `json:"target_file,omitempty"`
	TargetLine        int               `json:"target_line,omitempty"`
	RelatedCommits    []string          `json:"related_commits,omitempty"`

	InvestigationSummary         string  `json:"investigation_summary"`
	InvestigationDurationSeconds float64 `json:"investigation_duration_seconds"`
}
