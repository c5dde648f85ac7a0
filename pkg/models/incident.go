package models

import "time"

// IncidentStatus is the externally visible lifecycle status, derived purely
// from the state record.
type IncidentStatus string

const (
	StatusProcessing       IncidentStatus = "processing"
	StatusAwaitingApproval IncidentStatus = "awaiting_approval"
	StatusMerging          IncidentStatus = "merging"
	StatusResolved         IncidentStatus = "resolved"
	StatusFailed           IncidentStatus = "failed"
)

// ApprovalStatus is the derived human-approval sub-state.
type ApprovalStatus string

const (
	ApprovalPending     ApprovalStatus = "pending"
	ApprovalApproved    ApprovalStatus = "approved"
	ApprovalNotRequired ApprovalStatus = "not_required"
)

// PRStatus is the derived pull-request sub-state.
type PRStatus string

const (
	PRNotCreated PRStatus = "not_created"
	PRPendingCI  PRStatus = "pending_ci"
	PRCIPassed   PRStatus = "ci_passed"
	PRMerged     PRStatus = "merged"
)

// IncidentSummary is the list-view projection of an incident.
type IncidentSummary struct {
	IncidentID     string         `json:"incident_id"`
	Status         IncidentStatus `json:"status"`
	Severity       Severity       `json:"severity"`
	ServiceName    string         `json:"service_name"`
	CreatedAt      time.Time      `json:"created_at"`
	MTTRSeconds    *float64       `json:"mttr_seconds,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	PRStatus       PRStatus       `json:"pr_status"`
}

// IncidentDetail is the full projection of an incident.
type IncidentDetail struct {
	IncidentID     string         `json:"incident_id"`
	Status         IncidentStatus `json:"status"`
	Severity       Severity       `json:"severity"`
	ServiceName    string         `json:"service_name"`
	CreatedAt      time.Time      `json:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
	MTTRSeconds    *float64       `json:"mttr_seconds,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	PRStatus       PRStatus       `json:"pr_status"`

	ValidatedAlert    *ValidatedAlert    `json:"validated_alert,omitempty"`
	ThoughtSignature  *ThoughtSignature  `json:"thought_signature,omitempty"`
	JiraTicket        *TicketResult      `json:"jira_ticket,omitempty"`
	RemediationResult *RemediationResult `json:"remediation_result,omitempty"`

	Timeline         []TimelineEvent `json:"timeline"`
	IntegrationTrace map[string]any  `json:"integration_trace,omitempty"`
}

// IncidentList wraps the paginated summary listing.
type IncidentList struct {
	Items []IncidentSummary `json:"items"`
}
