// Package providers defines the ticket and code provider capability surface,
// the api/mock router, and the readiness preflight. Providers are the only
// components that talk to external issue trackers and source hosting.
package providers

import (
	"context"

	"github.com/resilix/resilix/pkg/models"
)

// TicketRequest carries the fields needed to open an incident ticket.
type TicketRequest struct {
	IncidentID  string
	Summary     string
	Description string
	Priority    string
}

// TransitionResult is the typed outcome of a ticket transition attempt.
// Transition misses are results, not errors, unless strict mode is on.
type TransitionResult struct {
	OK                  bool   `json:"ok"`
	FromStatus          string `json:"from_status,omitempty"`
	ToStatus            string `json:"to_status,omitempty"`
	AppliedTransitionID string `json:"applied_transition_id,omitempty"`
	Reason              string `json:"reason,omitempty"`
}

// TicketProvider creates and transitions issue-tracker tickets.
type TicketProvider interface {
	CreateIncidentTicket(ctx context.Context, req TicketRequest) (*models.TicketResult, error)
	TransitionTicket(ctx context.Context, ticketKey, targetStatus string) (TransitionResult, error)
}

// RemediationRequest carries the fields needed to open a remediation PR.
type RemediationRequest struct {
	IncidentID string
	Repository string
	TargetFile string
	Action     models.RecommendedAction
	Summary    string
	Context    map[string]any
}

// MergeGateStatus reports the CI and review gates on a PR. Details are kept
// verbatim for the integration trace.
type MergeGateStatus struct {
	CIPassed          bool           `json:"ci_passed"`
	CodeownerReviewed bool           `json:"codeowner_reviewed"`
	Details           map[string]any `json:"details"`
}

// CodeProvider creates remediation PRs and drives them through the merge gate.
type CodeProvider interface {
	CreateRemediationPR(ctx context.Context, req RemediationRequest) (*models.RemediationResult, error)
	GetMergeGateStatus(ctx context.Context, repository string, prNumber int) (MergeGateStatus, error)
	MergePR(ctx context.Context, repository string, prNumber int, method string) (bool, error)
}
