// Package policy implements the merge-gate policy engine: pure functions over
// incident state that decide when a PR may be approved and merged. Control
// flow uses typed decision records, not errors; only the boundary converts
// rejections into HTTP responses.
package policy

import (
	"time"

	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/models"
)

// Rejection codes returned in Decision.Code.
const (
	CodeEligible                = "eligible"
	CodePRNotCreated            = "pr_not_created"
	CodeAlreadyMerged           = "already_merged"
	CodeCINotPassed             = "ci_not_passed"
	CodeCodeownerReviewRequired = "codeowner_review_required"
	CodeApprovalNotRequired     = "approval_not_required"
	CodeAlreadyApproved         = "already_approved"
	CodeApprovalPending         = "approval_pending"
	CodeMergeFailed             = "merge_failed"
)

// Decision is the policy engine's verdict.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func reject(code, message string) Decision {
	return Decision{Eligible: false, Code: code, Message: message}
}

// EvaluateApprovalRequest decides whether an explicit human approval request
// may proceed. Gate predicates come from the runtime policy, not the
// snapshot, so operator changes take effect immediately.
func EvaluateApprovalRequest(state *models.IncidentState, gate config.GatePolicy) Decision {
	remediation := state.RemediationResult
	if !remediation.HasPR() {
		return reject(CodePRNotCreated, "PR not created")
	}
	if remediation.IsMerged() {
		return reject(CodeAlreadyMerged, "PR already merged")
	}
	if gate.RequireCIPass && state.CIStatus != models.CIPassed {
		return reject(CodeCINotPassed, "Merge approval requires CI passed")
	}
	if gate.RequireCodeownerReview && state.CodeownerReviewStatus != models.ReviewApproved {
		return reject(CodeCodeownerReviewRequired, "Merge approval requires code-owner review")
	}
	if !state.Approval.Required {
		return reject(CodeApprovalNotRequired, "Approval is not required for this incident")
	}
	if state.Approval.Approved {
		return reject(CodeAlreadyApproved, "PR already approved")
	}
	return Decision{Eligible: true, Code: CodeEligible, Message: "PR can be approved and merged"}
}

// EvaluateMergeEligibility decides whether a merge may proceed, including the
// auto-merge path used when approval is not required.
func EvaluateMergeEligibility(state *models.IncidentState, gate config.GatePolicy) Decision {
	remediation := state.RemediationResult
	if !remediation.HasPR() {
		return reject(CodePRNotCreated, "PR not created")
	}
	if remediation.IsMerged() {
		return reject(CodeAlreadyMerged, "PR already merged")
	}
	if gate.RequireCIPass && state.CIStatus != models.CIPassed {
		return reject(CodeCINotPassed, "CI checks are not complete")
	}
	if gate.RequireCodeownerReview && state.CodeownerReviewStatus != models.ReviewApproved {
		return reject(CodeCodeownerReviewRequired, "Code-owner review is not complete")
	}
	if state.Approval.Required && !state.Approval.Approved {
		return reject(CodeApprovalPending, "Manual approval is pending")
	}
	return Decision{Eligible: true, Code: CodeEligible, Message: "PR merge is allowed"}
}

// ApplyApprovalAndMerge stamps the approval, marks the PR merged, and records
// the resolution time. pr_merged never transitions back to false after this.
func ApplyApprovalAndMerge(state *models.IncidentState) {
	now := time.Now().UTC()
	state.Approval.Approved = true
	state.Approval.ApprovedAt = &now

	if state.RemediationResult == nil {
		state.RemediationResult = &models.RemediationResult{
			Success:     true,
			ActionTaken: models.ActionFixCode,
		}
	}
	state.RemediationResult.PRMerged = true
	state.ResolvedAt = &now
}
