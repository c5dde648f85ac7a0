package models

import "time"

// TicketResult records the issue created in the external ticket system.
type TicketResult struct {
	TicketKey string    `json:"ticket_key"`
	TicketURL string    `json:"ticket_url"`
	Summary   string    `json:"summary"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// RemediationResult records the proposed fix PR and its merge state.
type RemediationResult struct {
	Success     bool              `json:"success"`
	ActionTaken RecommendedAction `json:"action_taken"`

	BranchName string `json:"branch_name,omitempty"`
	PRNumber   int    `json:"pr_number,omitempty"`
	PRURL      string `json:"pr_url,omitempty"`
	PRMerged   bool   `json:"pr_merged"`

	TargetFile  string `json:"target_file,omitempty"`
	DiffOldLine string `json:"diff_old_line,omitempty"`
	DiffNewLine string `json:"diff_new_line,omitempty"`

	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	ErrorMessage         string  `json:"error_message,omitempty"`
}

// HasPR reports whether a PR reference (number or URL) is present.
func (r *RemediationResult) HasPR() bool {
	if r == nil {
		return false
	}
	return r.PRNumber != 0 || r.PRURL != ""
}

// IsMerged reports whether the PR has been merged.
func (r *RemediationResult) IsMerged() bool {
	return r != nil && r.PRMerged
}
