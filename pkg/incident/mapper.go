// Package incident projects raw session state into the externally visible
// incident summary and detail. The derived status is a pure function of the
// state record.
package incident

import (
	"time"

	"github.com/resilix/resilix/pkg/models"
)

// DeriveStatusFields computes (status, approval_status, pr_status) from the
// state record. Highest-priority match wins:
//
//	no remediation          → processing / not_created
//	merged PR               → resolved / merged
//	ci_passed + approval    → awaiting_approval or merging
//	pending CI              → processing / pending_ci
func DeriveStatusFields(state *models.IncidentState) (models.IncidentStatus, models.ApprovalStatus, models.PRStatus) {
	remediation := state.RemediationResult
	if remediation == nil {
		return models.StatusProcessing, models.ApprovalNotRequired, models.PRNotCreated
	}

	if !remediation.HasPR() {
		if remediation.Success {
			return models.StatusResolved, models.ApprovalNotRequired, models.PRNotCreated
		}
		return models.StatusProcessing, models.ApprovalNotRequired, models.PRNotCreated
	}

	if remediation.PRMerged {
		return models.StatusResolved, models.ApprovalApproved, models.PRMerged
	}

	required := state.Approval.Required
	approved := state.Approval.Approved

	if state.CIStatus == models.CIPassed {
		switch {
		case required && !approved:
			return models.StatusAwaitingApproval, models.ApprovalPending, models.PRCIPassed
		case required && approved:
			return models.StatusMerging, models.ApprovalApproved, models.PRCIPassed
		default:
			return models.StatusMerging, models.ApprovalNotRequired, models.PRCIPassed
		}
	}

	if required {
		return models.StatusProcessing, models.ApprovalPending, models.PRPendingCI
	}
	return models.StatusProcessing, models.ApprovalNotRequired, models.PRPendingCI
}

// ComputeMTTR returns resolved−created in seconds, or nil when undefined
// (unresolved, or a clock skew put resolution before creation).
func ComputeMTTR(createdAt time.Time, resolvedAt *time.Time) *float64 {
	if resolvedAt == nil {
		return nil
	}
	if resolvedAt.Before(createdAt) {
		return nil
	}
	seconds := resolvedAt.Sub(createdAt).Seconds()
	return &seconds
}

// ToDetail builds the full incident projection from state.
func ToDetail(incidentID string, state *models.IncidentState) *models.IncidentDetail {
	createdAt := extractCreatedAt(state)
	status, approvalStatus, prStatus := DeriveStatusFields(state)

	resolvedAt := state.ResolvedAt
	if resolvedAt == nil && state.RemediationResult.IsMerged() {
		now := time.Now().UTC()
		resolvedAt = &now
	}

	return &models.IncidentDetail{
		IncidentID:        incidentID,
		Status:            status,
		Severity:          extractSeverity(state),
		ServiceName:       extractServiceName(state),
		CreatedAt:         createdAt,
		ResolvedAt:        resolvedAt,
		MTTRSeconds:       ComputeMTTR(createdAt, resolvedAt),
		ApprovalStatus:    approvalStatus,
		PRStatus:          prStatus,
		ValidatedAlert:    state.ValidatedAlert,
		ThoughtSignature:  state.ThoughtSignature,
		JiraTicket:        state.JiraTicket,
		RemediationResult: state.RemediationResult,
		Timeline:          extractTimeline(state, createdAt),
		IntegrationTrace:  state.IntegrationTrace,
	}
}

// ToSummary builds the list-view projection from state.
func ToSummary(incidentID string, state *models.IncidentState) models.IncidentSummary {
	detail := ToDetail(incidentID, state)
	return models.IncidentSummary{
		IncidentID:     detail.IncidentID,
		Status:         detail.Status,
		Severity:       detail.Severity,
		ServiceName:    detail.ServiceName,
		CreatedAt:      detail.CreatedAt,
		MTTRSeconds:    detail.MTTRSeconds,
		ApprovalStatus: detail.ApprovalStatus,
		PRStatus:       detail.PRStatus,
	}
}

func extractSeverity(state *models.IncidentState) models.Severity {
	if state.ValidatedAlert != nil && state.ValidatedAlert.Severity.IsValid() {
		return state.ValidatedAlert.Severity
	}
	return models.SeverityHigh
}

func extractServiceName(state *models.IncidentState) string {
	if state.ValidatedAlert != nil && state.ValidatedAlert.ServiceName != "" {
		return state.ValidatedAlert.ServiceName
	}
	return "unknown-service"
}

func extractCreatedAt(state *models.IncidentState) time.Time {
	if state.ValidatedAlert != nil && !state.ValidatedAlert.TriggeredAt.IsZero() {
		return state.ValidatedAlert.TriggeredAt
	}
	if !state.CreatedAt.IsZero() {
		return state.CreatedAt
	}
	return time.Now().UTC()
}

// extractTimeline returns the persisted timeline, or synthesizes one for
// legacy records that predate timeline persistence.
func extractTimeline(state *models.IncidentState, createdAt time.Time) []models.TimelineEvent {
	if len(state.Timeline) > 0 {
		return state.Timeline
	}

	synthesized := []models.TimelineEvent{{
		EventType: models.EventIncidentCreated,
		Timestamp: createdAt,
		Agent:     "System",
		Details:   map[string]any{"source": "synthesized"},
	}}

	if state.ValidatedAlert != nil {
		synthesized = append(synthesized, models.TimelineEvent{
			EventType: models.EventAlertValidated, Timestamp: createdAt, Agent: "Sentinel",
		})
	}
	if state.ThoughtSignature != nil {
		synthesized = append(synthesized, models.TimelineEvent{
			EventType: models.EventRootCauseIdentified, Timestamp: createdAt, Agent: "Sherlock",
		})
	}
	if state.JiraTicket != nil {
		synthesized = append(synthesized, models.TimelineEvent{
			EventType: models.EventTicketCreated, Timestamp: createdAt, Agent: "Administrator",
		})
	}
	if state.RemediationResult.HasPR() {
		synthesized = append(synthesized, models.TimelineEvent{
			EventType: models.EventPRCreated, Timestamp: createdAt, Agent: "Mechanic",
		})
	}
	if state.RemediationResult.IsMerged() {
		synthesized = append(synthesized,
			models.TimelineEvent{EventType: models.EventPRMerged, Timestamp: createdAt, Agent: "Mechanic"},
			models.TimelineEvent{EventType: models.EventIncidentResolved, Timestamp: createdAt, Agent: "System"},
		)
	}
	return synthesized
}
