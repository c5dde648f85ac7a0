package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CIStatus tracks the continuous-integration gate on the remediation PR.
type CIStatus string

const (
	CIPending CIStatus = "pending"
	CIPassed  CIStatus = "ci_passed"
)

// ReviewStatus tracks the code-owner review gate.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
)

// Approval records whether a human must (and did) approve the merge.
type Approval struct {
	Required   bool       `json:"required"`
	Approved   bool       `json:"approved"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// GateSnapshot is the merge-gate policy captured into state at incident
// creation and refreshed at each approval.
type GateSnapshot struct {
	RequireCIPass          bool   `json:"require_ci_pass"`
	RequireCodeownerReview bool   `json:"require_codeowner_review"`
	MergeMethod            string `json:"merge_method"`
}

// IncidentState is the durable per-incident record kept by the session store.
// The raw alert stays an opaque structured payload; every later stage writes
// a typed record. All writes to the store are whole-record.
type IncidentState struct {
	IncidentID string         `json:"incident_id"`
	RawAlert   map[string]any `json:"raw_alert,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`

	ValidatedAlert    *ValidatedAlert    `json:"validated_alert,omitempty"`
	ThoughtSignature  *ThoughtSignature  `json:"thought_signature,omitempty"`
	JiraTicket        *TicketResult      `json:"jira_ticket,omitempty"`
	RemediationResult *RemediationResult `json:"remediation_result,omitempty"`

	Approval              Approval      `json:"approval"`
	Policy                *GateSnapshot `json:"policy,omitempty"`
	CIStatus              CIStatus      `json:"ci_status"`
	CodeownerReviewStatus ReviewStatus  `json:"codeowner_review_status"`

	IntegrationTrace map[string]any  `json:"integration_trace,omitempty"`
	Timeline         []TimelineEvent `json:"timeline"`
}

// Clone deep-copies the state via a JSON round-trip so in-flight mutation
// cannot bleed across store reads. Panics only on marshaling bugs in the
// struct definitions themselves.
func (s *IncidentState) Clone() *IncidentState {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("incident state not marshalable: %v", err))
	}
	var out IncidentState
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("incident state not unmarshalable: %v", err))
	}
	return &out
}

// Trace returns the integration trace map, allocating it on first use.
func (s *IncidentState) Trace() map[string]any {
	if s.IntegrationTrace == nil {
		s.IntegrationTrace = map[string]any{}
	}
	return s.IntegrationTrace
}

// AppendEvent appends a timeline event stamped with the current time.
func (s *IncidentState) AppendEvent(eventType EventType, agent string, details map[string]any) {
	s.Timeline = append(s.Timeline, TimelineEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Agent:     agent,
		Details:   details,
	})
}
