package models

import "time"

// EventType enumerates the closed set of timeline event types.
type EventType string

const (
	EventIncidentCreated        EventType = "incident_created"
	EventAlertValidated         EventType = "alert_validated"
	EventInvestigationStarted   EventType = "investigation_started"
	EventEvidenceCollected      EventType = "evidence_collected"
	EventRootCauseIdentified    EventType = "root_cause_identified"
	EventTicketCreated          EventType = "ticket_created"
	EventTicketMovedTodo        EventType = "ticket_moved_todo"
	EventTicketMovedInProgress  EventType = "ticket_moved_in_progress"
	EventTicketMovedInReview    EventType = "ticket_moved_in_review"
	EventTicketMovedDone        EventType = "ticket_moved_done"
	EventTicketTransitionFailed EventType = "ticket_transition_failed"
	EventFixGenerated           EventType = "fix_generated"
	EventPRCreated              EventType = "pr_created"
	EventPRMerged               EventType = "pr_merged"
	EventIncidentResolved       EventType = "incident_resolved"
	EventEscalatedToHuman       EventType = "escalated_to_human"
)

// TimelineEvent is one append-only entry in the incident timeline.
type TimelineEvent struct {
	EventType  EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Agent      string         `json:"agent,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMS int            `json:"duration_ms,omitempty"`
}
