// Package models holds the typed domain records shared across the pipeline:
// triage output, root-cause signatures, ticket and PR results, timeline
// events, and the durable per-incident state container.
package models

import "time"

// Severity classifies how bad an incident is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid checks if the severity is a known value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Rank orders severities for comparison; higher is stricter. Unknown
// severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AlertEnrichment carries the deterministic triage diagnostics attached to a
// validated alert.
type AlertEnrichment struct {
	SignalScores            map[string]int `json:"signal_scores"`
	WeightedScore           float64        `json:"weighted_score"`
	UsedLLMFallback         bool           `json:"used_llm_fallback"`
	DeterministicConfidence float64        `json:"deterministic_confidence"`
}

// ValidatedAlert is the Sentinel triage result.
type ValidatedAlert struct {
	AlertID           string          `json:"alert_id"`
	IsActionable      bool            `json:"is_actionable"`
	Severity          Severity        `json:"severity"`
	ServiceName       string          `json:"service_name"`
	ErrorType         string          `json:"error_type"`
	ErrorRate         float64         `json:"error_rate"`
	AffectedEndpoints []string        `json:"affected_endpoints"`
	TriggeredAt       time.Time       `json:"triggered_at"`
	Enrichment        AlertEnrichment `json:"enrichment"`
	TriageReason      string          `json:"triage_reason"`
}
