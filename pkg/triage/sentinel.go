// Package triage implements Sentinel, the deterministic alert-triage scorer.
// Identical payloads always produce identical severity, signal scores, and
// weighted score; a fallback hook handles ambiguous low-signal inputs.
package triage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/resilix/resilix/pkg/models"
)

// FallbackInput is handed to the ambiguity fallback hook.
type FallbackInput struct {
	IncidentID  string         `json:"incident_id"`
	SignalHits  map[string]int `json:"signal_hits"`
	Score       float64        `json:"score"`
	Labels      map[string]any `json:"labels"`
	Annotations map[string]any `json:"annotations"`
}

// FallbackResult is the fallback hook's triage verdict. Nil pointer fields
// leave the deterministic value in place.
type FallbackResult struct {
	Severity        string   `json:"severity,omitempty"`
	IsActionable    *bool    `json:"is_actionable,omitempty"`
	TriageReason    string   `json:"triage_reason,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

// Fallback resolves ambiguous alerts that deterministic scoring cannot.
// Typically backed by an LLM; treated as opaque here.
type Fallback func(ctx context.Context, input FallbackInput) (*FallbackResult, error)

// Trace captures the scoring diagnostics for the integration trace.
type Trace struct {
	SignalScores            map[string]int `json:"signal_scores"`
	WeightedScore           float64        `json:"weighted_score"`
	Ambiguous               bool           `json:"ambiguous"`
	UsedLLMFallback         bool           `json:"used_llm_fallback"`
	DeterministicConfidence float64        `json:"deterministic_confidence"`
}

// ambiguityThreshold is the weighted score below which the fallback hook is
// consulted.
const ambiguityThreshold = 2.5

// EvaluateAlert runs deterministic triage over a webhook payload.
func EvaluateAlert(ctx context.Context, payload map[string]any, incidentID string, fallback Fallback) (*models.ValidatedAlert, Trace, error) {
	alert := firstAlert(payload)
	labels := asMap(alert["labels"])
	annotations := asMap(alert["annotations"])

	hits := collectSignalHits(payload)
	score := scoreSignals(hits)
	confidence := math.Min(0.95, 0.45+score*0.06)
	ambiguous := score < ambiguityThreshold || len(hits) == 0

	severity := severityFromScore(score, asString(labels["severity"]))
	status := asString(payload["status"])
	if status == "" {
		status = "firing"
	}
	isActionable := score >= 2 || strings.EqualFold(status, "firing")
	triageReason := describeSignals(hits)
	usedFallback := false

	if ambiguous && fallback != nil {
		result, err := fallback(ctx, FallbackInput{
			IncidentID:  incidentID,
			SignalHits:  hits,
			Score:       score,
			Labels:      labels,
			Annotations: annotations,
		})
		if err != nil {
			return nil, Trace{}, fmt.Errorf("triage fallback failed: %w", err)
		}
		if result != nil {
			usedFallback = true
			if result.Severity != "" {
				if fb := models.Severity(result.Severity); fb.IsValid() {
					severity = fb
				} else {
					severity = models.SeverityHigh
				}
			}
			if result.IsActionable != nil {
				isActionable = *result.IsActionable
			}
			if result.TriageReason != "" {
				triageReason = result.TriageReason
			}
			if result.ConfidenceScore != nil {
				confidence = *result.ConfidenceScore
			}
		}
	}

	errorType := asString(labels["alertname"])
	if errorType == "" {
		errorType = "UnknownAlert"
	}
	serviceName := asString(labels["service"])
	if serviceName == "" {
		serviceName = "unknown-service"
	}
	var endpoints []string
	if endpoint := asString(labels["endpoint"]); endpoint != "" {
		endpoints = []string{endpoint}
	}

	validated := &models.ValidatedAlert{
		AlertID:           incidentID,
		IsActionable:      isActionable,
		Severity:          severity,
		ServiceName:       serviceName,
		ErrorType:         errorType,
		ErrorRate:         round3(1.0 + score), // heuristic enrichment, not a semantic field
		AffectedEndpoints: endpoints,
		TriggeredAt:       parseTimestamp(alert["startsAt"]),
		Enrichment: models.AlertEnrichment{
			SignalScores:            hits,
			WeightedScore:           score,
			UsedLLMFallback:         usedFallback,
			DeterministicConfidence: round3(confidence),
		},
		TriageReason: triageReason,
	}
	trace := Trace{
		SignalScores:            hits,
		WeightedScore:           score,
		Ambiguous:               ambiguous,
		UsedLLMFallback:         usedFallback,
		DeterministicConfidence: round3(confidence),
	}
	return validated, trace, nil
}

// severityFromScore derives severity from the weighted score. A label-supplied
// severity is honored only when stricter than the score-derived one.
func severityFromScore(score float64, label string) models.Severity {
	fromScore := models.SeverityLow
	switch {
	case score >= 6:
		fromScore = models.SeverityCritical
	case score >= 4:
		fromScore = models.SeverityHigh
	case score >= 2:
		fromScore = models.SeverityMedium
	}

	fromLabel := models.Severity(strings.ToLower(strings.TrimSpace(label)))
	if !fromLabel.IsValid() {
		return fromScore
	}
	if fromLabel.Rank() > fromScore.Rank() {
		return fromLabel
	}
	return fromScore
}

func describeSignals(hits map[string]int) string {
	if len(hits) == 0 {
		return "No deterministic incident signals were detected."
	}
	names := make([]string, 0, len(hits))
	for name := range hits {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, hits[name]))
	}
	return "Signals detected: " + strings.Join(parts, ", ")
}

func firstAlert(payload map[string]any) map[string]any {
	alerts := asSlice(payload["alerts"])
	if len(alerts) > 0 {
		if first, ok := alerts[0].(map[string]any); ok {
			return first
		}
	}
	return payload
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
