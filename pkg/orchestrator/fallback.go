package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/resilix/resilix/pkg/models"
	"github.com/resilix/resilix/pkg/triage"
)

// Deterministic fallback builders. When the reasoning runner is unavailable
// the pipeline still needs a validated alert and a signature; Sentinel
// supplies the former and the signal mix drives the latter.

// buildFallbackOutput synthesizes the signature-stage output from the raw
// payload alone.
func buildFallbackOutput(ctx context.Context, payload map[string]any, incidentID string) (*RunnerOutput, error) {
	validated, _, err := triage.EvaluateAlert(ctx, payload, incidentID, nil)
	if err != nil {
		return nil, fmt.Errorf("fallback triage: %w", err)
	}
	signature := buildSignatureFromSignals(incidentID, validated, payload)
	return &RunnerOutput{ValidatedAlert: validated, ThoughtSignature: signature}, nil
}

// buildSignatureFromSignals maps the detected signal mix to a root-cause
// category and remediation action.
func buildSignatureFromSignals(incidentID string, validated *models.ValidatedAlert, payload map[string]any) *models.ThoughtSignature {
	hits := validated.Enrichment.SignalScores
	category, action := classifySignals(hits)

	targetFile := stringOr(payload["target_file"], defaultTargetFile(category))
	repository := stringOr(payload["repository"], "acme/"+validated.ServiceName)

	now := time.Now().UTC()
	evidence := make([]models.Evidence, 0, len(hits))
	for _, signal := range []string{
		triage.SignalErrorRateHigh,
		triage.SignalHealthFlapping,
		triage.SignalBacklogGrowth,
		triage.SignalDependencyTimeout,
	} {
		count, ok := hits[signal]
		if !ok || count == 0 {
			continue
		}
		evidence = append(evidence, models.Evidence{
			Source:    "logs",
			Timestamp: now,
			Content:   fmt.Sprintf("Signal %s observed %d time(s) in alert and log payload", signal, count),
			Relevance: "Deterministic signal extraction",
		})
	}

	return &models.ThoughtSignature{
		IncidentID:                   incidentID,
		RootCause:                    rootCauseText(category, validated.ServiceName),
		RootCauseCategory:            category,
		EvidenceChain:                evidence,
		AffectedServices:             []string{validated.ServiceName},
		ConfidenceScore:              validated.Enrichment.DeterministicConfidence,
		RecommendedAction:            action,
		TargetRepository:             repository,
		TargetFile:                   targetFile,
		InvestigationSummary:         validated.TriageReason,
		InvestigationDurationSeconds: 0.1,
	}
}

// classifySignals applies the category mapping in priority order. The
// flapping+backlog combination points at resolver or queue configuration,
// not code.
func classifySignals(hits map[string]int) (models.RootCauseCategory, models.RecommendedAction) {
	switch {
	case hits[triage.SignalHealthFlapping] > 0 && hits[triage.SignalBacklogGrowth] > 0:
		return models.CategoryConfigError, models.ActionConfigChange
	case hits[triage.SignalDependencyTimeout] > 0:
		return models.CategoryDependencyFailure, models.ActionConfigChange
	case hits[triage.SignalErrorRateHigh] > 0:
		return models.CategoryCodeBug, models.ActionFixCode
	default:
		return models.CategoryResourceExhaustion, models.ActionScaleUp
	}
}

func defaultTargetFile(category models.RootCauseCategory) string {
	switch category {
	case models.CategoryConfigError:
		return "infra/dns/coredns-config.yaml"
	case models.CategoryDependencyFailure:
		return "infra/dependencies.yaml"
	case models.CategoryCodeBug:
		return "src/app/handlers.py"
	default:
		return "infra/dependencies.yaml"
	}
}

func rootCauseText(category models.RootCauseCategory, serviceName string) string {
	switch category {
	case models.CategoryConfigError:
		return fmt.Sprintf("DNS resolver misconfiguration causing health flapping and request backlog in %s", serviceName)
	case models.CategoryDependencyFailure:
		return fmt.Sprintf("Upstream dependency timeouts destabilizing %s", serviceName)
	case models.CategoryCodeBug:
		return fmt.Sprintf("Elevated error rate from a code defect in %s request handling", serviceName)
	default:
		return fmt.Sprintf("Resource exhaustion degrading %s throughput", serviceName)
	}
}

// priorityForSeverity maps triage severity to ticket priority.
func priorityForSeverity(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "P1"
	case models.SeverityHigh:
		return "P2"
	case models.SeverityMedium:
		return "P3"
	default:
		return "P4"
	}
}
