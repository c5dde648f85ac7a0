// Package orchestrator runs the per-incident pipeline: signature stage
// (external reasoning runner or deterministic fallback) followed by the
// integration stage (ticket, transition cascade, PR, merge gate). Failures
// are contained and recorded; the pipeline never leaves an incident without
// a persisted outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/models"
	"github.com/resilix/resilix/pkg/policy"
	"github.com/resilix/resilix/pkg/providers"
	"github.com/resilix/resilix/pkg/session"
)

// Execution paths recorded in the integration trace.
const (
	PathADK                = "adk"
	PathADKRecovered       = "adk_recovered"
	PathADKUnavailable     = "adk_unavailable"
	PathMockRunner         = "mock_runner"
	PathDirectIntegrations = "direct_integrations"
)

// Execution reasons recorded alongside the path.
const (
	ReasonADKCompleted           = "adk_completed"
	ReasonADKRuntimeException    = "adk_runtime_exception"
	ReasonMissingToolRecovered   = "adk_missing_tool_recovered"
	ReasonMissingAPIKey          = "missing_or_placeholder_api_key"
	ReasonMockFlagEnabled        = "mock_flag_enabled"
	ReasonBackgroundException    = "webhook_background_exception"
	ReasonAcceptedForProcessing  = "accepted_for_processing"
	ReasonMissingExecutionReason = "missing_execution_reason"
)

// Orchestrator drives the incident pipeline against the session store and
// the resolved providers.
type Orchestrator struct {
	cfg    *config.Settings
	store  session.Store
	runner SignatureRunner
	logger *slog.Logger
}

// New creates the orchestrator. A nil runner selects the remote ADK runner
// from configuration.
func New(cfg *config.Settings, store session.Store, runner SignatureRunner) *Orchestrator {
	if runner == nil && cfg.ADKRunnerURL != "" {
		runner = NewADKRunner(cfg.ADKRunnerURL, cfg.GeminiAPIKey, cfg.ADKTimeout)
	}
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		runner: runner,
		logger: slog.Default(),
	}
}

// ProcessIncident runs the full pipeline for one incident and persists the
// outcome. The initial state must already exist in the store.
func (o *Orchestrator) ProcessIncident(ctx context.Context, incidentID string, payload map[string]any) {
	state, err := o.store.Get(ctx, incidentID)
	if err != nil {
		o.logger.Error("Incident state missing before pipeline", "incident_id", incidentID, "error", err)
		return
	}

	if err := o.runPipeline(ctx, state, payload); err != nil {
		o.logger.Error("Pipeline failed", "incident_id", incidentID, "error", err)
		o.recordPipelineFailure(state, err)
	}
	o.finalizeTrace(state)

	if err := o.store.Save(ctx, incidentID, state); err != nil {
		o.logger.Error("Failed to persist incident state", "incident_id", incidentID, "error", err)
	}
}

func (o *Orchestrator) runPipeline(ctx context.Context, state *models.IncidentState, payload map[string]any) error {
	output, path, reason, adkErr := o.runSignatureStage(ctx, state.IncidentID, payload)

	trace := state.Trace()
	trace["execution_path"] = path
	trace["execution_reason"] = reason
	trace["runner_policy"] = string(o.cfg.RunnerPolicy)
	trace["fallback_used"] = path == PathADKUnavailable || path == PathADKRecovered
	if adkErr != nil {
		trace["adk_error"] = adkErr.Error()
	}

	state.ValidatedAlert = output.ValidatedAlert
	state.AppendEvent(models.EventAlertValidated, "Sentinel", map[string]any{
		"severity":   string(output.ValidatedAlert.Severity),
		"actionable": output.ValidatedAlert.IsActionable,
	})
	state.AppendEvent(models.EventInvestigationStarted, "Sherlock", nil)
	if n := len(output.ThoughtSignature.EvidenceChain); n > 0 {
		state.AppendEvent(models.EventEvidenceCollected, "Sherlock", map[string]any{"evidence_count": n})
	}
	state.ThoughtSignature = output.ThoughtSignature
	state.AppendEvent(models.EventRootCauseIdentified, "Sherlock", map[string]any{
		"category":   string(output.ThoughtSignature.RootCauseCategory),
		"confidence": output.ThoughtSignature.ConfidenceScore,
	})

	return o.runIntegrationStage(ctx, state, payload)
}

// runSignatureStage resolves the reasoning path under the adk_only policy.
// Mock providers and a missing API key are both rejected up front; runner
// failures degrade to the deterministic fallback without entering mock mode.
func (o *Orchestrator) runSignatureStage(ctx context.Context, incidentID string, payload map[string]any) (*RunnerOutput, string, string, error) {
	if o.cfg.EffectiveUseMockProviders() {
		output, _ := MockRunner{}.Run(ctx, payload, incidentID)
		return output, PathMockRunner, ReasonMockFlagEnabled, nil
	}

	if !apiKeyUsable(o.cfg.GeminiAPIKey) || o.runner == nil {
		output, err := buildFallbackOutput(ctx, payload, incidentID)
		if err != nil {
			output = emptyOutput(incidentID)
		}
		return output, PathADKUnavailable, ReasonMissingAPIKey, nil
	}

	output, err := o.runner.Run(ctx, payload, incidentID)
	if err == nil && output != nil && output.ValidatedAlert != nil && output.ThoughtSignature != nil {
		return output, PathADK, ReasonADKCompleted, nil
	}
	if err == nil {
		err = fmt.Errorf("runner returned incomplete output")
	}

	fallback, fbErr := buildFallbackOutput(ctx, payload, incidentID)
	if fbErr != nil {
		fallback = emptyOutput(incidentID)
	}
	if IsMissingToolError(err) {
		o.logger.Warn("Runner missing tool; recovering via direct integrations",
			"incident_id", incidentID, "error", err)
		return fallback, PathADKRecovered, ReasonMissingToolRecovered, err
	}
	o.logger.Warn("Runner unavailable; using deterministic fallback",
		"incident_id", incidentID, "error", err)
	return fallback, PathADKUnavailable, ReasonADKRuntimeException, err
}

// runIntegrationStage executes the deterministic provider steps: ticket,
// TODO → IN_PROGRESS cascade, PR, gate fetch, IN_REVIEW. Transition misses
// are recorded and skipped; provider failures abort with a failed
// remediation record.
func (o *Orchestrator) runIntegrationStage(ctx context.Context, state *models.IncidentState, payload map[string]any) error {
	trace := state.Trace()

	ticketProvider, ticketBackend, err := providers.GetTicketProvider(o.cfg)
	if err != nil {
		trace["ticket_provider"] = "unavailable"
		return fmt.Errorf("resolve ticket provider: %w", err)
	}
	codeProvider, codeBackend, err := providers.GetCodeProvider(o.cfg)
	if err != nil {
		trace["code_provider"] = "unavailable"
		return fmt.Errorf("resolve code provider: %w", err)
	}
	trace["ticket_provider"] = ticketBackend
	trace["code_provider"] = codeBackend

	signature := state.ThoughtSignature
	validated := state.ValidatedAlert

	summary := fmt.Sprintf("[AUTO] %s: %s", signature.RootCauseCategory, signature.RootCause)
	ticket, err := ticketProvider.CreateIncidentTicket(ctx, providers.TicketRequest{
		IncidentID:  state.IncidentID,
		Summary:     summary,
		Description: ticketDescription(signature, validated),
		Priority:    priorityForSeverity(validated.Severity),
	})
	if err != nil {
		trace["provider_error"] = err.Error()
		return fmt.Errorf("create incident ticket: %w", err)
	}
	state.JiraTicket = ticket
	state.AppendEvent(models.EventTicketCreated, "Administrator", map[string]any{
		"ticket_key": ticket.TicketKey,
	})

	o.transition(ctx, state, ticketProvider, o.cfg.JiraStatusTodo, models.EventTicketMovedTodo)
	o.transition(ctx, state, ticketProvider, o.cfg.JiraStatusInProgress, models.EventTicketMovedInProgress)

	repository := stringOr(payload["repository"], signature.TargetRepository)
	targetFile := stringOr(payload["target_file"], signature.TargetFile)

	remediation, err := codeProvider.CreateRemediationPR(ctx, providers.RemediationRequest{
		IncidentID: state.IncidentID,
		Repository: repository,
		TargetFile: targetFile,
		Action:     signature.RecommendedAction,
		Summary:    summary,
		Context:    map[string]any{"root_cause_category": string(signature.RootCauseCategory)},
	})
	if err != nil {
		trace["provider_error"] = err.Error()
		state.RemediationResult = &models.RemediationResult{
			Success:      false,
			ActionTaken:  signature.RecommendedAction,
			TargetFile:   targetFile,
			ErrorMessage: err.Error(),
		}
		state.AppendEvent(models.EventEscalatedToHuman, "Mechanic", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("create remediation PR: %w", err)
	}
	state.RemediationResult = remediation
	state.AppendEvent(models.EventFixGenerated, "Mechanic", map[string]any{
		"target_file": remediation.TargetFile,
		"action":      string(remediation.ActionTaken),
	})
	state.AppendEvent(models.EventPRCreated, "Mechanic", map[string]any{
		"pr_number": remediation.PRNumber,
		"pr_url":    remediation.PRURL,
	})

	gate, err := codeProvider.GetMergeGateStatus(ctx, repository, remediation.PRNumber)
	if err != nil {
		trace["provider_error"] = err.Error()
		o.logger.Warn("Merge gate fetch failed; leaving CI pending",
			"incident_id", state.IncidentID, "error", err)
	} else {
		trace["merge_gate"] = gate.Details
		if gate.CIPassed {
			state.CIStatus = models.CIPassed
		}
		if gate.CodeownerReviewed {
			state.CodeownerReviewStatus = models.ReviewApproved
		}
	}

	o.transition(ctx, state, ticketProvider, o.cfg.JiraStatusInReview, models.EventTicketMovedInReview)

	if !state.Approval.Required {
		o.autoMerge(ctx, state, ticketProvider, codeProvider, repository)
	}
	return nil
}

// autoMerge merges the PR at the end of the pipeline when no human approval
// is required. Gate predicates still apply; an ineligible decision or a
// refused merge leaves the incident awaiting its gates.
func (o *Orchestrator) autoMerge(ctx context.Context, state *models.IncidentState, ticketProvider providers.TicketProvider, codeProvider providers.CodeProvider, repository string) {
	trace := state.Trace()

	decision := policy.EvaluateMergeEligibility(state, o.cfg.Gate)
	trace["auto_merge_decision"] = map[string]any{
		"eligible": decision.Eligible,
		"code":     decision.Code,
	}
	if !decision.Eligible {
		o.logger.Info("Auto-merge skipped",
			"incident_id", state.IncidentID, "code", decision.Code)
		return
	}

	merged, err := codeProvider.MergePR(ctx, repository,
		state.RemediationResult.PRNumber, string(o.cfg.Gate.MergeMethod))
	if err != nil || !merged {
		reason := policy.CodeMergeFailed
		if err != nil {
			trace["provider_error"] = err.Error()
		}
		o.logger.Warn("Auto-merge refused by code provider",
			"incident_id", state.IncidentID, "reason", reason, "error", err)
		return
	}

	now := time.Now().UTC()
	state.RemediationResult.PRMerged = true
	state.ResolvedAt = &now

	o.transition(ctx, state, ticketProvider, o.cfg.JiraStatusDone, models.EventTicketMovedDone)
	state.AppendEvent(models.EventPRMerged, "Mechanic", map[string]any{
		"pr_number": state.RemediationResult.PRNumber,
		"auto":      true,
	})
	state.AppendEvent(models.EventIncidentResolved, "System", nil)
}

// transition applies one ticket status move, recording the result in the
// jira_transitions trace. A miss appends ticket_transition_failed and the
// pipeline continues.
func (o *Orchestrator) transition(ctx context.Context, state *models.IncidentState, provider providers.TicketProvider, targetStatus string, event models.EventType) {
	if state.JiraTicket == nil {
		return
	}
	result, err := provider.TransitionTicket(ctx, state.JiraTicket.TicketKey, targetStatus)
	if err != nil {
		result = providers.TransitionResult{OK: false, ToStatus: targetStatus, Reason: err.Error()}
	}

	trace := state.Trace()
	entries, _ := trace["jira_transitions"].([]any)
	trace["jira_transitions"] = append(entries, map[string]any{
		"target_status":         targetStatus,
		"ok":                    result.OK,
		"from_status":           result.FromStatus,
		"to_status":             result.ToStatus,
		"applied_transition_id": result.AppliedTransitionID,
		"reason":                result.Reason,
	})

	if result.OK {
		state.JiraTicket.Status = result.ToStatus
		state.AppendEvent(event, "Administrator", map[string]any{
			"ticket_key": state.JiraTicket.TicketKey,
			"to_status":  result.ToStatus,
		})
		return
	}
	state.AppendEvent(models.EventTicketTransitionFailed, "Administrator", map[string]any{
		"ticket_key":    state.JiraTicket.TicketKey,
		"target_status": targetStatus,
		"reason":        result.Reason,
	})
}

// TransitionDone moves the ticket to its terminal status after a successful
// merge. Called from the approve-merge handler.
func (o *Orchestrator) TransitionDone(ctx context.Context, state *models.IncidentState) {
	provider, _, err := providers.GetTicketProvider(o.cfg)
	if err != nil {
		o.logger.Warn("Ticket provider unavailable for done transition",
			"incident_id", state.IncidentID, "error", err)
		return
	}
	o.transition(ctx, state, provider, o.cfg.JiraStatusDone, models.EventTicketMovedDone)
}

// recordPipelineFailure leaves the incident with a failed remediation record
// instead of a half-written state.
func (o *Orchestrator) recordPipelineFailure(state *models.IncidentState, err error) {
	trace := state.Trace()
	if _, ok := trace["execution_path"]; !ok {
		trace["execution_path"] = PathADKUnavailable
		trace["execution_reason"] = ReasonBackgroundException
	}
	trace["pipeline_error"] = err.Error()
	if state.RemediationResult == nil {
		state.RemediationResult = &models.RemediationResult{
			Success:      false,
			ActionTaken:  models.ActionFixCode,
			ErrorMessage: err.Error(),
		}
	}
}

// finalizeTrace guarantees the execution-path contract fields exist whatever
// route the pipeline took.
func (o *Orchestrator) finalizeTrace(state *models.IncidentState) {
	trace := state.Trace()
	setDefault(trace, "ticket_provider", "unknown")
	setDefault(trace, "code_provider", "unknown")
	setDefault(trace, "fallback_used", false)
	setDefault(trace, "execution_path", PathADKUnavailable)
	setDefault(trace, "execution_reason", ReasonMissingExecutionReason)
	setDefault(trace, "runner_policy", string(o.cfg.RunnerPolicy))
	setDefault(trace, "service_revision", os.Getenv("K_REVISION"))
	setDefault(trace, "service_service", os.Getenv("K_SERVICE"))
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func ticketDescription(signature *models.ThoughtSignature, validated *models.ValidatedAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated incident analysis for %s.\n\n", validated.ServiceName)
	fmt.Fprintf(&b, "Root cause (%s, confidence %.2f): %s\n",
		signature.RootCauseCategory, signature.ConfidenceScore, signature.RootCause)
	fmt.Fprintf(&b, "Recommended action: %s\n", signature.RecommendedAction)
	if signature.TargetFile != "" {
		fmt.Fprintf(&b, "Target: %s (%s)\n", signature.TargetFile, signature.TargetRepository)
	}
	if signature.InvestigationSummary != "" {
		fmt.Fprintf(&b, "\n%s", signature.InvestigationSummary)
	}
	return b.String()
}

// apiKeyUsable rejects empty and placeholder API keys.
func apiKeyUsable(key string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(key))
	return trimmed != "" && trimmed != "placeholder" && !strings.HasPrefix(trimmed, "placeholder_")
}

func emptyOutput(incidentID string) *RunnerOutput {
	now := time.Now().UTC()
	return &RunnerOutput{
		ValidatedAlert: &models.ValidatedAlert{
			AlertID:      incidentID,
			IsActionable: true,
			Severity:     models.SeverityHigh,
			ServiceName:  "unknown-service",
			ErrorType:    "UnknownAlert",
			TriggeredAt:  now,
		},
		ThoughtSignature: &models.ThoughtSignature{
			IncidentID:        incidentID,
			RootCause:         "Unclassified incident",
			RootCauseCategory: models.CategoryResourceExhaustion,
			RecommendedAction: models.ActionScaleUp,
			TargetFile:        defaultTargetFile(models.CategoryResourceExhaustion),
			TargetRepository:  "acme/unknown-service",
		},
	}
}
