package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/incident"
	"github.com/resilix/resilix/pkg/models"
	"github.com/resilix/resilix/pkg/policy"
	"github.com/resilix/resilix/pkg/providers"
	"github.com/resilix/resilix/pkg/session"
)

const incidentListLimit = 100

// rejectPolicy emits a 409 policy rejection in the detail envelope the API
// contract uses for structured non-2xx bodies.
func rejectPolicy(c *gin.Context, code, message string) {
	c.JSON(http.StatusConflict, gin.H{"detail": gin.H{
		"code":    code,
		"message": message,
	}})
}

// rejectProviderNotReady emits the structured 503 for api-mode providers that
// cannot be constructed from the current configuration.
func rejectProviderNotReady(c *gin.Context, details any) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"detail": gin.H{
		"code":    "provider_not_ready",
		"details": details,
	}})
}

// ListIncidents handles GET /incidents: the most recent summaries, newest
// first.
func (s *Server) ListIncidents(c *gin.Context) {
	items, err := s.store.ListItems(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list incidents"})
		return
	}

	summaries := make([]models.IncidentSummary, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, incident.ToSummary(item.ID, item.State))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if len(summaries) > incidentListLimit {
		summaries = summaries[:incidentListLimit]
	}
	c.JSON(http.StatusOK, models.IncidentList{Items: summaries})
}

// GetIncident handles GET /incidents/:id.
func (s *Server) GetIncident(c *gin.Context) {
	incidentID := c.Param("id")
	state, err := s.store.Get(c.Request.Context(), incidentID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load incident"})
		return
	}
	c.JSON(http.StatusOK, incident.ToDetail(incidentID, state))
}

// ApproveMerge handles POST /incidents/:id/approve-merge. The gate policy is
// re-read from the environment so operator changes apply immediately, the
// gate status is refreshed from the code provider in api mode, and the policy
// engine decides eligibility before the merge call. A code provider that
// cannot be built from configuration is a structured 503, not a policy
// rejection.
func (s *Server) ApproveMerge(c *gin.Context) {
	ctx := c.Request.Context()
	incidentID := c.Param("id")

	state, err := s.store.Get(ctx, incidentID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load incident"})
		return
	}

	codeProvider, _, err := providers.GetCodeProvider(s.cfg)
	if err != nil {
		var cfgErr *providers.ProviderConfigError
		if errors.As(err, &cfgErr) {
			rejectProviderNotReady(c, cfgErr.AsMap())
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve code provider"})
		return
	}

	gate := config.ReloadGatePolicy()
	state.Policy = &models.GateSnapshot{
		RequireCIPass:          gate.RequireCIPass,
		RequireCodeownerReview: gate.RequireCodeownerReview,
		MergeMethod:            string(gate.MergeMethod),
	}

	s.refreshGateStatus(c, codeProvider, state)

	decision := policy.EvaluateApprovalRequest(state, gate)
	if !decision.Eligible {
		rejectPolicy(c, decision.Code, decision.Message)
		return
	}

	merged, err := codeProvider.MergePR(ctx, repositoryFor(state),
		state.RemediationResult.PRNumber, string(gate.MergeMethod))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !merged {
		rejectPolicy(c, policy.CodeMergeFailed, "Merge was refused by the code provider")
		return
	}

	policy.ApplyApprovalAndMerge(state)
	s.orch.TransitionDone(ctx, state)
	state.AppendEvent(models.EventPRMerged, "Mechanic", map[string]any{
		"pr_number": state.RemediationResult.PRNumber,
	})
	state.AppendEvent(models.EventIncidentResolved, "System", nil)

	if err := s.store.Save(ctx, incidentID, state); err != nil {
		s.logger.Error("Failed to persist approved incident",
			"incident_id", incidentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist incident"})
		return
	}
	c.JSON(http.StatusOK, incident.ToDetail(incidentID, state))
}

// refreshGateStatus re-fetches CI and review state from the code provider
// before evaluating policy. Mock mode and fetch failures leave the persisted
// gate state untouched.
func (s *Server) refreshGateStatus(c *gin.Context, codeProvider providers.CodeProvider, state *models.IncidentState) {
	if s.cfg.GitHubIntegrationMode != config.ModeAPI || !state.RemediationResult.HasPR() {
		return
	}
	gateStatus, err := codeProvider.GetMergeGateStatus(
		c.Request.Context(), repositoryFor(state), state.RemediationResult.PRNumber)
	if err != nil {
		s.logger.Warn("Gate refresh failed",
			"incident_id", state.IncidentID, "error", err)
		return
	}
	state.Trace()["merge_gate"] = gateStatus.Details
	if gateStatus.CIPassed {
		state.CIStatus = models.CIPassed
	}
	if gateStatus.CodeownerReviewed {
		state.CodeownerReviewStatus = models.ReviewApproved
	}
}

// repositoryFor recovers the target repository for provider calls on an
// existing incident.
func repositoryFor(state *models.IncidentState) string {
	if state.ThoughtSignature != nil && state.ThoughtSignature.TargetRepository != "" {
		return state.ThoughtSignature.TargetRepository
	}
	if repo, ok := state.RawAlert["repository"].(string); ok && repo != "" {
		return repo
	}
	return "acme/unknown-service"
}
