package api

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/incident"
	"github.com/resilix/resilix/pkg/models"
	"github.com/resilix/resilix/pkg/orchestrator"
	"github.com/resilix/resilix/pkg/providers"
)

// PrometheusWebhook handles POST /webhook/prometheus: validate, run the
// readiness preflight, persist the initial state, and kick off the pipeline
// in the background. The incident_id is returned immediately; the state
// becomes eventually consistent with the pipeline outcome.
func (s *Server) PrometheusWebhook(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	if _, hasAlerts := payload["alerts"]; !hasAlerts {
		if _, hasStatus := payload["status"]; !hasStatus {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing alerts/status in payload"})
			return
		}
	}

	if s.cfg.RunnerPolicy == config.RunnerPolicyADKOnly {
		if notReady := unreadyProviders(s.cfg); len(notReady) > 0 {
			rejectProviderNotReady(c, gin.H{"providers": notReady})
			return
		}
	}

	incidentID := NewIncidentID()
	state := s.buildInitialState(incidentID, payload)

	if err := s.store.Save(c.Request.Context(), incidentID, state); err != nil {
		s.logger.Error("Failed to persist initial incident state",
			"incident_id", incidentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist incident"})
		return
	}

	// The pipeline outlives the request; it gets a fresh context.
	go s.orch.ProcessIncident(context.Background(), incidentID, payload)

	detail := incident.ToDetail(incidentID, state)
	c.JSON(http.StatusOK, gin.H{
		"status":      "accepted",
		"incident_id": incidentID,
		"actionable":  true,
		"severity":    detail.Severity,
	})
}

// NewIncidentID mints an INC-<8 hex> identifier.
func NewIncidentID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "INC-" + hex[:8]
}

// unreadyProviders returns the readiness entries blocking admission. Mock
// backends are always ready; only api-mode misconfiguration blocks.
func unreadyProviders(cfg *config.Settings) map[string]providers.Readiness {
	notReady := map[string]providers.Readiness{}
	for name, readiness := range providers.GetProviderReadiness(cfg) {
		if !readiness.Ready {
			notReady[name] = readiness
		}
	}
	return notReady
}

func (s *Server) buildInitialState(incidentID string, payload map[string]any) *models.IncidentState {
	state := &models.IncidentState{
		IncidentID: incidentID,
		RawAlert:   payload,
		CreatedAt:  time.Now().UTC(),
		Approval:   models.Approval{Required: s.cfg.Gate.RequirePRApproval},
		Policy: &models.GateSnapshot{
			RequireCIPass:          s.cfg.Gate.RequireCIPass,
			RequireCodeownerReview: s.cfg.Gate.RequireCodeownerReview,
			MergeMethod:            string(s.cfg.Gate.MergeMethod),
		},
		CIStatus:              models.CIPending,
		CodeownerReviewStatus: models.ReviewPending,
		IntegrationTrace: map[string]any{
			"ticket_provider":  "unknown",
			"code_provider":    "unknown",
			"fallback_used":    false,
			"execution_path":   "pending",
			"execution_reason": orchestrator.ReasonAcceptedForProcessing,
			"runner_policy":    string(s.cfg.RunnerPolicy),
			"service_revision": os.Getenv("K_REVISION"),
			"service_service":  os.Getenv("K_SERVICE"),
		},
		Timeline: []models.TimelineEvent{},
	}
	state.AppendEvent(models.EventIncidentCreated, "System", map[string]any{
		"source": "prometheus_webhook",
	})
	return state
}
