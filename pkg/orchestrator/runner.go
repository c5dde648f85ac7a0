package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/resilix/resilix/pkg/models"
)

// RunnerOutput is what a reasoning runner contributes to the incident state.
// The integration stage always runs afterwards; runners never talk to the
// ticket or code providers themselves.
type RunnerOutput struct {
	ValidatedAlert   *models.ValidatedAlert   `json:"validated_alert"`
	ThoughtSignature *models.ThoughtSignature `json:"thought_signature"`
}

// SignatureRunner produces triage and root-cause output for an incident.
type SignatureRunner interface {
	Run(ctx context.Context, rawAlert map[string]any, incidentID string) (*RunnerOutput, error)
}

// MissingToolError reports that the external runner referenced a tool it does
// not have. This class of failure is recoverable via direct integrations.
type MissingToolError struct {
	Message string
}

func (e *MissingToolError) Error() string {
	return e.Message
}

// IsMissingToolError matches runner failures of the form "Tool 'X' not found".
func IsMissingToolError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*MissingToolError); ok {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tool") && strings.Contains(msg, "not found")
}

// ADKRunner delegates the signature stage to an external reasoning service
// over HTTP.
type ADKRunner struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewADKRunner creates the remote runner client.
func NewADKRunner(baseURL, apiKey string, timeout time.Duration) *ADKRunner {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ADKRunner{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (r *ADKRunner) Run(ctx context.Context, rawAlert map[string]any, incidentID string) (*RunnerOutput, error) {
	payload, err := json.Marshal(map[string]any{
		"incident_id": incidentID,
		"raw_alert":   rawAlert,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal runner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/run", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create runner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call reasoning runner: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read runner response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &failure)
		msg := failure.Error
		if msg == "" {
			msg = string(body)
		}
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "tool") && strings.Contains(lower, "not found") {
			return nil, &MissingToolError{Message: msg}
		}
		return nil, fmt.Errorf("runner returned HTTP %d: %s", resp.StatusCode, msg)
	}

	var out RunnerOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode runner output: %w", err)
	}
	return &out, nil
}

// MockRunner produces canned triage and signature output for demo flows where
// the mock flag is enabled.
type MockRunner struct{}

func (MockRunner) Run(_ context.Context, rawAlert map[string]any, incidentID string) (*RunnerOutput, error) {
	alert := firstAlert(rawAlert)
	labels, _ := alert["labels"].(map[string]any)
	annotations, _ := alert["annotations"].(map[string]any)

	severity := models.SeverityHigh
	if raw, ok := labels["severity"].(string); ok {
		if parsed := models.Severity(strings.ToLower(raw)); parsed.IsValid() {
			severity = parsed
		}
	}
	serviceName := stringOr(labels["service"], "checkout-service")
	errorType := stringOr(labels["alertname"], "HighErrorRate")
	now := time.Now().UTC()

	validated := &models.ValidatedAlert{
		AlertID:           incidentID,
		IsActionable:      true,
		Severity:          severity,
		ServiceName:       serviceName,
		ErrorType:         errorType,
		ErrorRate:         2.5,
		AffectedEndpoints: []string{"/api/checkout"},
		TriggeredAt:       now,
		Enrichment: models.AlertEnrichment{
			SignalScores:            map[string]int{},
			DeterministicConfidence: 0.92,
		},
		TriageReason: "Mocked alert accepted for demo processing.",
	}

	signature := &models.ThoughtSignature{
		IncidentID:        incidentID,
		RootCause:         "Missing null check in CheckoutService.processPayment()",
		RootCauseCategory: models.CategoryCodeBug,
		EvidenceChain: []models.Evidence{{
			Source:    "logs",
			Timestamp: now,
			Content:   "NullReferenceException: payment_method is None",
			Relevance: "Missing null check in checkout flow",
		}},
		AffectedServices:             []string{serviceName},
		ConfidenceScore:              0.92,
		RecommendedAction:            models.ActionFixCode,
		TargetRepository:             "acme/checkout-service",
		TargetFile:                   "src/app/handlers.py",
		TargetLine:                   142,
		RelatedCommits:               []string{"a1b2c3d"},
		InvestigationSummary:         stringOr(annotations["summary"], "Mock investigation summary"),
		InvestigationDurationSeconds: 3.2,
	}

	return &RunnerOutput{ValidatedAlert: validated, ThoughtSignature: signature}, nil
}

func firstAlert(payload map[string]any) map[string]any {
	if alerts, ok := payload["alerts"].([]any); ok && len(alerts) > 0 {
		if first, ok := alerts[0].(map[string]any); ok {
			return first
		}
	}
	return payload
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
