package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/resilix/resilix/pkg/models"
)

// JiraConfig holds the credentials and behavior knobs for the Jira backend.
type JiraConfig struct {
	BaseURL           string
	Username          string
	APIToken          string
	ProjectKey        string
	IssueType         string
	TransitionStrict  bool
	TransitionAliases map[string][]string
	Timeout           time.Duration
}

// JiraProvider talks to the Jira Cloud REST API (v3).
type JiraProvider struct {
	httpClient        *http.Client
	baseURL           string
	username          string
	apiToken          string
	projectKey        string
	issueType         string
	transitionStrict  bool
	transitionAliases map[string][]string
	logger            *slog.Logger
}

// NewJiraProvider creates the api-mode ticket provider. Credentials are
// assumed validated by the router.
func NewJiraProvider(cfg JiraConfig) *JiraProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &JiraProvider{
		httpClient:        &http.Client{Timeout: timeout},
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		username:          cfg.Username,
		apiToken:          cfg.APIToken,
		projectKey:        cfg.ProjectKey,
		issueType:         cfg.IssueType,
		transitionStrict:  cfg.TransitionStrict,
		transitionAliases: cfg.TransitionAliases,
		logger:            slog.Default(),
	}
}

// CreateIncidentTicket opens a Jira issue for the incident. Some projects use
// custom priority schemes that reject the standard names, so a 400 response
// is retried once without the priority field.
func (p *JiraProvider) CreateIncidentTicket(ctx context.Context, req TicketRequest) (*models.TicketResult, error) {
	fields := map[string]any{
		"project":     map[string]any{"key": p.projectKey},
		"summary":     req.Summary,
		"description": toADF(req.Description),
		"issuetype":   map[string]any{"name": p.issueType},
		"priority":    map[string]any{"name": req.Priority},
		"labels":      []string{"resilix-auto", "incident", strings.ToLower(req.IncidentID)},
	}
	endpoint := p.baseURL + "/rest/api/3/issue"

	status, body, err := p.doJSON(ctx, http.MethodPost, endpoint, map[string]any{"fields": fields})
	if err != nil {
		return nil, fmt.Errorf("create jira issue: %w", err)
	}
	if status == http.StatusBadRequest {
		delete(fields, "priority")
		status, body, err = p.doJSON(ctx, http.MethodPost, endpoint, map[string]any{"fields": fields})
		if err != nil {
			return nil, fmt.Errorf("create jira issue without priority: %w", err)
		}
	}
	if status >= 400 {
		return nil, fmt.Errorf("jira returned HTTP %d creating issue: %s", status, truncate(body, 200))
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("decode jira issue response: %w", err)
	}
	ticketKey := created.Key
	if ticketKey == "" {
		ticketKey = "UNKNOWN-0"
	}
	return &models.TicketResult{
		TicketKey: ticketKey,
		TicketURL: p.baseURL + "/browse/" + ticketKey,
		Summary:   req.Summary,
		Priority:  req.Priority,
		Status:    "Open",
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TransitionTicket moves the ticket toward targetStatus. Selection rule: a
// transition whose name matches the target or one of its aliases wins; a
// transition whose destination status matches is the fallback. A miss is a
// failure record unless strict mode is on.
func (p *JiraProvider) TransitionTicket(ctx context.Context, ticketKey, targetStatus string) (TransitionResult, error) {
	fromStatus, err := p.currentStatus(ctx, ticketKey)
	if err != nil {
		return p.transitionFailure(fromStatus, targetStatus, "status_fetch_failed", err)
	}

	transitions, err := p.availableTransitions(ctx, ticketKey)
	if err != nil {
		return p.transitionFailure(fromStatus, targetStatus, "transition_fetch_failed", err)
	}

	match := selectTransition(transitions, targetStatus, p.transitionAliases)
	if match == nil {
		err := fmt.Errorf("no transition to %q from %q on %s", targetStatus, fromStatus, ticketKey)
		return p.transitionFailure(fromStatus, targetStatus, "no_matching_transition", err)
	}

	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", p.baseURL, ticketKey)
	status, body, err := p.doJSON(ctx, http.MethodPost, endpoint, map[string]any{
		"transition": map[string]any{"id": match.ID},
	})
	if err == nil && status >= 400 {
		err = fmt.Errorf("jira returned HTTP %d applying transition %s: %s", status, match.ID, truncate(body, 200))
	}
	if err != nil {
		return p.transitionFailure(fromStatus, targetStatus, "transition_request_failed", err)
	}

	toStatus := match.ToName
	if toStatus == "" {
		toStatus = targetStatus
	}
	return TransitionResult{
		OK:                  true,
		FromStatus:          fromStatus,
		ToStatus:            toStatus,
		AppliedTransitionID: match.ID,
	}, nil
}

// transitionFailure converts a transition miss into a failure record, or
// propagates the error in strict mode.
func (p *JiraProvider) transitionFailure(fromStatus, targetStatus, reason string, err error) (TransitionResult, error) {
	if p.transitionStrict {
		return TransitionResult{}, fmt.Errorf("transition ticket to %q: %w", targetStatus, err)
	}
	p.logger.Warn("Jira transition not applied",
		"target_status", targetStatus, "reason", reason, "error", err)
	return TransitionResult{
		OK:         false,
		FromStatus: fromStatus,
		ToStatus:   targetStatus,
		Reason:     reason,
	}, nil
}

type jiraTransition struct {
	ID     string
	Name   string
	ToName string
}

// selectTransition prefers a name match over a destination match. The target
// status and its configured aliases form the accepted token set.
func selectTransition(transitions []jiraTransition, targetStatus string, aliases map[string][]string) *jiraTransition {
	target := strings.ToLower(strings.TrimSpace(targetStatus))
	tokens := map[string]struct{}{target: {}}
	for _, alias := range aliases[target] {
		tokens[strings.ToLower(strings.TrimSpace(alias))] = struct{}{}
	}

	var destinationMatch *jiraTransition
	for i := range transitions {
		t := &transitions[i]
		if _, ok := tokens[strings.ToLower(strings.TrimSpace(t.Name))]; ok {
			return t
		}
		if destinationMatch == nil {
			if _, ok := tokens[strings.ToLower(strings.TrimSpace(t.ToName))]; ok {
				destinationMatch = t
			}
		}
	}
	return destinationMatch
}

func (p *JiraProvider) currentStatus(ctx context.Context, ticketKey string) (string, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=status", p.baseURL, ticketKey)
	status, body, err := p.doJSON(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", fmt.Errorf("jira returned HTTP %d fetching issue %s", status, ticketKey)
	}
	var issue struct {
		Fields struct {
			Status struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &issue); err != nil {
		return "", fmt.Errorf("decode issue status: %w", err)
	}
	return issue.Fields.Status.Name, nil
}

func (p *JiraProvider) availableTransitions(ctx context.Context, ticketKey string) ([]jiraTransition, error) {
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", p.baseURL, ticketKey)
	status, body, err := p.doJSON(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("jira returned HTTP %d listing transitions for %s", status, ticketKey)
	}
	var payload struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode transitions: %w", err)
	}
	out := make([]jiraTransition, 0, len(payload.Transitions))
	for _, t := range payload.Transitions {
		out = append(out, jiraTransition{ID: t.ID, Name: t.Name, ToName: t.To.Name})
	}
	return out, nil
}

func (p *JiraProvider) doJSON(ctx context.Context, method, endpoint string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(p.username, p.apiToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// toADF wraps plain text in the minimal Atlassian Document Format shape the
// v3 issue API requires.
func toADF(text string) map[string]any {
	if text == "" {
		text = "Resilix incident ticket."
	}
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type":    "paragraph",
				"content": []any{map[string]any{"type": "text", "text": text}},
			},
		},
	}
}

func truncate(body []byte, limit int) string {
	s := string(body)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
