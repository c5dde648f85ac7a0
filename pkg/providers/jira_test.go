package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJiraProvider(t *testing.T, handler http.Handler) *JiraProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewJiraProvider(JiraConfig{
		BaseURL:    server.URL,
		Username:   "bot@acme.example",
		APIToken:   "token-123",
		ProjectKey: "SRE",
		IssueType:  "Task",
	})
}

func TestJiraCreateIncidentTicket(t *testing.T) {
	t.Run("creates issue with labels and adf body", func(t *testing.T) {
		var captured map[string]any
		provider := newTestJiraProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/rest/api/3/issue", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "bot@acme.example", user)
			assert.Equal(t, "token-123", pass)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"key":"SRE-101"}`))
		}))

		result, err := provider.CreateIncidentTicket(context.Background(), TicketRequest{
			IncidentID:  "INC-AB12CD34",
			Summary:     "[AUTO] code_bug: unhandled nil in checkout",
			Description: "Root cause details",
			Priority:    "P1",
		})
		require.NoError(t, err)

		assert.Equal(t, "SRE-101", result.TicketKey)
		assert.Contains(t, result.TicketURL, "/browse/SRE-101")
		assert.Equal(t, "Open", result.Status)
		assert.Equal(t, "P1", result.Priority)

		fields := captured["fields"].(map[string]any)
		assert.Equal(t, "SRE", fields["project"].(map[string]any)["key"])
		assert.Equal(t, []any{"resilix-auto", "incident", "inc-ab12cd34"}, fields["labels"])
		description := fields["description"].(map[string]any)
		assert.Equal(t, "doc", description["type"])
	})

	t.Run("retries without priority on 400", func(t *testing.T) {
		var requests []map[string]any
		provider := newTestJiraProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			requests = append(requests, body)
			fields := body["fields"].(map[string]any)
			if _, hasPriority := fields["priority"]; hasPriority {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"errors":{"priority":"Field 'priority' cannot be set"}}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"key":"SRE-102"}`))
		}))

		result, err := provider.CreateIncidentTicket(context.Background(), TicketRequest{
			IncidentID: "INC-00000002",
			Summary:    "summary",
			Priority:   "P2",
		})
		require.NoError(t, err)
		require.Len(t, requests, 2)
		assert.Equal(t, "SRE-102", result.TicketKey)
	})

	t.Run("hard failure surfaces status and body", func(t *testing.T) {
		provider := newTestJiraProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorMessages":["Unauthorized"]}`))
		}))

		_, err := provider.CreateIncidentTicket(context.Background(), TicketRequest{IncidentID: "INC-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

func jiraTransitionHandler(t *testing.T, currentStatus string, transitions string) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/issue/SRE-101", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "status", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"fields":{"status":{"name":"` + currentStatus + `"}}}`))
	})
	mux.HandleFunc("/rest/api/3/issue/SRE-101/transitions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(transitions))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestJiraTransitionTicket(t *testing.T) {
	transitions := `{"transitions":[
		{"id":"11","name":"Start Progress","to":{"name":"In Progress"}},
		{"id":"21","name":"In Review","to":{"name":"Review"}},
		{"id":"31","name":"Done","to":{"name":"Done"}}
	]}`

	t.Run("name match wins over destination match", func(t *testing.T) {
		provider := newTestJiraProvider(t, jiraTransitionHandler(t, "To Do", transitions))

		result, err := provider.TransitionTicket(context.Background(), "SRE-101", "In Review")
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, "To Do", result.FromStatus)
		assert.Equal(t, "21", result.AppliedTransitionID)
		assert.Equal(t, "Review", result.ToStatus)
	})

	t.Run("destination match is the fallback", func(t *testing.T) {
		provider := newTestJiraProvider(t, jiraTransitionHandler(t, "To Do", transitions))

		result, err := provider.TransitionTicket(context.Background(), "SRE-101", "In Progress")
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, "11", result.AppliedTransitionID)
		assert.Equal(t, "In Progress", result.ToStatus)
	})

	t.Run("alias token matches", func(t *testing.T) {
		provider := newTestJiraProvider(t, jiraTransitionHandler(t, "In Progress", transitions))
		provider.transitionAliases = map[string][]string{
			"code review": {"in review"},
		}

		result, err := provider.TransitionTicket(context.Background(), "SRE-101", "Code Review")
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, "21", result.AppliedTransitionID)
	})

	t.Run("miss yields failure record by default", func(t *testing.T) {
		provider := newTestJiraProvider(t, jiraTransitionHandler(t, "Done", `{"transitions":[]}`))

		result, err := provider.TransitionTicket(context.Background(), "SRE-101", "In Review")
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, "Done", result.FromStatus)
		assert.Equal(t, "In Review", result.ToStatus)
		assert.Equal(t, "no_matching_transition", result.Reason)
	})

	t.Run("miss is an error in strict mode", func(t *testing.T) {
		provider := newTestJiraProvider(t, jiraTransitionHandler(t, "Done", `{"transitions":[]}`))
		provider.transitionStrict = true

		_, err := provider.TransitionTicket(context.Background(), "SRE-101", "In Review")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "In Review")
	})

	t.Run("status fetch failure yields failure record", func(t *testing.T) {
		provider := newTestJiraProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		result, err := provider.TransitionTicket(context.Background(), "SRE-101", "To Do")
		require.NoError(t, err)
		assert.False(t, result.OK)
		assert.Equal(t, "status_fetch_failed", result.Reason)
	})
}

func TestSelectTransition(t *testing.T) {
	transitions := []jiraTransition{
		{ID: "1", Name: "Begin", ToName: "In Progress"},
		{ID: "2", Name: "To Do", ToName: "To Do"},
	}

	t.Run("case insensitive name match", func(t *testing.T) {
		match := selectTransition(transitions, "to do", nil)
		require.NotNil(t, match)
		assert.Equal(t, "2", match.ID)
	})

	t.Run("no match returns nil", func(t *testing.T) {
		assert.Nil(t, selectTransition(transitions, "Blocked", nil))
	})
}
