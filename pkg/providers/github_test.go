package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilix/resilix/pkg/models"
)

func newTestGitHubProvider(t *testing.T, handler http.Handler) *GitHubProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider := NewGitHubProvider(GitHubConfig{
		Token: "ghp_test",
		Owner: "acme",
	})
	provider.apiBase = server.URL
	return provider
}

func TestBranchName(t *testing.T) {
	assert.Equal(t, "fix/resilix-inc-ab12cd34", BranchName("INC-AB12CD34"))
}

func TestGitHubCreateRemediationPR(t *testing.T) {
	dependenciesYAML := "payment-gateway:\n  timeout_ms: 9000\n  retries: 0\n"

	newMux := func(t *testing.T, branchStatus, prStatus int) (*http.ServeMux, *map[string]any, *map[string]any) {
		t.Helper()
		commitPayload := map[string]any{}
		prPayload := map[string]any{}
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/acme/checkout-service", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"default_branch":"main"}`))
		})
		mux.HandleFunc("/repos/acme/checkout-service/git/ref/heads/main", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"object":{"sha":"base-sha-123"}}`))
		})
		mux.HandleFunc("/repos/acme/checkout-service/git/refs", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(branchStatus)
		})
		mux.HandleFunc("/repos/acme/checkout-service/contents/infra/dependencies.yaml", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&commitPayload))
				_, _ = w.Write([]byte(`{"content":{"sha":"new-sha"}}`))
				return
			}
			assert.Equal(t, "fix/resilix-inc-gh000001", r.URL.Query().Get("ref"))
			encoded := base64.StdEncoding.EncodeToString([]byte(dependenciesYAML))
			_, _ = w.Write([]byte(`{"sha":"file-sha-1","content":"` + encoded + `","encoding":"base64"}`))
		})
		mux.HandleFunc("/repos/acme/checkout-service/pulls", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				assert.Equal(t, "acme:fix/resilix-inc-gh000001", r.URL.Query().Get("head"))
				_, _ = w.Write([]byte(`[{"number":55,"html_url":"https://github.com/acme/checkout-service/pull/55"}]`))
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&prPayload))
			w.WriteHeader(prStatus)
			if prStatus == http.StatusCreated {
				_, _ = w.Write([]byte(`{"number":77,"html_url":"https://github.com/acme/checkout-service/pull/77"}`))
			}
		})
		return mux, &commitPayload, &prPayload
	}

	request := RemediationRequest{
		IncidentID: "INC-GH000001",
		Repository: "acme/checkout-service",
		TargetFile: "infra/dependencies.yaml",
		Action:     models.ActionConfigChange,
		Summary:    "tighten dependency timeouts",
	}

	t.Run("full protocol", func(t *testing.T) {
		mux, commitPayload, prPayload := newMux(t, http.StatusCreated, http.StatusCreated)
		provider := newTestGitHubProvider(t, mux)

		result, err := provider.CreateRemediationPR(context.Background(), request)
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, "fix/resilix-inc-gh000001", result.BranchName)
		assert.Equal(t, 77, result.PRNumber)
		assert.Equal(t, "https://github.com/acme/checkout-service/pull/77", result.PRURL)
		assert.Equal(t, "infra/dependencies.yaml", result.TargetFile)
		assert.Contains(t, result.DiffOldLine, "9000")
		assert.Contains(t, result.DiffNewLine, "1500")
		assert.False(t, result.PRMerged)
		assert.GreaterOrEqual(t, result.ExecutionTimeSeconds, 0.0)

		assert.Equal(t, "fix: tighten dependency timeouts", (*commitPayload)["message"])
		assert.Equal(t, "file-sha-1", (*commitPayload)["sha"])
		assert.Equal(t, "fix/resilix-inc-gh000001", (*commitPayload)["branch"])

		decoded, err := base64.StdEncoding.DecodeString((*commitPayload)["content"].(string))
		require.NoError(t, err)
		assert.Contains(t, string(decoded), "timeout_ms: 1500")

		assert.Equal(t, "[Resilix] tighten dependency timeouts", (*prPayload)["title"])
		assert.Equal(t, "fix/resilix-inc-gh000001", (*prPayload)["head"])
		assert.Equal(t, "main", (*prPayload)["base"])
	})

	t.Run("idempotent re-drive reuses branch and existing pr", func(t *testing.T) {
		mux, _, _ := newMux(t, http.StatusUnprocessableEntity, http.StatusUnprocessableEntity)
		provider := newTestGitHubProvider(t, mux)

		result, err := provider.CreateRemediationPR(context.Background(), request)
		require.NoError(t, err)
		assert.Equal(t, 55, result.PRNumber)
		assert.Equal(t, "https://github.com/acme/checkout-service/pull/55", result.PRURL)
	})

	t.Run("missing dns target resolves to canonical file", func(t *testing.T) {
		corednsYAML := ".:53 {\n        forward . 10.0.0.1:53\n        cache 30\n}\n"
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/acme/dns-edge", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"default_branch":"main"}`))
		})
		mux.HandleFunc("/repos/acme/dns-edge/git/ref/heads/main", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"object":{"sha":"base-sha"}}`))
		})
		mux.HandleFunc("/repos/acme/dns-edge/git/refs", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		mux.HandleFunc("/repos/acme/dns-edge/contents/infra/dns/resolver.yaml", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		mux.HandleFunc("/repos/acme/dns-edge/contents/infra/dns", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"name":"README.md"},{"name":"coredns-config.yaml"}]`))
		})
		mux.HandleFunc("/repos/acme/dns-edge/contents/infra/dns/coredns-config.yaml", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				_, _ = w.Write([]byte(`{"content":{"sha":"new-sha"}}`))
				return
			}
			encoded := base64.StdEncoding.EncodeToString([]byte(corednsYAML))
			_, _ = w.Write([]byte(`{"sha":"dns-sha","content":"` + encoded + `","encoding":"base64"}`))
		})
		mux.HandleFunc("/repos/acme/dns-edge/pulls", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"number":12,"html_url":"https://github.com/acme/dns-edge/pull/12"}`))
		})
		provider := newTestGitHubProvider(t, mux)

		result, err := provider.CreateRemediationPR(context.Background(), RemediationRequest{
			IncidentID: "INC-DNS00001",
			Repository: "acme/dns-edge",
			TargetFile: "infra/dns/resolver.yaml",
			Action:     models.ActionConfigChange,
			Summary:    "repair upstream resolvers",
		})
		require.NoError(t, err)
		assert.Equal(t, "infra/dns/coredns-config.yaml", result.TargetFile)
		assert.Contains(t, result.DiffNewLine, "1.1.1.1")
	})
}

func TestGitHubGetMergeGateStatus(t *testing.T) {
	newGateMux := func(prBody, combinedState, reviewsBody string) *http.ServeMux {
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/acme/checkout-service/pulls/77", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(prBody))
		})
		mux.HandleFunc("/repos/acme/checkout-service/commits/head-sha/status", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state":"` + combinedState + `"}`))
		})
		mux.HandleFunc("/repos/acme/checkout-service/pulls/77/reviews", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(reviewsBody))
		})
		return mux
	}

	t.Run("success state and approved decision", func(t *testing.T) {
		provider := newTestGitHubProvider(t, newGateMux(
			`{"head":{"sha":"head-sha"},"mergeable_state":"blocked","review_decision":"approved"}`,
			"success", `[]`))

		gate, err := provider.GetMergeGateStatus(context.Background(), "acme/checkout-service", 77)
		require.NoError(t, err)
		assert.True(t, gate.CIPassed)
		assert.True(t, gate.CodeownerReviewed)
		assert.Equal(t, "success", gate.Details["ci_state"])
		assert.Equal(t, "APPROVED", gate.Details["review_decision"])
	})

	t.Run("pending ci blocks gate", func(t *testing.T) {
		provider := newTestGitHubProvider(t, newGateMux(
			`{"head":{"sha":"head-sha"},"mergeable_state":"blocked","review_decision":""}`,
			"pending", `[]`))

		gate, err := provider.GetMergeGateStatus(context.Background(), "acme/checkout-service", 77)
		require.NoError(t, err)
		assert.False(t, gate.CIPassed)
		assert.False(t, gate.CodeownerReviewed)
	})

	t.Run("approved review satisfies codeowner gate", func(t *testing.T) {
		provider := newTestGitHubProvider(t, newGateMux(
			`{"head":{"sha":"head-sha"},"mergeable_state":"blocked","review_decision":""}`,
			"success", `[{"state":"COMMENTED"},{"state":"APPROVED"}]`))

		gate, err := provider.GetMergeGateStatus(context.Background(), "acme/checkout-service", 77)
		require.NoError(t, err)
		assert.True(t, gate.CodeownerReviewed)
		assert.Equal(t, true, gate.Details["has_approved_review"])
	})

	t.Run("clean mergeable state satisfies codeowner gate", func(t *testing.T) {
		provider := newTestGitHubProvider(t, newGateMux(
			`{"head":{"sha":"head-sha"},"mergeable_state":"clean","review_decision":""}`,
			"success", `[]`))

		gate, err := provider.GetMergeGateStatus(context.Background(), "acme/checkout-service", 77)
		require.NoError(t, err)
		assert.True(t, gate.CodeownerReviewed)
	})
}

func TestGitHubMergePR(t *testing.T) {
	newMergeProvider := func(status int) *GitHubProvider {
		return newTestGitHubProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPut, r.Method)
			require.Equal(t, "/repos/acme/checkout-service/pulls/77/merge", r.URL.Path)
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "squash", payload["merge_method"])
			w.WriteHeader(status)
		}))
	}

	t.Run("merged", func(t *testing.T) {
		merged, err := newMergeProvider(http.StatusOK).MergePR(context.Background(), "acme/checkout-service", 77, "squash")
		require.NoError(t, err)
		assert.True(t, merged)
	})

	t.Run("refused without error", func(t *testing.T) {
		for _, status := range []int{http.StatusMethodNotAllowed, http.StatusConflict, http.StatusUnprocessableEntity} {
			merged, err := newMergeProvider(status).MergePR(context.Background(), "acme/checkout-service", 77, "squash")
			require.NoError(t, err)
			assert.False(t, merged)
		}
	})

	t.Run("server error surfaces", func(t *testing.T) {
		_, err := newMergeProvider(http.StatusInternalServerError).MergePR(context.Background(), "acme/checkout-service", 77, "squash")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})
}

func TestMockProviders(t *testing.T) {
	t.Run("ticket key is deterministic", func(t *testing.T) {
		provider := NewMockTicketProvider()
		first, err := provider.CreateIncidentTicket(context.Background(), TicketRequest{IncidentID: "INC-12345678", Priority: "P2"})
		require.NoError(t, err)
		second, err := provider.CreateIncidentTicket(context.Background(), TicketRequest{IncidentID: "INC-12345678"})
		require.NoError(t, err)

		assert.Equal(t, first.TicketKey, second.TicketKey)
		assert.Regexp(t, `^SRE-\d{5}$`, first.TicketKey)
		assert.Contains(t, first.TicketURL, first.TicketKey)
	})

	t.Run("mock transitions always apply", func(t *testing.T) {
		result, err := NewMockTicketProvider().TransitionTicket(context.Background(), "SRE-00001", "In Review")
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, "In Review", result.ToStatus)
		assert.Equal(t, "mock-transition", result.AppliedTransitionID)
	})

	t.Run("pr number is deterministic and bounded", func(t *testing.T) {
		provider := NewMockCodeProvider()
		first, err := provider.CreateRemediationPR(context.Background(), RemediationRequest{
			IncidentID: "INC-12345678",
			Repository: "acme/checkout-service",
			TargetFile: "/infra/dependencies.yaml",
			Action:     models.ActionConfigChange,
		})
		require.NoError(t, err)
		second, err := provider.CreateRemediationPR(context.Background(), RemediationRequest{
			IncidentID: "INC-12345678",
			Repository: "acme/checkout-service",
		})
		require.NoError(t, err)

		assert.Equal(t, first.PRNumber, second.PRNumber)
		assert.GreaterOrEqual(t, first.PRNumber, 1000)
		assert.Less(t, first.PRNumber, 10000)
		assert.Equal(t, "fix/resilix-inc-12345678", first.BranchName)
		assert.Equal(t, "infra/dependencies.yaml", first.TargetFile)
	})

	t.Run("mock gate always passes", func(t *testing.T) {
		gate, err := NewMockCodeProvider().GetMergeGateStatus(context.Background(), "acme/x", 1200)
		require.NoError(t, err)
		assert.True(t, gate.CIPassed)
		assert.True(t, gate.CodeownerReviewed)

		merged, err := NewMockCodeProvider().MergePR(context.Background(), "acme/x", 1200, "squash")
		require.NoError(t, err)
		assert.True(t, merged)
	})
}
