package providers

import (
	"strings"

	"github.com/resilix/resilix/pkg/config"
)

// placeholders are credential values that count as absent. Deployment
// templates ship with these so an unconfigured api mode fails preflight
// instead of emitting doomed requests.
var placeholders = map[string]struct{}{
	"":                             {},
	"placeholder":                  {},
	"placeholder_github_token":     {},
	"placeholder_jira_api_token":   {},
	"placeholder_jira_url":         {},
	"placeholder_jira_username":    {},
	"placeholder_jira_project_key": {},
	"placeholder_owner":            {},
}

func usable(value string) bool {
	_, isPlaceholder := placeholders[strings.ToLower(strings.TrimSpace(value))]
	return !isPlaceholder
}

func normalizeMode(provider string, mode config.IntegrationMode) (config.IntegrationMode, error) {
	normalized := config.IntegrationMode(strings.ToLower(strings.TrimSpace(string(mode))))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", &ProviderConfigError{
		Provider:      provider,
		Mode:          string(mode),
		ReasonCode:    ReasonInvalidMode,
		MissingFields: []string{strings.ToUpper(provider) + "_INTEGRATION_MODE"},
	}
}

func missingJiraFields(cfg *config.Settings) []string {
	var missing []string
	if !usable(cfg.JiraURL) {
		missing = append(missing, "JIRA_URL")
	}
	if !usable(cfg.JiraUsername) {
		missing = append(missing, "JIRA_USERNAME")
	}
	if !usable(cfg.JiraAPIToken) {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if !usable(cfg.JiraProjectKey) {
		missing = append(missing, "JIRA_PROJECT_KEY")
	}
	return missing
}

func missingGitHubFields(cfg *config.Settings) []string {
	var missing []string
	if !usable(cfg.GitHubToken) {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if !usable(cfg.GitHubOwner) {
		missing = append(missing, "GITHUB_OWNER")
	}
	return missing
}

// GetTicketProvider resolves the configured ticket backend. The second return
// value is the resolved backend label ("jira_api" or "jira_mock") recorded in
// the integration trace.
func GetTicketProvider(cfg *config.Settings) (TicketProvider, string, error) {
	mode, err := normalizeMode("jira", cfg.JiraIntegrationMode)
	if err != nil {
		return nil, "", err
	}
	if mode == config.ModeMock {
		return NewMockTicketProvider(), "jira_mock", nil
	}
	if missing := missingJiraFields(cfg); len(missing) > 0 {
		return nil, "", &ProviderConfigError{
			Provider:      "jira",
			Mode:          string(mode),
			ReasonCode:    ReasonMissingConfig,
			MissingFields: missing,
		}
	}
	return NewJiraProvider(JiraConfig{
		BaseURL:           cfg.JiraURL,
		Username:          cfg.JiraUsername,
		APIToken:          cfg.JiraAPIToken,
		ProjectKey:        cfg.JiraProjectKey,
		IssueType:         cfg.JiraIssueType,
		TransitionStrict:  cfg.JiraTransitionStrict,
		TransitionAliases: cfg.JiraTransitionAliases,
		Timeout:           cfg.JiraTimeout,
	}), "jira_api", nil
}

// GetCodeProvider resolves the configured code backend. The second return
// value is the resolved backend label ("github_api" or "github_mock").
func GetCodeProvider(cfg *config.Settings) (CodeProvider, string, error) {
	mode, err := normalizeMode("github", cfg.GitHubIntegrationMode)
	if err != nil {
		return nil, "", err
	}
	if mode == config.ModeMock {
		return NewMockCodeProvider(), "github_mock", nil
	}
	if missing := missingGitHubFields(cfg); len(missing) > 0 {
		return nil, "", &ProviderConfigError{
			Provider:      "github",
			Mode:          string(mode),
			ReasonCode:    ReasonMissingConfig,
			MissingFields: missing,
		}
	}
	return NewGitHubProvider(GitHubConfig{
		Token:             cfg.GitHubToken,
		Owner:             cfg.GitHubOwner,
		DefaultBaseBranch: cfg.GitHubDefaultBaseBranch,
		Timeout:           cfg.GitHubTimeout,
	}), "github_api", nil
}

// Readiness is the per-provider preflight verdict.
type Readiness struct {
	Ready           bool     `json:"ready"`
	ResolvedBackend string   `json:"resolved_backend"`
	Reason          string   `json:"reason"`
	MissingFields   []string `json:"missing_fields"`
}

// GetProviderReadiness reports, per provider, whether it can be used in its
// configured mode. Pure function of configuration; makes no network calls.
func GetProviderReadiness(cfg *config.Settings) map[string]Readiness {
	readiness := make(map[string]Readiness, 2)

	checks := []struct {
		name    string
		mode    config.IntegrationMode
		missing func(*config.Settings) []string
	}{
		{"jira", cfg.JiraIntegrationMode, missingJiraFields},
		{"github", cfg.GitHubIntegrationMode, missingGitHubFields},
	}

	for _, check := range checks {
		mode, err := normalizeMode(check.name, check.mode)
		if err != nil {
			cfgErr := err.(*ProviderConfigError)
			readiness[check.name] = Readiness{
				Ready:           false,
				ResolvedBackend: "unavailable",
				Reason:          cfgErr.ReasonCode,
				MissingFields:   cfgErr.MissingFields,
			}
			continue
		}
		if mode == config.ModeMock {
			readiness[check.name] = Readiness{
				Ready:           true,
				ResolvedBackend: check.name + "_mock",
				Reason:          ReasonMockMode,
				MissingFields:   []string{},
			}
			continue
		}
		if missing := check.missing(cfg); len(missing) > 0 {
			readiness[check.name] = Readiness{
				Ready:           false,
				ResolvedBackend: "unavailable",
				Reason:          ReasonMissingConfig,
				MissingFields:   missing,
			}
			continue
		}
		readiness[check.name] = Readiness{
			Ready:           true,
			ResolvedBackend: check.name + "_api",
			Reason:          ReasonOK,
			MissingFields:   []string{},
		}
	}

	return readiness
}
