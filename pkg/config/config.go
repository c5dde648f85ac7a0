// Package config assembles the immutable runtime configuration for the
// orchestrator. Settings are read once from the environment at process start;
// the only exception is the merge-gate policy, which is re-read on every
// approval request so operator changes take effect immediately.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the single configuration record read at process start.
type Settings struct {
	HTTPPort string
	LogLevel string

	// Provider integration modes; normalized and validated by the router.
	JiraIntegrationMode   IntegrationMode
	GitHubIntegrationMode IntegrationMode

	// UseMockProviders is the canonical mock switch; UseMockMCP is the legacy
	// flag kept for old deployments.
	UseMockProviders bool
	UseMockMCP       bool
	legacyFlagSet    bool
	canonicalFlagSet bool

	// Jira credentials and behavior.
	JiraURL               string
	JiraUsername          string
	JiraAPIToken          string
	JiraProjectKey        string
	JiraIssueType         string
	JiraStatusTodo        string
	JiraStatusInProgress  string
	JiraStatusInReview    string
	JiraStatusDone        string
	JiraTransitionStrict  bool
	JiraTransitionAliases map[string][]string
	JiraTimeout           time.Duration

	// GitHub credentials and behavior.
	GitHubToken             string
	GitHubOwner             string
	GitHubDefaultBaseBranch string
	GitHubTimeout           time.Duration

	// Merge-gate policy (snapshotted into state at incident creation,
	// re-read via ReloadGatePolicy on approval).
	Gate GatePolicy

	// Reasoning runner.
	RunnerPolicy RunnerPolicy
	ADKRunnerURL string
	GeminiAPIKey string
	ADKTimeout   time.Duration

	// Session store.
	SessionBackend SessionBackend
	DatabaseURL    string

	// Boundary concerns.
	CORSAllowedOrigins []string
	FrontendDistDir    string
	AppVersion         string
	BuildSHA           string

	// Retention sweeper for resolved incidents. Disabled by default.
	RetentionEnabled  bool
	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration
}

// GatePolicy holds the merge-gate predicates and merge strategy.
type GatePolicy struct {
	RequirePRApproval      bool        `json:"require_pr_approval"`
	RequireCIPass          bool        `json:"require_ci_pass"`
	RequireCodeownerReview bool        `json:"require_codeowner_review"`
	MergeMethod            MergeMethod `json:"merge_method"`
}

// Load reads all settings from the environment. The returned record is
// immutable for the process lifetime.
func Load() (*Settings, error) {
	s := &Settings{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		JiraIntegrationMode:   IntegrationMode(getEnv("JIRA_INTEGRATION_MODE", string(ModeMock))),
		GitHubIntegrationMode: IntegrationMode(getEnv("GITHUB_INTEGRATION_MODE", string(ModeMock))),

		JiraURL:                 os.Getenv("JIRA_URL"),
		JiraUsername:            os.Getenv("JIRA_USERNAME"),
		JiraAPIToken:            os.Getenv("JIRA_API_TOKEN"),
		JiraProjectKey:          os.Getenv("JIRA_PROJECT_KEY"),
		JiraIssueType:           getEnv("JIRA_ISSUE_TYPE", "Task"),
		JiraStatusTodo:          getEnv("JIRA_STATUS_TODO", "To Do"),
		JiraStatusInProgress:    getEnv("JIRA_STATUS_IN_PROGRESS", "In Progress"),
		JiraStatusInReview:      getEnv("JIRA_STATUS_IN_REVIEW", "In Review"),
		JiraStatusDone:          getEnv("JIRA_STATUS_DONE", "Done"),
		JiraTransitionStrict:    getBool("JIRA_TRANSITION_STRICT", false),
		JiraTimeout:             getDuration("JIRA_TIMEOUT", 15*time.Second),
		GitHubToken:             os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:             os.Getenv("GITHUB_OWNER"),
		GitHubDefaultBaseBranch: getEnv("GITHUB_DEFAULT_BASE_BRANCH", "main"),
		GitHubTimeout:           getDuration("GITHUB_TIMEOUT", 20*time.Second),

		Gate: loadGatePolicy(),

		RunnerPolicy: RunnerPolicyADKOnly,
		ADKRunnerURL: os.Getenv("ADK_RUNNER_URL"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		ADKTimeout:   getDuration("ADK_TIMEOUT", 120*time.Second),

		SessionBackend: SessionBackend(getEnv("ADK_SESSION_BACKEND", string(BackendInMemory))),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		FrontendDistDir:    os.Getenv("FRONTEND_DIST_DIR"),
		AppVersion:         os.Getenv("APP_VERSION"),
		BuildSHA:           os.Getenv("BUILD_SHA"),

		RetentionEnabled:  getBool("RETENTION_ENABLED", false),
		RetentionMaxAge:   getDuration("RETENTION_MAX_AGE", 30*24*time.Hour),
		RetentionInterval: getDuration("RETENTION_INTERVAL", time.Hour),
	}

	_, s.canonicalFlagSet = os.LookupEnv("USE_MOCK_PROVIDERS")
	_, s.legacyFlagSet = os.LookupEnv("USE_MOCK_MCP")
	s.UseMockProviders = getBool("USE_MOCK_PROVIDERS", false)
	s.UseMockMCP = getBool("USE_MOCK_MCP", false)

	if !s.SessionBackend.IsValid() {
		return nil, &ValidationError{
			Key:   "ADK_SESSION_BACKEND",
			Value: string(s.SessionBackend),
			Err:   ErrInvalidSessionBackend,
		}
	}
	if s.SessionBackend == BackendDatabase && s.DatabaseURL == "" {
		return nil, &ValidationError{
			Key:   "ADK_SESSION_BACKEND",
			Value: string(s.SessionBackend),
			Err:   ErrMissingDatabaseURL,
		}
	}

	aliases, err := loadTransitionAliases(os.Getenv("JIRA_TRANSITION_ALIASES_FILE"))
	if err != nil {
		return nil, err
	}
	s.JiraTransitionAliases = aliases

	return s, nil
}

// loadGatePolicy reads the merge-gate keys from the environment.
func loadGatePolicy() GatePolicy {
	return GatePolicy{
		RequirePRApproval:      getBool("REQUIRE_PR_APPROVAL", true),
		RequireCIPass:          getBool("REQUIRE_CI_PASS", true),
		RequireCodeownerReview: getBool("REQUIRE_CODEOWNER_REVIEW", false),
		MergeMethod:            mergeMethodOrDefault(getEnv("MERGE_METHOD", string(MergeMethodSquash))),
	}
}

// ReloadGatePolicy re-reads the gate policy from the environment. Called on
// every approval request so operator changes apply without a restart.
func ReloadGatePolicy() GatePolicy {
	return loadGatePolicy()
}

func mergeMethodOrDefault(raw string) MergeMethod {
	m := MergeMethod(strings.ToLower(strings.TrimSpace(raw)))
	if m.IsValid() {
		return m
	}
	return MergeMethodSquash
}

// EffectiveUseMockProviders reports whether mock backends are forced, honoring
// the canonical flag first and the legacy USE_MOCK_MCP flag second.
func (s *Settings) EffectiveUseMockProviders() bool {
	if s.canonicalFlagSet {
		return s.UseMockProviders
	}
	return s.UseMockMCP
}

// IsLegacyMockFlagUsed reports whether the deployment still relies on the
// legacy USE_MOCK_MCP flag.
func (s *Settings) IsLegacyMockFlagUsed() bool {
	return s.legacyFlagSet && !s.canonicalFlagSet
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
