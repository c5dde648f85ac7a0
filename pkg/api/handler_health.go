package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resilix/resilix/pkg/database"
	"github.com/resilix/resilix/pkg/providers"
	"github.com/resilix/resilix/pkg/version"
)

// Health handles GET /health. Always 200; readiness problems are reported in
// the body so deployment probes and dashboards share one endpoint.
func (s *Server) Health(c *gin.Context) {
	effectiveMock := s.cfg.EffectiveUseMockProviders()
	readiness := providers.GetProviderReadiness(s.cfg)

	contractOK := true
	backends := map[string]any{}
	for name, r := range readiness {
		backends[name] = r.ResolvedBackend
		if !r.Ready {
			contractOK = false
		}
	}
	backends["mode"] = map[string]string{
		"jira":   string(s.cfg.JiraIntegrationMode),
		"github": string(s.cfg.GitHubIntegrationMode),
	}

	providerMode := "api"
	if effectiveMock {
		providerMode = "mock"
	}

	appVersion := s.cfg.AppVersion
	if appVersion == "" {
		appVersion = version.Full()
	}
	buildSHA := s.cfg.BuildSHA
	if buildSHA == "" {
		buildSHA = version.GitCommit
	}

	body := gin.H{
		"status":                       "ok",
		"provider_mode":                providerMode,
		"effective_use_mock_providers": effectiveMock,
		"legacy_flag_in_use":           s.cfg.IsLegacyMockFlagUsed(),
		"runner_policy":                string(s.cfg.RunnerPolicy),
		"adk_ready":                    s.cfg.ADKRunnerURL != "" && s.cfg.GeminiAPIKey != "",
		"provider_contract_ok":         contractOK,
		"provider_readiness":           readiness,
		"integration_backends":         backends,
		"version":                      appVersion,
		"build_sha":                    buildSHA,
	}

	if s.db != nil {
		dbHealth, err := database.Health(c.Request.Context(), s.db)
		if err != nil {
			s.logger.Warn("Database health check failed", "error", err)
		}
		body["database"] = dbHealth
	}

	c.JSON(http.StatusOK, body)
}
