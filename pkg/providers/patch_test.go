package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilix/resilix/pkg/models"
)

func TestPatchCoreDNSConfig(t *testing.T) {
	t.Run("rewrites forward and failover lines", func(t *testing.T) {
		content := "corefile: |\n" +
			"  .:53 {\n" +
			"        forward . 10.0.0.1:53\n" +
			"        cache 30\n" +
			"  }\n" +
			"  failover_mode: \"MANUAL\"\n"

		patched := patchCoreDNSConfig(content)
		require.NotEmpty(t, patched)
		assert.Contains(t, patched, "        forward . 1.1.1.1 8.8.8.8 9.9.9.9\n")
		assert.Contains(t, patched, "  failover_mode: \"AUTO\"\n")
		assert.NotContains(t, patched, "10.0.0.1")
		assert.True(t, strings.HasSuffix(patched, "\n"))
	})

	t.Run("inserts forward before cache when absent", func(t *testing.T) {
		content := ".:53 {\n        cache 30\n}\n"

		patched := patchCoreDNSConfig(content)
		require.NotEmpty(t, patched)
		lines := strings.Split(patched, "\n")
		forwardIdx, cacheIdx := -1, -1
		for i, line := range lines {
			if strings.Contains(line, "forward .") {
				forwardIdx = i
			}
			if strings.Contains(line, "cache 30") {
				cacheIdx = i
			}
		}
		require.GreaterOrEqual(t, forwardIdx, 0)
		require.GreaterOrEqual(t, cacheIdx, 0)
		assert.Less(t, forwardIdx, cacheIdx)
		assert.Contains(t, patched, `failover_mode: "AUTO"`)
	})

	t.Run("already patched returns empty", func(t *testing.T) {
		content := ".:53 {\n        forward . 1.1.1.1 8.8.8.8 9.9.9.9\n}\n  failover_mode: \"AUTO\"\n"
		assert.Empty(t, patchCoreDNSConfig(content))
	})

	t.Run("empty input returns empty", func(t *testing.T) {
		assert.Empty(t, patchCoreDNSConfig(""))
	})
}

func TestPatchDependenciesYAML(t *testing.T) {
	t.Run("normalizes timeouts and retries", func(t *testing.T) {
		content := "payment-gateway:\n" +
			"  timeout_ms: 9000\n" +
			"  retries: 0\n" +
			"  backoff_ms: 50\n" +
			"  circuit_breaker_enabled: false\n"

		patched := patchDependenciesYAML(content)
		require.NotEmpty(t, patched)
		assert.Contains(t, patched, "  timeout_ms: 1500\n")
		assert.Contains(t, patched, "  retries: 3\n")
		assert.Contains(t, patched, "  backoff_ms: 250\n")
		assert.Contains(t, patched, "  circuit_breaker_enabled: true\n")
		assert.NotContains(t, patched, "resilix_remediation")
	})

	t.Run("appends remediation block when no known keys", func(t *testing.T) {
		content := "services:\n  - name: search\n"

		patched := patchDependenciesYAML(content)
		require.NotEmpty(t, patched)
		assert.Contains(t, patched, "resilix_remediation:\n")
		assert.Contains(t, patched, "  circuit_breaker_enabled: true\n")
		assert.True(t, strings.HasPrefix(patched, content))
	})

	t.Run("already normalized returns empty", func(t *testing.T) {
		content := "svc:\n  timeout_ms: 1500\n  max_retries: 3\n"
		assert.Empty(t, patchDependenciesYAML(content))
	})
}

func TestPatchHandlersSource(t *testing.T) {
	t.Run("wraps direct call sites and injects helper", func(t *testing.T) {
		content := "import requests\n\n\ndef checkout(req):\n" +
			"    resp = requests.post(UPSTREAM_URL, json=req)\n" +
			"    return requests.get(STATUS_URL)\n"

		patched := patchHandlersSource(content)
		require.NotEmpty(t, patched)
		assert.Contains(t, patched, "_resilix_safe_http_call(requests.post, UPSTREAM_URL, json=req)")
		assert.Contains(t, patched, "_resilix_safe_http_call(requests.get, STATUS_URL)")
		assert.Contains(t, patched, "def _resilix_safe_http_call(http_fn, *args, **kwargs):")
		assert.Equal(t, 1, strings.Count(patched, "def _resilix_safe_http_call("))
	})

	t.Run("helper not duplicated on second pass", func(t *testing.T) {
		content := "import requests\n\nresp = requests.get(URL)\n"
		once := patchHandlersSource(content)
		require.NotEmpty(t, once)

		again := patchHandlersSource(once)
		assert.Empty(t, again)
	})

	t.Run("no call sites returns empty", func(t *testing.T) {
		assert.Empty(t, patchHandlersSource("def ping():\n    return 'ok'\n"))
	})
}

func TestBuildRemediatedContent(t *testing.T) {
	t.Run("dispatches on path suffix", func(t *testing.T) {
		patched := buildRemediatedContent("infra/dependencies.yaml", "svc:\n  timeout_ms: 9000\n")
		assert.Contains(t, patched, "timeout_ms: 1500")
	})

	t.Run("path prefix and case are tolerated", func(t *testing.T) {
		patched := buildRemediatedContent("/Repo/Infra/DNS/coredns-config.yaml", "forward . 10.0.0.1\n")
		assert.Contains(t, patched, "1.1.1.1")
	})

	t.Run("unknown target returns empty", func(t *testing.T) {
		assert.Empty(t, buildRemediatedContent("README.md", "anything"))
	})
}

func TestExtractDiffPreview(t *testing.T) {
	t.Run("first differing line pair", func(t *testing.T) {
		oldContent := "a\nb\nc\n"
		newContent := "a\nB\nc\n"
		oldLine, newLine := extractDiffPreview(oldContent, newContent)
		assert.Equal(t, "b", oldLine)
		assert.Equal(t, "B", newLine)
	})

	t.Run("whitespace-only differences are skipped", func(t *testing.T) {
		oldLine, newLine := extractDiffPreview("a\n  \nb\n", "a\n\nb\n")
		assert.Empty(t, oldLine)
		assert.Empty(t, newLine)
	})

	t.Run("appended lines are reported", func(t *testing.T) {
		oldLine, newLine := extractDiffPreview("a\n", "a\nnew line\n")
		assert.Empty(t, oldLine)
		assert.Equal(t, "new line", newLine)
	})
}

func TestDefaultPreviewForTarget(t *testing.T) {
	t.Run("coredns target", func(t *testing.T) {
		oldLine, newLine := defaultPreviewForTarget("infra/dns/coredns-config.yaml", models.ActionConfigChange)
		assert.Contains(t, oldLine, "forward .")
		assert.Contains(t, newLine, "1.1.1.1")
	})

	t.Run("unknown target names the action", func(t *testing.T) {
		oldLine, newLine := defaultPreviewForTarget("docs/runbook.md", models.ActionScaleUp)
		assert.Empty(t, oldLine)
		assert.Equal(t, "# remediation: scale_up", newLine)
	})
}

func TestLegacyRemediationContent(t *testing.T) {
	content := legacyRemediationContent("INC-12345678", models.ActionRollback, "roll back bad deploy")
	assert.Contains(t, content, "INC-12345678")
	assert.Contains(t, content, "rollback")
	assert.Contains(t, content, "roll back bad deploy")
}
