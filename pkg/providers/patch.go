package providers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/resilix/resilix/pkg/models"
)

// Target-specific content rewriters. Each returns the patched content, or ""
// when the rewriter does not apply, so downstream CI always has a meaningful
// diff to evaluate for the known artifact archetypes.

// buildRemediatedContent dispatches on the target path suffix.
func buildRemediatedContent(targetFile, existingContent string) string {
	normalized := strings.ToLower(strings.TrimLeft(strings.TrimSpace(targetFile), "/"))
	switch {
	case strings.HasSuffix(normalized, "infra/dns/coredns-config.yaml"):
		return patchCoreDNSConfig(existingContent)
	case strings.HasSuffix(normalized, "infra/dependencies.yaml"):
		return patchDependenciesYAML(existingContent)
	case strings.HasSuffix(normalized, "src/app/handlers.py"):
		return patchHandlersSource(existingContent)
	default:
		return ""
	}
}

const coreDNSForwarders = "forward . 1.1.1.1 8.8.8.8 9.9.9.9"

// patchCoreDNSConfig replaces the forward directive with a safe multi-resolver
// list and normalizes failover_mode to AUTO, inserting either when absent.
func patchCoreDNSConfig(content string) string {
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	// Split leaves a trailing empty element when content ends with a newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	changed := false
	forwardFound := false
	failoverFound := false

	for i, line := range lines {
		stripped := strings.TrimSpace(line)
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if strings.HasPrefix(stripped, "forward .") {
			updated := indent + coreDNSForwarders
			if line != updated {
				lines[i] = updated
				changed = true
			}
			forwardFound = true
		}
		if strings.HasPrefix(stripped, "failover_mode:") {
			updated := indent + `failover_mode: "AUTO"`
			if line != updated {
				lines[i] = updated
				changed = true
			}
			failoverFound = true
		}
	}

	if !forwardFound {
		insertAt := len(lines)
		for i, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "cache ") {
				insertAt = i
				break
			}
		}
		lines = append(lines[:insertAt], append([]string{"        " + coreDNSForwarders}, lines[insertAt:]...)...)
		changed = true
	}
	if !failoverFound {
		lines = append(lines, `  failover_mode: "AUTO"`)
		changed = true
	}

	if !changed {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

var dependencyReplacements = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?m)^(\s*timeout_ms:\s*)\d+(\s*)$`), "${1}1500${2}"},
	{regexp.MustCompile(`(?m)^(\s*timeout_seconds:\s*)\d+(\s*)$`), "${1}2${2}"},
	{regexp.MustCompile(`(?m)^(\s*retries:\s*)\d+(\s*)$`), "${1}3${2}"},
	{regexp.MustCompile(`(?m)^(\s*max_retries:\s*)\d+(\s*)$`), "${1}3${2}"},
	{regexp.MustCompile(`(?m)^(\s*backoff_ms:\s*)\d+(\s*)$`), "${1}250${2}"},
	{regexp.MustCompile(`(?m)^(\s*circuit_breaker_enabled:\s*)(?:true|false)(\s*)$`), "${1}true${2}"},
}

const dependencyRemediationBlock = `resilix_remediation:
  timeout_ms: 1500
  max_retries: 3
  backoff_ms: 250
  circuit_breaker_enabled: true
`

// patchDependenciesYAML normalizes timeouts and retry counts and enables the
// circuit breaker, appending a remediation block when no known keys exist.
func patchDependenciesYAML(content string) string {
	if content == "" {
		return ""
	}
	patched := content
	changed := false

	for _, r := range dependencyReplacements {
		updated := r.pattern.ReplaceAllString(patched, r.replacement)
		if updated != patched {
			changed = true
			patched = updated
		}
	}

	if !strings.Contains(patched, "timeout_ms:") && !strings.Contains(patched, "timeout_seconds:") {
		if !strings.HasSuffix(patched, "\n") {
			patched += "\n"
		}
		patched += dependencyRemediationBlock
		changed = true
	}

	if !changed {
		return ""
	}
	if !strings.HasSuffix(patched, "\n") {
		patched += "\n"
	}
	return patched
}

var httpCallPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\brequests\.get\(`), "_resilix_safe_http_call(requests.get, "},
	{regexp.MustCompile(`\brequests\.post\(`), "_resilix_safe_http_call(requests.post, "},
	{regexp.MustCompile(`\brequests\.put\(`), "_resilix_safe_http_call(requests.put, "},
	{regexp.MustCompile(`\brequests\.delete\(`), "_resilix_safe_http_call(requests.delete, "},
	{regexp.MustCompile(`\brequests\.patch\(`), "_resilix_safe_http_call(requests.patch, "},
}

const safeHTTPCallHelper = `


def _resilix_safe_http_call(http_fn, *args, **kwargs):
    """Apply timeout and guarded exception path for upstream HTTP calls."""
    kwargs.setdefault("timeout", 2.0)
    try:
        return http_fn(*args, **kwargs)
    except Exception as exc:
        raise RuntimeError(f"upstream_request_failed: {exc}") from exc
`

// patchHandlersSource rewrites direct HTTP client call-sites to a guarded
// wrapper and injects the helper once at end of file.
func patchHandlersSource(content string) string {
	if content == "" {
		return ""
	}
	patched := content
	replaced := false
	for _, p := range httpCallPatterns {
		updated := p.pattern.ReplaceAllString(patched, p.replacement)
		if updated != patched {
			replaced = true
			patched = updated
		}
	}
	if !replaced {
		return ""
	}
	if !strings.Contains(patched, "def _resilix_safe_http_call(") {
		patched = strings.TrimRight(patched, " \t\n") + safeHTTPCallHelper + "\n"
	}
	return patched
}

// extractDiffPreview returns the first differing non-whitespace line pair.
func extractDiffPreview(oldContent, newContent string) (string, string) {
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")
	limit := len(oldLines)
	if len(newLines) > limit {
		limit = len(newLines)
	}
	for i := 0; i < limit; i++ {
		var oldLine, newLine string
		if i < len(oldLines) {
			oldLine = oldLines[i]
		}
		if i < len(newLines) {
			newLine = newLines[i]
		}
		if oldLine == newLine {
			continue
		}
		if strings.TrimSpace(oldLine) == "" && strings.TrimSpace(newLine) == "" {
			continue
		}
		return oldLine, newLine
	}
	return "", ""
}

// defaultPreviewForTarget supplies a representative preview when content-level
// diffing produced nothing.
func defaultPreviewForTarget(targetFile string, action models.RecommendedAction) (string, string) {
	normalized := strings.ToLower(strings.TrimLeft(strings.TrimSpace(targetFile), "/"))
	switch {
	case strings.HasSuffix(normalized, "infra/dns/coredns-config.yaml"):
		return "forward . 10.0.0.1:53", "forward . 1.1.1.1 8.8.8.8 9.9.9.9"
	case strings.HasSuffix(normalized, "infra/dependencies.yaml"):
		return "timeout_ms: 9000", "timeout_ms: 1500"
	case strings.HasSuffix(normalized, "src/app/handlers.py"):
		return `requests.get("https://example.com")`, "_resilix_safe_http_call(requests.get, ...)"
	default:
		return "", fmt.Sprintf("# remediation: %s", action)
	}
}

// legacyRemediationContent is the audit-comment fallback written when no
// target-specific rewriter applies.
func legacyRemediationContent(incidentID string, action models.RecommendedAction, summary string) string {
	return fmt.Sprintf("# Resilix automated remediation\n# Incident: %s\n# Action: %s\n# Summary: %s\n",
		incidentID, action, summary)
}
