package triage

import (
	"strings"
	"time"
)

// Signal names recognized by the deterministic scorer.
const (
	SignalErrorRateHigh     = "error_rate_high"
	SignalHealthFlapping    = "health_flapping"
	SignalBacklogGrowth     = "backlog_growth"
	SignalDependencyTimeout = "dependency_timeout"
)

// SignalWeights are the base weights per signal. Each repeat beyond the first
// hit contributes +0.5, capped at 3 extra hits per signal.
var SignalWeights = map[string]float64{
	SignalErrorRateHigh:     3.0,
	SignalHealthFlapping:    3.0,
	SignalBacklogGrowth:     2.0,
	SignalDependencyTimeout: 2.0,
}

// backlogQueueDepthThreshold is the queue depth above which a log entry
// counts as backlog growth.
const backlogQueueDepthThreshold = 200000

// collectSignalHits scans the alert labels/annotations and every log entry
// for signal substrings. Hits are duplicated across alerts and logs to
// reflect intensity.
func collectSignalHits(payload map[string]any) map[string]int {
	hits := map[string]int{}

	for _, raw := range asSlice(payload["signals"]) {
		if name, ok := raw.(string); ok {
			if _, known := SignalWeights[name]; known {
				hits[name]++
			}
		}
	}

	for _, raw := range asSlice(payload["alerts"]) {
		alert, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		labels := asMap(alert["labels"])
		annotations := asMap(alert["annotations"])
		text := strings.ToLower(joinText(
			labels["alertname"], labels["severity"],
			annotations["summary"], annotations["description"],
		))
		scanText(text, hits)
	}

	for _, raw := range asSlice(payload["log_entries"]) {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		text := strings.ToLower(joinText(entry["event"], entry["message"], entry["component"]))
		scanText(text, hits)

		metadata := asMap(entry["metadata"])
		if depth, ok := asFloat(metadata["queue_depth"]); ok && depth > backlogQueueDepthThreshold {
			hits[SignalBacklogGrowth]++
		}
	}

	return hits
}

// scanText applies the substring checks shared by alerts and log entries.
func scanText(text string, hits map[string]int) {
	if text == "" {
		return
	}
	if strings.Contains(text, "error") || strings.Contains(text, "5xx") || strings.Contains(text, "higherrorrate") {
		hits[SignalErrorRateHigh]++
	}
	if strings.Contains(text, "flapping") || strings.Contains(text, "alternating") {
		hits[SignalHealthFlapping]++
	}
	if strings.Contains(text, "timeout") || strings.Contains(text, "timed out") {
		hits[SignalDependencyTimeout]++
	}
}

// scoreSignals computes the weighted score over collected hits.
func scoreSignals(hits map[string]int) float64 {
	score := 0.0
	for signal, count := range hits {
		weight, known := SignalWeights[signal]
		if !known || count <= 0 {
			continue
		}
		score += weight
		extra := count - 1
		if extra > 3 {
			extra = 3
		}
		score += float64(extra) * 0.5
	}
	return score
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func joinText(values ...any) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		if s := asString(v); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// parseTimestamp parses an ISO timestamp, defaulting to now on failure.
func parseTimestamp(v any) time.Time {
	raw := asString(v)
	if raw == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			if t.Location() == time.UTC {
				return t
			}
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
