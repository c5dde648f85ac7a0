package providers

import (
	"fmt"
	"strings"
)

// Reason codes carried by ProviderConfigError and readiness reports.
const (
	ReasonOK            = "ok"
	ReasonMockMode      = "mock_mode"
	ReasonInvalidMode   = "invalid_mode"
	ReasonMissingConfig = "missing_or_invalid_config"
)

// ProviderConfigError reports a provider that cannot be constructed from the
// current configuration. It carries enough structure for the boundary to emit
// a provider_not_ready response without parsing the message.
type ProviderConfigError struct {
	Provider      string
	Mode          string
	ReasonCode    string
	MissingFields []string
}

func (e *ProviderConfigError) Error() string {
	fields := strings.Join(e.MissingFields, ", ")
	if fields == "" {
		fields = "none"
	}
	return fmt.Sprintf("%s_%s: mode=%s; missing_or_invalid_fields=%s",
		e.Provider, e.ReasonCode, e.Mode, fields)
}

// AsMap renders the error for structured HTTP responses and traces.
func (e *ProviderConfigError) AsMap() map[string]any {
	missing := e.MissingFields
	if missing == nil {
		missing = []string{}
	}
	return map[string]any{
		"provider":       e.Provider,
		"mode":           e.Mode,
		"reason":         e.ReasonCode,
		"missing_fields": missing,
	}
}
