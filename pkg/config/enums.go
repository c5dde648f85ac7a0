package config

// IntegrationMode selects between the real API backend and the mock backend
// for a provider.
type IntegrationMode string

const (
	// ModeAPI talks to the real upstream service.
	ModeAPI IntegrationMode = "api"
	// ModeMock uses the in-process mock backend.
	ModeMock IntegrationMode = "mock"
)

// IsValid checks if the integration mode is a known value.
func (m IntegrationMode) IsValid() bool {
	return m == ModeAPI || m == ModeMock
}

// SessionBackend selects the session store implementation.
type SessionBackend string

const (
	// BackendInMemory keeps incident state in process memory.
	BackendInMemory SessionBackend = "in_memory"
	// BackendDatabase persists incident state in PostgreSQL.
	BackendDatabase SessionBackend = "database"
)

// IsValid checks if the session backend is a known value.
func (b SessionBackend) IsValid() bool {
	return b == BackendInMemory || b == BackendDatabase
}

// MergeMethod is the PR merge strategy passed to the code provider.
type MergeMethod string

const (
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodRebase MergeMethod = "rebase"
)

// IsValid checks if the merge method is a known value.
func (m MergeMethod) IsValid() bool {
	switch m {
	case MergeMethodSquash, MergeMethodMerge, MergeMethodRebase:
		return true
	default:
		return false
	}
}

// RunnerPolicy governs how the signature stage may execute.
// "adk_only" forbids silent downgrade to mock reasoning.
type RunnerPolicy string

const (
	// RunnerPolicyADKOnly rejects mock providers and missing API keys at the top
	// of the pipeline instead of quietly falling back.
	RunnerPolicyADKOnly RunnerPolicy = "adk_only"
)
