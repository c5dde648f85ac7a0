package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSessionBackend indicates ADK_SESSION_BACKEND holds an unknown value.
	ErrInvalidSessionBackend = errors.New("invalid session backend")

	// ErrMissingDatabaseURL indicates the database backend was selected without a DSN.
	ErrMissingDatabaseURL = errors.New("database backend requires DATABASE_URL")

	// ErrInvalidAliasFile indicates the transition alias YAML file failed to parse.
	ErrInvalidAliasFile = errors.New("invalid transition alias file")
)

// ValidationError wraps a configuration validation failure with the offending
// key and value.
type ValidationError struct {
	Key   string
	Value string
	Err   error
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s=%q: %v", e.Key, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
