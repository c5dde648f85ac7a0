// Package session implements the durable, idempotent per-incident state
// container. Two backends exist: a process-local in-memory map and a
// PostgreSQL table keyed by session id with a JSONB state column.
//
// The store provides no cross-request locking; the orchestrator keeps
// at-most-one active pipeline per incident and all writes are whole-record
// (last writer wins within one process).
package session

import (
	"context"
	"errors"

	"github.com/resilix/resilix/pkg/models"
)

// ErrNotFound indicates no state exists for the requested session id.
var ErrNotFound = errors.New("session not found")

// Item is one (id, state) pair from a listing.
type Item struct {
	ID    string
	State *models.IncidentState
}

// Store is the keyed mapping incident_id → state record.
type Store interface {
	// Init creates backing schema if needed.
	Init(ctx context.Context) error
	// Save upserts the whole record. The stored value is deeply copied so
	// in-flight mutation does not bleed across reads.
	Save(ctx context.Context, id string, state *models.IncidentState) error
	// Get returns the state or ErrNotFound.
	Get(ctx context.Context, id string) (*models.IncidentState, error)
	// ListItems enumerates all (id, state) pairs for summary rendering.
	ListItems(ctx context.Context) ([]Item, error)
	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}
