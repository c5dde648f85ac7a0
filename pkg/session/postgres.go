package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/resilix/resilix/pkg/models"
)

// PostgresStore persists incident state in the resilix_sessions table.
// Schema is managed by the embedded migrations in pkg/database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// DB exposes the underlying pool for health reporting.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Init verifies connectivity. Schema creation happens during client startup
// via migrations.
func (s *PostgresStore) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("session store ping failed: %w", err)
	}
	return nil
}

// Save upserts the whole record as a JSON document.
func (s *PostgresStore) Save(ctx context.Context, id string, state *models.IncidentState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resilix_sessions (session_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", id, err)
	}
	return nil
}

// Get returns the state or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (*models.IncidentState, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM resilix_sessions WHERE session_id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var state models.IncidentState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &state, nil
}

// Delete removes the record if present.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM resilix_sessions WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// ListItems enumerates all stored sessions.
func (s *PostgresStore) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, state FROM resilix_sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var state models.IncidentState
		if err := json.Unmarshal(payload, &state); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
		}
		items = append(items, Item{ID: id, State: &state})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return items, nil
}
