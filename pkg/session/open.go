package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/database"
)

// Open resolves and initializes the configured store backend.
//
// Startup protocol: init the configured backend; if the database backend
// fails, log and fall back to the in-memory backend once. A failing memory
// backend is fatal. Unknown backend values are rejected by config.Load before
// this point.
//
// The returned closer releases backend resources and is a no-op for memory.
func Open(ctx context.Context, cfg *config.Settings) (Store, func(), error) {
	switch cfg.SessionBackend {
	case config.BackendDatabase:
		store, closer, err := openDatabase(ctx, cfg.DatabaseURL)
		if err == nil {
			return store, closer, nil
		}
		slog.Warn("Database session store init failed; falling back to in-memory store",
			"error", err)
		fallthrough
	case config.BackendInMemory:
		store := NewMemoryStore()
		if err := store.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to init in-memory session store: %w", err)
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func openDatabase(ctx context.Context, databaseURL string) (Store, func(), error) {
	client, err := database.NewClient(ctx, database.NewConfig(databaseURL))
	if err != nil {
		return nil, nil, err
	}
	store := NewPostgresStore(client.DB())
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closer := func() {
		if err := client.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}
	return store, closer, nil
}
