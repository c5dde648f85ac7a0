// Package cleanup removes resolved incidents that have aged past the
// configured retention window. Disabled by default; every instance may run
// the sweeper independently because deletes are idempotent.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/resilix/resilix/pkg/incident"
	"github.com/resilix/resilix/pkg/models"
	"github.com/resilix/resilix/pkg/session"
)

// Sweeper periodically drops old resolved incidents from the store.
type Sweeper struct {
	store    session.Store
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a retention sweeper.
func NewSweeper(store session.Store, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run blocks until the context is canceled, sweeping on each tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("Retention sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce deletes every resolved incident older than the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-s.maxAge)
	removed := 0
	for _, item := range items {
		status, _, _ := incident.DeriveStatusFields(item.State)
		if status != models.StatusResolved {
			continue
		}
		resolvedAt := item.State.ResolvedAt
		if resolvedAt == nil || resolvedAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, item.ID); err != nil {
			s.logger.Error("Failed to delete expired incident",
				"incident_id", item.ID, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("Retention sweep removed resolved incidents",
			"count", removed, "max_age", s.maxAge.String())
	}
	return nil
}
