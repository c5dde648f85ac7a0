package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resilix/resilix/pkg/models"
	"github.com/resilix/resilix/pkg/session"
)

func resolvedState(incidentID string, resolvedAt time.Time) *models.IncidentState {
	return &models.IncidentState{
		IncidentID: incidentID,
		CreatedAt:  resolvedAt.Add(-time.Hour),
		ResolvedAt: &resolvedAt,
		RemediationResult: &models.RemediationResult{
			Success:     true,
			ActionTaken: models.ActionFixCode,
			PRNumber:    1234,
			PRMerged:    true,
		},
	}
}

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	sweeper := NewSweeper(store, 30*24*time.Hour, time.Hour)

	now := time.Now().UTC()

	// Resolved well past the retention window.
	require.NoError(t, store.Save(ctx, "INC-old-resolved",
		resolvedState("INC-old-resolved", now.Add(-45*24*time.Hour))))

	// Resolved recently.
	require.NoError(t, store.Save(ctx, "INC-new-resolved",
		resolvedState("INC-new-resolved", now.Add(-time.Hour))))

	// Old but still processing; must never be swept.
	require.NoError(t, store.Save(ctx, "INC-old-open", &models.IncidentState{
		IncidentID: "INC-old-open",
		CreatedAt:  now.Add(-60 * 24 * time.Hour),
	}))

	require.NoError(t, sweeper.SweepOnce(ctx))

	_, err := store.Get(ctx, "INC-old-resolved")
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = store.Get(ctx, "INC-new-resolved")
	assert.NoError(t, err)

	_, err = store.Get(ctx, "INC-old-open")
	assert.NoError(t, err)
}

func TestSweepOnce_ResolvedWithoutTimestampKept(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	sweeper := NewSweeper(store, time.Hour, time.Hour)

	state := resolvedState("INC-no-ts", time.Now().UTC())
	state.ResolvedAt = nil
	require.NoError(t, store.Save(ctx, "INC-no-ts", state))

	require.NoError(t, sweeper.SweepOnce(ctx))

	_, err := store.Get(ctx, "INC-no-ts")
	assert.NoError(t, err)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := session.NewMemoryStore()
	sweeper := NewSweeper(store, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
