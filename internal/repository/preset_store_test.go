package repository

import (
	"context"
	"testing"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPresetStore(t *testing.T) *PresetStore {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	t.Cleanup(func() { _ = mc.Close() })
	return NewPresetStore(mc)
}

func TestPresetStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newPresetStore(t)
	events := []models.ScheduledEvent{{Time: t0, Title: "CPI", Impact: models.ImpactHigh}}

	require.NoError(t, s.Save(ctx, "cpi-week", events))
	require.NoError(t, s.Save(ctx, "empty", nil))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cpi-week", "empty"}, names)

	got, err := s.Load(ctx, "cpi-week")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CPI", got[0].Title)
	assert.True(t, got[0].Time.Equal(t0))

	got, err = s.Load(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Delete(ctx, "empty"))
	assert.ErrorIs(t, s.Delete(ctx, "empty"), domrepo.ErrPresetNotFound)
	_, err = s.Load(ctx, "empty")
	assert.ErrorIs(t, err, domrepo.ErrPresetNotFound)
}

func TestPresetStoreRename(t *testing.T) {
	ctx := context.Background()
	s := newPresetStore(t)
	require.NoError(t, s.Save(ctx, "a", []models.ScheduledEvent{{Time: t0, Title: "NFP"}}))
	require.NoError(t, s.Save(ctx, "b", nil))

	assert.ErrorIs(t, s.Rename(ctx, "missing", "c"), domrepo.ErrPresetNotFound)
	assert.ErrorIs(t, s.Rename(ctx, "a", "b"), domrepo.ErrPresetExists)

	require.NoError(t, s.Rename(ctx, "a", "c"))
	names, _ := s.List(ctx)
	assert.Equal(t, []string{"b", "c"}, names)

	got, err := s.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "NFP", got[0].Title)
}
