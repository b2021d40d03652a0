package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mines-predictor-bot/internal/logging"
	"mines-predictor-bot/internal/models"
	"mines-predictor-bot/internal/services"
	"mines-predictor-bot/internal/storage/memory"
)

func TestBootstrapper_Ensure(t *testing.T) {
	store := memory.New()
	b := services.NewBootstrapper(store, logging.Discard())
	ctx := context.Background()

	inserted, err := b.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, inserted)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, models.DefaultKeys, keys)

	inserted, err = b.Ensure(ctx)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := store.CountKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestBootstrapper_LeavesExistingInventory(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.PutKeys(ctx, []models.KeyRecord{{Name: "CUSTOM-1", DurationDays: 3}}))

	inserted, err := services.NewBootstrapper(store, logging.Discard()).Ensure(ctx)
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = store.GetKey(ctx, "ALPHA-1122")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBootstrapper_CountFailure(t *testing.T) {
	store := newFaultyStore()
	store.keyErr = errBackend

	_, err := services.NewBootstrapper(store, logging.Discard()).Ensure(context.Background())
	assert.ErrorIs(t, err, errBackend)
}
