package run

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_Create(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	t.Run("successfully create run", func(t *testing.T) {
		r := createRun("configs/site.yaml", StatusPending)
		require.NoError(t, store.Create(ctx, r))
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.Equal(t, StatusPending, r.Status)
	})

	t.Run("create run with default status", func(t *testing.T) {
		r := &Run{ConfigPath: "configs/site.yaml"}
		require.NoError(t, store.Create(ctx, r))
		assert.Equal(t, StatusPending, r.Status)
	})

	t.Run("invalid run returns error", func(t *testing.T) {
		err := store.Create(ctx, &Run{})
		assert.ErrorIs(t, err, ErrInvalidConfigPath)
	})
}

func TestSQLStore_GetByID(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	t.Run("retrieve existing run", func(t *testing.T) {
		r := createRun("configs/site.yaml", StatusPending)
		require.NoError(t, store.Create(ctx, r))

		got, err := store.GetByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
		assert.Equal(t, "configs/site.yaml", got.ConfigPath)
		assert.Equal(t, "current", got.BaseDomain)
		assert.Equal(t, 5.0, got.Threshold)
	})

	t.Run("non-existent run returns error", func(t *testing.T) {
		_, err := store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestSQLStore_Update(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	r := createRun("configs/site.yaml", StatusPending)
	require.NoError(t, store.Create(ctx, r))

	require.NoError(t, store.Update(ctx, r.ID, SetMaxDiff(3.5)))

	got, err := store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.5, got.MaxDiff)

	err = store.Update(ctx, uuid.New(), SetMaxDiff(1))
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLStore_StartComplete(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	r := createRun("configs/site.yaml", StatusPending)
	require.NoError(t, store.Create(ctx, r))

	assert.ErrorIs(t, store.Complete(ctx, r.ID, StatusPassed, ""), ErrRunNotRunning)
	require.NoError(t, store.Start(ctx, r.ID))
	assert.ErrorIs(t, store.Start(ctx, r.ID), ErrRunAlreadyStarted)
	require.NoError(t, store.Complete(ctx, r.ID, StatusPassed, "all shots within threshold"))

	got, err := store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, got.Status)
	assert.Equal(t, "all shots within threshold", got.Message)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLStore_List(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	for _, path := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		require.NoError(t, store.Create(ctx, createRun(path, StatusPending)))
	}

	runs, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	runs, err = store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = store.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLStore_Results(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	r := createRun("configs/site.yaml", StatusPending)
	require.NoError(t, store.Create(ctx, r))

	results := []*Result{
		{Label: "home", Size: "1280", Diff: 7.5, Passed: false},
		{Label: "about", Size: "320", Diff: 0, Passed: true},
		{Label: "home", Size: "320", Diff: 1.25, Passed: true},
	}
	require.NoError(t, store.AddResults(ctx, r.ID, results))
	require.NoError(t, store.AddResults(ctx, r.ID, nil))

	got, err := store.ListResults(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "about", got[0].Label)
	assert.Equal(t, "320", got[1].Size)
	assert.Equal(t, "1280", got[2].Size)
	assert.Equal(t, r.ID, got[2].RunID)
	assert.False(t, got[2].Passed)

	err = store.AddResults(ctx, uuid.New(), []*Result{{Label: "home", Size: "320"}})
	assert.ErrorIs(t, err, ErrRunNotFound)

	none, err := store.ListResults(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
