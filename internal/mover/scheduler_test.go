package mover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siamwms/asrsd/pkg/wms"
)

func TestSelectNext(t *testing.T) {
	ctx := context.Background()

	t.Run("idle when both queues are empty", func(t *testing.T) {
		m, _, _ := setupMover(t)
		method, job, mapping, err := m.selectNext(ctx, commandWindow)
		require.NoError(t, err)
		assert.Nil(t, job)
		assert.Nil(t, mapping)
		assert.Empty(t, string(method))
	})

	t.Run("pick wins when created no later than put", func(t *testing.T) {
		m, _, st := setupMover(t)
		require.NoError(t, st.UpsertMapping(ctx, "1", 1))
		require.NoError(t, st.UpsertMapping(ctx, "2", 2))

		_, err := st.EnqueuePick(ctx, "1", 1, 1, 0)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		_, err = st.EnqueuePut(ctx, "2", 2, 5, 0)
		require.NoError(t, err)

		method, job, mapping, err := m.selectNext(ctx, commandWindow)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, wms.MethodPick, method)
		assert.Equal(t, "B000000001", job.Basket)
		assert.Equal(t, int64(1), mapping.ShelfID)
	})

	t.Run("earlier put wins over later pick", func(t *testing.T) {
		m, _, st := setupMover(t)
		require.NoError(t, st.UpsertMapping(ctx, "1", 1))
		require.NoError(t, st.UpsertMapping(ctx, "2", 2))

		_, err := st.EnqueuePut(ctx, "2", 2, 5, 0)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		_, err = st.EnqueuePick(ctx, "1", 1, 1, 0)
		require.NoError(t, err)

		method, job, _, err := m.selectNext(ctx, commandWindow)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, wms.MethodPut, method)
		assert.Equal(t, "B000000002", job.Basket)
	})

	t.Run("prunes rows with no mapping", func(t *testing.T) {
		m, _, st := setupMover(t)
		require.NoError(t, st.UpsertMapping(ctx, "2", 2))

		// Basket 9 has no mapping; it is garbage and must be removed.
		_, err := st.EnqueuePick(ctx, "9", 1, 1, 0)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		_, err = st.EnqueuePick(ctx, "2", 2, 5, 0)
		require.NoError(t, err)

		method, job, _, err := m.selectNext(ctx, commandWindow)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, wms.MethodPick, method)
		assert.Equal(t, "B000000002", job.Basket)

		picks, _, err := st.NextWindow(ctx, commandWindow)
		require.NoError(t, err)
		require.Len(t, picks, 1)
		assert.Equal(t, "B000000002", picks[0].Basket)
	})

	t.Run("skips but keeps rows on unusable shelves", func(t *testing.T) {
		m, _, st := setupMover(t)
		require.NoError(t, st.UpsertMapping(ctx, "4", 4)) // shelf 4: can_use false
		require.NoError(t, st.UpsertMapping(ctx, "2", 2))

		_, err := st.EnqueuePick(ctx, "4", 4, 1, 0)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		_, err = st.EnqueuePick(ctx, "2", 2, 5, 0)
		require.NoError(t, err)

		_, job, _, err := m.selectNext(ctx, commandWindow)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, "B000000002", job.Basket)

		// The unusable-shelf row is retried later, not pruned.
		picks, _, err := st.NextWindow(ctx, commandWindow)
		require.NoError(t, err)
		assert.Len(t, picks, 2)
	})

	t.Run("all candidates blocked reports idle", func(t *testing.T) {
		m, _, st := setupMover(t)
		require.NoError(t, st.UpsertMapping(ctx, "4", 4))
		_, err := st.EnqueuePut(ctx, "4", 4, 1, 0)
		require.NoError(t, err)

		_, job, _, err := m.selectNext(ctx, commandWindow)
		require.NoError(t, err)
		assert.Nil(t, job)
	})
}
