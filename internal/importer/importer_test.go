package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siamwms/asrsd/internal/store"
	"github.com/siamwms/asrsd/pkg/wms"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		require.NoError(t, st.UpsertShelf(ctx, wms.Shelf{ID: id, Column: int(id), Row: 1, CanUse: true}))
	}
	return st
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("canonical headers", func(t *testing.T) {
		st := setupStore(t)
		csv := "basket_id,shelf_id\nB000000005,1\nB000000006,2\n"

		res, err := Import(ctx, st, strings.NewReader(csv), false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Upserted)
		assert.Equal(t, 0, res.Skipped)

		m, err := st.MappingForBasket(ctx, "B000000005")
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.ShelfID)
	})

	t.Run("spreadsheet header aliases and float shelf values", func(t *testing.T) {
		st := setupStore(t)
		csv := "Code,Shelf\n5,1.0\nb6,2.0\n"

		res, err := Import(ctx, st, strings.NewReader(csv), false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Upserted)

		m, err := st.MappingForBasket(ctx, "B000000006")
		require.NoError(t, err)
		assert.Equal(t, int64(2), m.ShelfID)
	})

	t.Run("skips empty and malformed rows", func(t *testing.T) {
		st := setupStore(t)
		csv := "basket_id,shelf_id\n,1\nnot-a-basket,2\nB000000007,\nB000000008,3\n"

		res, err := Import(ctx, st, strings.NewReader(csv), false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Upserted)
		assert.Equal(t, 3, res.Skipped)

		_, err = st.MappingForBasket(ctx, "B000000007")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		st := setupStore(t)
		csv := "basket_id,shelf_id\nB000000005,1\n"

		res, err := Import(ctx, st, strings.NewReader(csv), true)
		require.NoError(t, err)
		assert.True(t, res.DryRun)
		assert.Equal(t, 0, res.Upserted)

		_, err = st.MappingForBasket(ctx, "B000000005")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("re-import reassigns shelves", func(t *testing.T) {
		st := setupStore(t)
		_, err := Import(ctx, st, strings.NewReader("basket_id,shelf_id\nB000000005,1\n"), false)
		require.NoError(t, err)
		_, err = Import(ctx, st, strings.NewReader("basket_id,shelf_id\nB000000005,3\n"), false)
		require.NoError(t, err)

		m, err := st.MappingForBasket(ctx, "B000000005")
		require.NoError(t, err)
		assert.Equal(t, int64(3), m.ShelfID)
	})

	t.Run("missing basket column", func(t *testing.T) {
		st := setupStore(t)
		_, err := Import(ctx, st, strings.NewReader("foo,bar\n1,2\n"), false)
		assert.Error(t, err)
	})
}
