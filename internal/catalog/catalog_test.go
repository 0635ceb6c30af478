package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"CellarSociety/internal/catalog"
	"CellarSociety/internal/records"
)

func newCatalog(t *testing.T) (*catalog.Catalog, *records.MemStore) {
	t.Helper()
	store := records.NewMemStore()
	return catalog.New(store, zap.NewNop(), nil), store
}

func TestCatalogCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	p := wine("p1", "Red", 4500, 6)
	require.NoError(t, cat.Create(ctx, p))

	got, err := cat.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	assert.ErrorIs(t, cat.Create(ctx, p), records.ErrProductExists)

	require.NoError(t, cat.Delete(ctx, "p1"))
	_, err = cat.Get(ctx, "p1")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	assert.ErrorIs(t, cat.Delete(ctx, "p1"), catalog.ErrNotFound)
}

func TestCatalogUpdateMovesIndexViews(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	p := wine("p1", "Red", 4500, 6)
	require.NoError(t, cat.Create(ctx, p))

	p.Category = "White"
	p.PriceCents = 9000
	require.NoError(t, cat.Update(ctx, p))

	assert.Empty(t, cat.ListByCategory("Red"))
	white := cat.ListByCategory("White")
	require.Len(t, white, 1)
	assert.Equal(t, int64(9000), white[0].PriceCents)

	assert.Empty(t, cat.RangeByPrice(4500, 4500))
	assert.Len(t, cat.RangeByPrice(9000, 9000), 1)
}

func TestCatalogUpdateUnknownProduct(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	err := cat.Update(ctx, wine("ghost", "Red", 100, 1))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCatalogDivergenceTriggersRebuild(t *testing.T) {
	ctx := context.Background()
	cat, store := newCatalog(t)

	require.NoError(t, cat.Create(ctx, wine("p1", "Red", 4500, 6)))

	// Write behind the catalog's back so the index misses a live record.
	stray := wine("p2", "White", 2000, 3)
	require.NoError(t, store.CreateProduct(ctx, stray))

	_, ok := cat.Index.Get("p2")
	require.False(t, ok)

	got, err := cat.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, stray, got)

	// The whole index was rebuilt from the store, not just the one entry.
	assert.Equal(t, 2, cat.Index.Len())
	_, ok = cat.Index.Get("p2")
	assert.True(t, ok)
}

func TestCatalogWarmUp(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemStore()
	require.NoError(t, store.CreateProduct(ctx, wine("p1", "Red", 100, 1)))
	require.NoError(t, store.CreateProduct(ctx, wine("p2", "Rose", 200, 2)))

	cat := catalog.New(store, zap.NewNop(), nil)
	require.NoError(t, cat.WarmUp(ctx))

	assert.Equal(t, 2, cat.Index.Len())
	assert.Len(t, cat.ListByCategory("Rose"), 1)
}

func TestCatalogSearch(t *testing.T) {
	ctx := context.Background()
	cat, _ := newCatalog(t)

	a := wine("p1", "Red", 100, 1)
	a.Name = "Chateau Margaux"
	a.Region = "Bordeaux"
	b := wine("p2", "White", 200, 1)
	b.Name = "Cloudy Bay"
	b.Region = "Marlborough"
	require.NoError(t, cat.Create(ctx, a))
	require.NoError(t, cat.Create(ctx, b))

	got := cat.Search("margaux")
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)

	got = cat.Search("MARLBOROUGH")
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)

	assert.Len(t, cat.Search(""), 2)
	assert.Empty(t, cat.Search("burgundy"))
}

func TestCatalogReloadTracksStock(t *testing.T) {
	ctx := context.Background()
	cat, store := newCatalog(t)

	require.NoError(t, cat.Create(ctx, wine("p1", "Red", 100, 10)))

	ok, err := store.RestockProduct(ctx, "p1", 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, cat.Reload(ctx, "p1"))

	got, _ := cat.Index.Get("p1")
	assert.Equal(t, 15, got.Stock)

	// Reload of a store-deleted product drops the index entry.
	_, err = store.DeleteProduct(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, cat.Reload(ctx, "p1"))
	_, ok = cat.Index.Get("p1")
	assert.False(t, ok)
}
