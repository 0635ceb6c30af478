package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"CellarSociety/internal/records"
	"CellarSociety/pkg/kit"
)

var ErrNotFound = errors.New("product not found")

// Catalog is the product read/write surface. Reads are answered from the
// in-memory Index; the authoritative store is consulted only on an index
// miss or at warm-up. Mutations write the store first, then the index, as
// one logical operation.
type Catalog struct {
	Store   records.Store
	Index   *Index
	Log     *zap.Logger
	Metrics *kit.IndexMetrics
}

func New(store records.Store, log *zap.Logger, metrics *kit.IndexMetrics) *Catalog {
	return &Catalog{
		Store:   store,
		Index:   NewIndex(),
		Log:     log,
		Metrics: metrics,
	}
}

// WarmUp fills the index from the authoritative store. Called at process
// start before the service accepts traffic.
func (c *Catalog) WarmUp(ctx context.Context) error {
	return c.rebuild(ctx)
}

// Get answers from the index. A miss is re-checked against the store: if
// the store has the record the index has diverged, which triggers exactly
// one rebuild before answering. A miss in both places is ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (records.Product, error) {
	if p, ok := c.Index.Get(id); ok {
		c.Metrics.CacheHit()
		return p, nil
	}
	c.Metrics.CacheMiss()

	p, ok, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return records.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	if !ok {
		return records.Product{}, ErrNotFound
	}

	// The store knows a product the index does not: divergence. Rebuild
	// once from the authoritative table, then answer with the store copy.
	if c.Log != nil {
		c.Log.Warn("product index diverged from store", zap.String("product_id", id))
	}
	if err := c.rebuild(ctx); err != nil {
		return records.Product{}, fmt.Errorf("rebuild after divergence on %s: %w", id, err)
	}
	return p, nil
}

func (c *Catalog) Create(ctx context.Context, p records.Product) error {
	if err := c.Store.CreateProduct(ctx, p); err != nil {
		return fmt.Errorf("create product %s: %w", p.ID, err)
	}
	c.Index.Put(p)
	return nil
}

func (c *Catalog) Update(ctx context.Context, p records.Product) error {
	if _, ok := c.Index.Get(p.ID); !ok {
		if _, found, err := c.Store.GetProduct(ctx, p.ID); err != nil {
			return fmt.Errorf("update product %s: %w", p.ID, err)
		} else if !found {
			return ErrNotFound
		}
	}

	if err := c.Store.UpdateProduct(ctx, p); err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	c.Index.Put(p)
	return nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	deleted, err := c.Store.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if !deleted {
		return ErrNotFound
	}
	c.Index.Remove(id)
	return nil
}

// Reload refreshes one product's index entry from the store. Used after
// operations that change stock outside the catalog write path, such as
// checkout and order cancellation.
func (c *Catalog) Reload(ctx context.Context, id string) error {
	p, ok, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("reload product %s: %w", id, err)
	}
	if !ok {
		c.Index.Remove(id)
		return nil
	}
	c.Index.Put(p)
	return nil
}

// List returns every indexed product sorted by id.
func (c *Catalog) List() []records.Product {
	out := c.Index.All()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) ListByCategory(category string) []records.Product {
	return c.Index.ListByCategory(category)
}

func (c *Catalog) RangeByPrice(minCents, maxCents int64) []records.Product {
	return c.Index.RangeByPrice(minCents, maxCents)
}

// Search filters indexed products by a case-insensitive substring match on
// name and region, the same matching the storefront shop page offers.
func (c *Catalog) Search(q string) []records.Product {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return c.List()
	}

	out := make([]records.Product, 0, 8)
	for _, p := range c.List() {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Region), q) {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) rebuild(ctx context.Context) error {
	all, err := c.Store.LoadAllProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	c.Index.Rebuild(all)
	c.Metrics.RebuildDone()

	if c.Log != nil {
		c.Log.Info("product index rebuilt", zap.Int("products", len(all)))
	}
	return nil
}
