package catalog

import (
	"sync"

	"github.com/google/btree"

	"CellarSociety/internal/records"
)

const priceTreeDegree = 32

// pricePosting is one (price, product) entry in the ordered price index.
// Ties on price are broken by id so every posting is unique.
type pricePosting struct {
	priceCents int64
	id         string
}

func lessPosting(a, b pricePosting) bool {
	if a.priceCents != b.priceCents {
		return a.priceCents < b.priceCents
	}
	return a.id < b.id
}

// Index holds the three read views over the product table: by id, by
// category, and by price. All views mutate under one lock so no reader can
// observe a product in the id view whose category or price postings are
// missing or stale.
type Index struct {
	mu      sync.RWMutex
	byID    map[string]records.Product
	byCat   map[string][]string
	byPrice *btree.BTreeG[pricePosting]
}

func NewIndex() *Index {
	return &Index{
		byID:    make(map[string]records.Product),
		byCat:   make(map[string][]string),
		byPrice: btree.NewG(priceTreeDegree, lessPosting),
	}
}

// Put inserts or overwrites a product. When overwriting, the postings for
// the previous category and price are removed before the new ones go in,
// so callers never have to sequence the old-key cleanup themselves. The
// prior record is returned for callers that care about the delta.
func (ix *Index) Put(p records.Product) (prev records.Product, existed bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	prev, existed = ix.byID[p.ID]
	if existed {
		ix.dropPostings(prev)
	}

	ix.byID[p.ID] = p
	ix.byCat[p.Category] = append(ix.byCat[p.Category], p.ID)
	ix.byPrice.ReplaceOrInsert(pricePosting{priceCents: p.PriceCents, id: p.ID})
	return prev, existed
}

func (ix *Index) Get(id string) (records.Product, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	p, ok := ix.byID[id]
	return p, ok
}

func (ix *Index) Remove(id string) (records.Product, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	p, ok := ix.byID[id]
	if !ok {
		return records.Product{}, false
	}
	ix.dropPostings(p)
	delete(ix.byID, id)
	return p, true
}

// Rebuild atomically replaces the whole index from a snapshot of the
// authoritative table.
func (ix *Index) Rebuild(all []records.Product) {
	byID := make(map[string]records.Product, len(all))
	byCat := make(map[string][]string)
	byPrice := btree.NewG(priceTreeDegree, lessPosting)

	for _, p := range all {
		byID[p.ID] = p
		byCat[p.Category] = append(byCat[p.Category], p.ID)
		byPrice.ReplaceOrInsert(pricePosting{priceCents: p.PriceCents, id: p.ID})
	}

	ix.mu.Lock()
	ix.byID = byID
	ix.byCat = byCat
	ix.byPrice = byPrice
	ix.mu.Unlock()
}

// ListByCategory returns the products of one category in the order their
// ids entered the index. Unknown categories yield an empty slice.
func (ix *Index) ListByCategory(category string) []records.Product {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := ix.byCat[category]
	out := make([]records.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, ix.byID[id])
	}
	return out
}

// RangeByPrice returns the products with minCents <= price <= maxCents,
// ascending by price. Bounds are inclusive.
func (ix *Index) RangeByPrice(minCents, maxCents int64) []records.Product {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]records.Product, 0, 16)
	ix.byPrice.AscendGreaterOrEqual(pricePosting{priceCents: minCents}, func(pp pricePosting) bool {
		if pp.priceCents > maxCents {
			return false
		}
		out = append(out, ix.byID[pp.id])
		return true
	})
	return out
}

// All returns every indexed product, unordered.
func (ix *Index) All() []records.Product {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]records.Product, 0, len(ix.byID))
	for _, p := range ix.byID {
		out = append(out, p)
	}
	return out
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byID)
}

// dropPostings removes the category and price entries for p. Caller holds
// the write lock.
func (ix *Index) dropPostings(p records.Product) {
	ids := ix.byCat[p.Category]
	for i, id := range ids {
		if id == p.ID {
			ix.byCat[p.Category] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ix.byCat[p.Category]) == 0 {
		delete(ix.byCat, p.Category)
	}

	ix.byPrice.Delete(pricePosting{priceCents: p.PriceCents, id: p.ID})
}
