package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"CellarSociety/internal/catalog"
	"CellarSociety/internal/records"
)

// dupStore reports every product as already present.
type dupStore struct {
	*records.MemStore
}

func (d *dupStore) CreateProduct(ctx context.Context, p records.Product) error {
	return records.ErrProductExists
}

func TestAdminCreateProductConflict(t *testing.T) {
	cat := catalog.New(&dupStore{records.NewMemStore()}, zap.NewNop(), nil)
	srv := &catalog.Server{Catalog: cat, Log: zap.NewNop()}

	ts := httptest.NewServer(srv.AdminRoutes())
	t.Cleanup(ts.Close)

	body := `{"name":"Chateau Margaux","category":"Red","price_cents":12000,"stock":5}`
	resp, err := http.Post(ts.URL+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 0, cat.Index.Len(), "a rejected create must not reach the index")
}
