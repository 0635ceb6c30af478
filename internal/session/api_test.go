package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CellarSociety/internal/catalog"
	"CellarSociety/internal/order"
	"CellarSociety/internal/records"
	"CellarSociety/internal/session"
)

// newStorefrontTS assembles the storefront router the way the service
// binary does, over an in-memory store seeded with two wines.
func newStorefrontTS(t *testing.T) *httptest.Server {
	t.Helper()

	store := records.NewMemStore()
	log := zap.NewNop()

	cat := catalog.New(store, log, nil)
	orders := order.New(store, cat, log, nil)

	ctx := context.Background()
	seed := []records.Product{
		{ID: "p1", Name: "Chateau Margaux", Category: "Red", Region: "Bordeaux", Vintage: 2015, PriceCents: 12000, Stock: 5},
		{ID: "p2", Name: "Cloudy Bay", Category: "White", Region: "Marlborough", Vintage: 2021, PriceCents: 3500, Stock: 2},
	}
	for _, p := range seed {
		if err := cat.Create(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	sessions := session.NewManager(log, nil)
	sessServer := &session.Server{
		Sessions: sessions,
		Catalog:  cat,
		Orders:   orders,
		JWT:      session.NewTokenMaker("test-secret"),
		Log:      log,
	}

	catServer := &catalog.Server{
		Catalog: cat,
		Log:     log,
		Viewed: func(ctx context.Context, productID string) {
			if sess, ok := session.FromContext(ctx); ok {
				sess.RecordBrowse(productID)
			}
		},
		Searched: func(ctx context.Context, term string) {
			if sess, ok := session.FromContext(ctx); ok {
				sess.RecordSearch(term)
			}
		},
	}

	orderServer := &order.Server{Orders: orders, Log: log}

	r := chi.NewRouter()
	r.With(sessServer.OptionalSession).Mount("/products", catServer.Routes())
	r.Mount("/session", sessServer.Routes())
	r.With(sessServer.RequireSession).Mount("/orders", orderServer.CustomerRoutes())

	return httptest.NewServer(r)
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func openSession(t *testing.T, c *http.Client, base, customerID string) string {
	t.Helper()

	resp, raw := doJSON(t, c, http.MethodPost, base+"/session", map[string]any{
		"customer_id": customerID,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status=%d body=%s", resp.StatusCode, string(raw))
	}

	var created struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode session: %v body=%s", err, string(raw))
	}
	if created.Token == "" {
		t.Fatalf("empty token")
	}
	return created.Token
}

func TestStorefront_BrowseCartCheckout(t *testing.T) {
	ts := newStorefrontTS(t)
	t.Cleanup(ts.Close)

	c := &http.Client{}
	token := openSession(t, c, ts.URL, "c1")
	authed := map[string]string{"Authorization": "Bearer " + token}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/products/p1", nil, authed)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get product status=%d body=%s", resp.StatusCode, string(raw))
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/session/history/browsing", nil, authed)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("browsing history status=%d body=%s", resp.StatusCode, string(raw))
		}

		var entries []struct {
			Product records.Product `json:"product"`
		}
		if err := json.Unmarshal(raw, &entries); err != nil {
			t.Fatalf("decode history: %v body=%s", err, string(raw))
		}
		if len(entries) != 1 || entries[0].Product.ID != "p1" {
			t.Fatalf("history=%s", string(raw))
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/session/cart/items", map[string]any{
			"product_id": "p1",
			"quantity":   2,
		}, authed)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("cart add status=%d body=%s", resp.StatusCode, string(raw))
		}

		var cart struct {
			TotalCents int64 `json:"total_cents"`
		}
		if err := json.Unmarshal(raw, &cart); err != nil {
			t.Fatalf("decode cart: %v body=%s", err, string(raw))
		}
		if cart.TotalCents != 24000 {
			t.Fatalf("total_cents=%d", cart.TotalCents)
		}
	}

	var orderID string
	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/session/cart/checkout", nil, authed)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("checkout status=%d body=%s", resp.StatusCode, string(raw))
		}

		var placed []records.Order
		if err := json.Unmarshal(raw, &placed); err != nil {
			t.Fatalf("decode orders: %v body=%s", err, string(raw))
		}
		if len(placed) != 1 {
			t.Fatalf("orders=%d", len(placed))
		}
		if placed[0].Status != records.StatusPending {
			t.Fatalf("status=%s", placed[0].Status)
		}
		if placed[0].TotalCents != 24000 {
			t.Fatalf("total_cents=%d", placed[0].TotalCents)
		}
		orderID = placed[0].ID
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/session/cart", nil, authed)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("cart get status=%d", resp.StatusCode)
		}

		var cart struct {
			Lines []session.Line `json:"lines"`
		}
		if err := json.Unmarshal(raw, &cart); err != nil {
			t.Fatalf("decode cart: %v body=%s", err, string(raw))
		}
		if len(cart.Lines) != 0 {
			t.Fatalf("cart not cleared: %s", string(raw))
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/orders/"+orderID, nil, authed)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get order status=%d body=%s", resp.StatusCode, string(raw))
		}

		var got records.Order
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode order: %v body=%s", err, string(raw))
		}
		if got.CustomerID != "c1" {
			t.Fatalf("customer=%s", got.CustomerID)
		}
	}

	// Stock visible on the shop page reflects the placed order.
	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/products/p1", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get product status=%d", resp.StatusCode)
		}

		var p records.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("decode product: %v", err)
		}
		if p.Stock != 3 {
			t.Fatalf("stock=%d", p.Stock)
		}
	}

	// Cancelling puts the units back.
	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/orders/"+orderID+"/cancel", nil, authed)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("cancel status=%d body=%s", resp.StatusCode, string(raw))
		}

		resp, raw = doJSON(t, c, http.MethodGet, ts.URL+"/products/p1", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get product status=%d", resp.StatusCode)
		}
		var p records.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("decode product: %v body=%s", err, string(raw))
		}
		if p.Stock != 5 {
			t.Fatalf("stock=%d", p.Stock)
		}
	}
}

func TestStorefront_CartRequiresSession(t *testing.T) {
	ts := newStorefrontTS(t)
	t.Cleanup(ts.Close)

	c := &http.Client{}

	resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/session/cart", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, c, http.MethodPost, ts.URL+"/session/cart/items", map[string]any{
		"product_id": "p1",
		"quantity":   1,
	}, map[string]string{"Authorization": "Bearer not-a-token"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
}

func TestStorefront_CartAddOverStock(t *testing.T) {
	ts := newStorefrontTS(t)
	t.Cleanup(ts.Close)

	c := &http.Client{}
	token := openSession(t, c, ts.URL, "c1")
	authed := map[string]string{"Authorization": "Bearer " + token}

	resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/session/cart/items", map[string]any{
		"product_id": "p2",
		"quantity":   3,
	}, authed)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
}

func TestStorefront_CheckoutConflictKeepsCart(t *testing.T) {
	ts := newStorefrontTS(t)
	t.Cleanup(ts.Close)

	c := &http.Client{}

	first := openSession(t, c, ts.URL, "c1")
	second := openSession(t, c, ts.URL, "c2")
	authedFirst := map[string]string{"Authorization": "Bearer " + first}
	authedSecond := map[string]string{"Authorization": "Bearer " + second}

	// Both sessions want both bottles of p2; only one checkout can win.
	for _, h := range []map[string]string{authedFirst, authedSecond} {
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/session/cart/items", map[string]any{
			"product_id": "p2",
			"quantity":   2,
		}, h)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("cart add status=%d body=%s", resp.StatusCode, string(raw))
		}
	}

	resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/session/cart/checkout", nil, authedFirst)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first checkout status=%d body=%s", resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, c, http.MethodPost, ts.URL+"/session/cart/checkout", nil, authedSecond)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second checkout status=%d body=%s", resp.StatusCode, string(raw))
	}

	var body struct {
		Details struct {
			Conflicts []session.CheckoutConflict `json:"conflicts"`
		} `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode conflict: %v body=%s", err, string(raw))
	}
	if len(body.Details.Conflicts) != 1 {
		t.Fatalf("conflicts=%s", string(raw))
	}
	got := body.Details.Conflicts[0]
	if got.ProductID != "p2" || got.Requested != 2 || got.Available != 0 {
		t.Fatalf("conflict=%+v", got)
	}

	// The losing cart is intact for the customer to adjust.
	resp, raw = doJSON(t, c, http.MethodGet, ts.URL+"/session/cart", nil, authedSecond)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cart get status=%d", resp.StatusCode)
	}
	var cart struct {
		Lines []session.Line `json:"lines"`
	}
	if err := json.Unmarshal(raw, &cart); err != nil {
		t.Fatalf("decode cart: %v body=%s", err, string(raw))
	}
	if len(cart.Lines) != 1 {
		t.Fatalf("cart=%s", string(raw))
	}
}

func TestStorefront_SearchRecordsHistory(t *testing.T) {
	ts := newStorefrontTS(t)
	t.Cleanup(ts.Close)

	c := &http.Client{}
	token := openSession(t, c, ts.URL, "c1")
	authed := map[string]string{"Authorization": "Bearer " + token}

	resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/products/search?q=margaux", nil, authed)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status=%d body=%s", resp.StatusCode, string(raw))
	}

	var hits []records.Product
	if err := json.Unmarshal(raw, &hits); err != nil {
		t.Fatalf("decode search: %v body=%s", err, string(raw))
	}
	if len(hits) != 1 || hits[0].ID != "p1" {
		t.Fatalf("hits=%s", string(raw))
	}

	resp, raw = doJSON(t, c, http.MethodGet, ts.URL+"/session/history/searches", nil, authed)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search history status=%d", resp.StatusCode)
	}

	var terms []session.HistoryEntry[string]
	if err := json.Unmarshal(raw, &terms); err != nil {
		t.Fatalf("decode history: %v body=%s", err, string(raw))
	}
	if len(terms) != 1 || terms[0].Value != "margaux" {
		t.Fatalf("terms=%s", string(raw))
	}
}
