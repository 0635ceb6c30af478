package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"CellarSociety/internal/records"
	"CellarSociety/pkg/kit"
)

type Server struct {
	Catalog *Catalog
	Log     *zap.Logger

	// Viewed and Searched are notification hooks the storefront wires to
	// the session layer so product visits and search terms land in the
	// session's recency logs. Nil hooks are skipped.
	Viewed   func(ctx context.Context, productID string)
	Searched func(ctx context.Context, term string)
}

// Routes is the customer-facing read surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.list)
	r.Get("/search", s.search)
	r.Get("/range", s.priceRange)
	r.Get("/category/{category}", s.byCategory)
	r.Get("/{id}", s.get)

	return r
}

// AdminRoutes is the product CRUD surface.
func (s *Server) AdminRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.list)
	r.Post("/", s.createProduct)
	r.Get("/{id}", s.get)
	r.Put("/{id}", s.updateProduct)
	r.Delete("/{id}", s.deleteProduct)

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.List())
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.Catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
			return
		}
		s.serverError(w, r, "get product failed", err)
		return
	}

	if s.Viewed != nil {
		s.Viewed(r.Context(), id)
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) byCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if !records.ValidCategory(category) {
		kit.WriteError(w, r, http.StatusBadRequest, "unknown category", map[string]any{"category": category})
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Catalog.ListByCategory(category))
}

func (s *Server) priceRange(w http.ResponseWriter, r *http.Request) {
	minCents, err := parseCents(r.URL.Query().Get("min_cents"), 0)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad min_cents", nil)
		return
	}
	maxCents, err := parseCents(r.URL.Query().Get("max_cents"), 1<<62)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad max_cents", nil)
		return
	}
	if minCents > maxCents {
		kit.WriteError(w, r, http.StatusBadRequest, "min_cents above max_cents", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, s.Catalog.RangeByPrice(minCents, maxCents))
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	if q != "" && s.Searched != nil {
		s.Searched(r.Context(), q)
	}
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Search(q))
}

type productReq struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Region      string  `json:"region"`
	Vintage     int     `json:"vintage"`
	PriceCents  int64   `json:"price_cents"`
	AlcoholPct  float64 `json:"alcohol_pct"`
	Stock       int     `json:"stock"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
}

func (req *productReq) validate() (string, bool) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name required", false
	case !records.ValidCategory(req.Category):
		return "unknown category", false
	case req.PriceCents < 0:
		return "price_cents must be non-negative", false
	case req.Stock < 0:
		return "stock must be non-negative", false
	}
	return "", true
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if msg, ok := req.validate(); !ok {
		kit.WriteError(w, r, http.StatusBadRequest, msg, nil)
		return
	}

	p := records.Product{
		ID:          "p_" + uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Category:    req.Category,
		Region:      req.Region,
		Vintage:     req.Vintage,
		PriceCents:  req.PriceCents,
		AlcoholPct:  req.AlcoholPct,
		Stock:       req.Stock,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.Catalog.Create(r.Context(), p); err != nil {
		if errors.Is(err, records.ErrProductExists) {
			kit.WriteError(w, r, http.StatusConflict, "product exists", map[string]any{"id": p.ID})
			return
		}
		s.serverError(w, r, "create product failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if msg, ok := req.validate(); !ok {
		kit.WriteError(w, r, http.StatusBadRequest, msg, nil)
		return
	}

	prev, err := s.Catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
			return
		}
		s.serverError(w, r, "get product failed", err)
		return
	}

	p := records.Product{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Category:    req.Category,
		Region:      req.Region,
		Vintage:     req.Vintage,
		PriceCents:  req.PriceCents,
		AlcoholPct:  req.AlcoholPct,
		Stock:       req.Stock,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		CreatedAt:   prev.CreatedAt,
	}

	if err := s.Catalog.Update(r.Context(), p); err != nil {
		s.serverError(w, r, "update product failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.Catalog.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
			return
		}
		s.serverError(w, r, "delete product failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseCents(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, errors.New("bad cents value")
	}
	return v, nil
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if s.Log != nil {
		s.Log.Error(msg, zap.Error(err))
	}
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}
