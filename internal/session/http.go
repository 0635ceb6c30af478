package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CellarSociety/internal/catalog"
	"CellarSociety/internal/records"
	"CellarSociety/pkg/kit"
)

const tokenTTL = 24 * time.Hour

type ctxKey string

const sessionKey ctxKey = "session"

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok
}

type Server struct {
	Sessions *Manager
	Catalog  *catalog.Catalog
	Orders   OrderPlacer
	JWT      *TokenMaker
	Log      *zap.Logger

	// Limiter, when set, throttles session creation and checkout per IP.
	Limiter *kit.IPRateLimiter
}

// Routes mounts session creation plus everything scoped to a live
// session: cart, checkout, and the recency logs.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	limited := func(next http.Handler) http.Handler {
		if s.Limiter == nil {
			return next
		}
		return s.Limiter.Middleware(next)
	}

	r.With(limited).Post("/", s.create)

	r.Group(func(pr chi.Router) {
		pr.Use(s.RequireSession)

		pr.Delete("/", s.end)

		pr.Get("/cart", s.cartGet)
		pr.Post("/cart/items", s.cartAdd)
		pr.Put("/cart/items/{productID}", s.cartUpdate)
		pr.Delete("/cart/items/{productID}", s.cartRemove)
		pr.With(limited).Post("/cart/checkout", s.checkout)

		pr.Get("/history/browsing", s.browsing)
		pr.Get("/history/searches", s.searches)
		pr.Delete("/history", s.clearHistory)
	})

	return r
}

// RequireSession resolves the bearer token to a live session, injects it
// into the request context, and forwards the customer id as the header the
// order routes trust.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFromRequest(r)
		if !ok {
			kit.WriteError(w, r, http.StatusUnauthorized, "no session", nil)
			return
		}

		r.Header.Set("X-Customer-ID", sess.CustomerID)
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalSession is RequireSession without the rejection: anonymous
// requests pass through untouched. Used on shop pages so browsing and
// searching still record history when a session is present.
func (s *Server) OptionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := s.sessionFromRequest(r); ok {
			r.Header.Set("X-Customer-ID", sess.CustomerID)
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionFromRequest(r *http.Request) (*Session, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, false
	}

	claims, err := s.JWT.Parse(strings.TrimPrefix(authz, "Bearer "))
	if err != nil || claims.SessionID == "" {
		return nil, false
	}

	return s.Sessions.Get(claims.SessionID)
}

type createReq struct {
	CustomerID string `json:"customer_id"`
}

type createResp struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "customer_id required", nil)
		return
	}

	sess := s.Sessions.Create(strings.TrimSpace(req.CustomerID))

	token, err := s.JWT.New(sess.ID, sess.CustomerID, tokenTTL)
	if err != nil {
		s.Sessions.End(sess.ID)
		s.serverError(w, r, "token sign failed", err)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, createResp{SessionID: sess.ID, Token: token})
}

func (s *Server) end(w http.ResponseWriter, r *http.Request) {
	sess, _ := FromContext(r.Context())
	s.Sessions.End(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

type cartResp struct {
	Lines      []Line `json:"lines"`
	TotalCents int64  `json:"total_cents"`
}

func (s *Server) cartGet(w http.ResponseWriter, r *http.Request) {
	sess, _ := FromContext(r.Context())
	lines, total := sess.CartSnapshot()
	kit.WriteJSON(w, http.StatusOK, cartResp{Lines: lines, TotalCents: total})
}

type cartItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) cartAdd(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	sess, _ := FromContext(r.Context())
	if err := sess.CartAdd(s.Catalog.Index, req.ProductID, req.Quantity); err != nil {
		s.writeCartError(w, r, err)
		return
	}

	lines, total := sess.CartSnapshot()
	kit.WriteJSON(w, http.StatusOK, cartResp{Lines: lines, TotalCents: total})
}

type cartQtyReq struct {
	Quantity int `json:"quantity"`
}

func (s *Server) cartUpdate(w http.ResponseWriter, r *http.Request) {
	var req cartQtyReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}

	sess, _ := FromContext(r.Context())
	if err := sess.CartUpdate(s.Catalog.Index, chi.URLParam(r, "productID"), req.Quantity); err != nil {
		s.writeCartError(w, r, err)
		return
	}

	lines, total := sess.CartSnapshot()
	kit.WriteJSON(w, http.StatusOK, cartResp{Lines: lines, TotalCents: total})
}

func (s *Server) cartRemove(w http.ResponseWriter, r *http.Request) {
	sess, _ := FromContext(r.Context())
	if !sess.CartRemove(chi.URLParam(r, "productID")) {
		kit.WriteError(w, r, http.StatusNotFound, "not in cart", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	sess, _ := FromContext(r.Context())

	orders, err := sess.Checkout(r.Context(), s.Catalog.Index, s.Orders)
	if err != nil {
		var ce *CheckoutError
		switch {
		case errors.Is(err, ErrEmptyCart):
			kit.WriteError(w, r, http.StatusBadRequest, "cart is empty", nil)
		case errors.As(err, &ce):
			kit.WriteError(w, r, http.StatusConflict, "stock conflicts", map[string]any{"conflicts": ce.Conflicts})
		case errors.Is(err, records.ErrInsufficientStock):
			// Lost the race at the store after index validation passed.
			kit.WriteError(w, r, http.StatusConflict, "stock conflicts", map[string]any{"reason": err.Error()})
		default:
			s.serverError(w, r, "checkout failed", err)
		}
		return
	}

	kit.WriteJSON(w, http.StatusCreated, orders)
}

// browseEntry is a history entry resolved to the product it referenced.
// Products deleted since the visit are dropped.
type browseEntry struct {
	Product records.Product `json:"product"`
	At      time.Time       `json:"at"`
}

func (s *Server) browsing(w http.ResponseWriter, r *http.Request) {
	sess, _ := FromContext(r.Context())

	entries := sess.RecentBrowsing()
	out := make([]browseEntry, 0, len(entries))
	for _, e := range entries {
		if p, ok := s.Catalog.Index.Get(e.Value); ok {
			out = append(out, browseEntry{Product: p, At: e.At})
		}
	}
	kit.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) searches(w http.ResponseWriter, r *http.Request) {
	sess, _ := FromContext(r.Context())
	kit.WriteJSON(w, http.StatusOK, sess.RecentSearches())
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	sess, _ := FromContext(r.Context())
	sess.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBadQuantity):
		kit.WriteError(w, r, http.StatusBadRequest, "quantity must be positive", nil)
	case errors.Is(err, ErrUnknownProduct):
		kit.WriteError(w, r, http.StatusNotFound, "unknown product", nil)
	case errors.Is(err, records.ErrInsufficientStock):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", map[string]any{"reason": err.Error()})
	default:
		s.serverError(w, r, "cart operation failed", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if s.Log != nil {
		s.Log.Error(msg, zap.Error(err))
	}
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}
