package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CellarSociety/internal/records"
	"CellarSociety/pkg/kit"
)

type Server struct {
	Orders *Orders
	Log    *zap.Logger
}

const defaultQueuePage = 20

// CustomerRoutes serves a customer's own orders. Mounted behind the
// session middleware, which supplies the customer id.
func (s *Server) CustomerRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequireCustomerHeader)

	r.Get("/", s.listMine)
	r.Get("/{id}", s.getMine)
	r.Post("/{id}/cancel", s.cancel)
	r.Post("/{id}/received", s.received)

	return r
}

// AdminRoutes serve the processing workflow.
func (s *Server) AdminRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/queue", s.queue)
	r.Get("/{id}", s.get)
	r.Post("/{id}/status", s.setStatus)

	return r
}

func (s *Server) listMine(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no customer", nil)
		return
	}

	status := records.Status(r.URL.Query().Get("status"))
	if status != "" && !records.ValidStatus(status) {
		kit.WriteError(w, r, http.StatusBadRequest, "unknown status", map[string]any{"status": status})
		return
	}

	orders, err := s.Orders.ListByCustomer(r.Context(), cust, status)
	if err != nil {
		s.serverError(w, r, "list orders failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, orders)
}

func (s *Server) getMine(w http.ResponseWriter, r *http.Request) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no customer", nil)
		return
	}

	id := chi.URLParam(r, "id")
	o, err := s.Orders.Get(r.Context(), id)
	if err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	if o.CustomerID != cust {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, o)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	s.customerTransition(w, r, records.StatusCancelled)
}

func (s *Server) received(w http.ResponseWriter, r *http.Request) {
	s.customerTransition(w, r, records.StatusReceived)
}

func (s *Server) customerTransition(w http.ResponseWriter, r *http.Request, to records.Status) {
	cust, ok := CustomerFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no customer", nil)
		return
	}

	id := chi.URLParam(r, "id")
	o, err := s.Orders.Get(r.Context(), id)
	if err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	if o.CustomerID != cust {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	updated, err := s.Orders.Transition(r.Context(), id, to)
	if err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request) {
	n := defaultQueuePage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			kit.WriteError(w, r, http.StatusBadRequest, "bad limit", nil)
			return
		}
		n = v
	}

	orders, err := s.Orders.NextPending(r.Context(), n)
	if err != nil {
		s.serverError(w, r, "queue read failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, orders)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, o)
}

type statusReq struct {
	Status records.Status `json:"status"`
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if !records.ValidStatus(req.Status) {
		kit.WriteError(w, r, http.StatusBadRequest, "unknown status", map[string]any{"status": req.Status})
		return
	}

	o, err := s.Orders.Transition(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.writeOrderError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, o)
}

func (s *Server) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		kit.WriteError(w, r, http.StatusConflict, "invalid transition", map[string]any{"reason": err.Error()})
	default:
		s.serverError(w, r, "order operation failed", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if s.Log != nil {
		s.Log.Error(msg, zap.Error(err))
	}
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}
