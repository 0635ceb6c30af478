package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"CellarSociety/internal/records"
)

// Capacities of the per-session recency logs, fixed at construction.
const (
	BrowsingHistoryCap = 50
	SearchHistoryCap   = 10
)

var ErrEmptyCart = errors.New("cart is empty")

// OrderPlacer converts checkout drafts into persistent orders. Satisfied
// by *order.Orders.
type OrderPlacer interface {
	Place(ctx context.Context, drafts []records.OrderDraft) ([]records.Order, error)
}

// Session is the per-customer-visit state: the cart draft plus the
// browsing and search recency logs. One mutex guards all of it, so a
// session whose requests land on different goroutines stays consistent.
type Session struct {
	ID         string
	CustomerID string
	CreatedAt  time.Time

	mu       sync.Mutex
	cart     *Cart
	browsing *History[string]
	searches *History[string]
}

func newSession(id, customerID string) *Session {
	return &Session{
		ID:         id,
		CustomerID: customerID,
		CreatedAt:  time.Now().UTC(),
		cart:       NewCart(),
		browsing:   NewHistory[string](BrowsingHistoryCap),
		searches:   NewHistory[string](SearchHistoryCap),
	}
}

func (s *Session) RecordBrowse(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.browsing.Push(productID)
}

func (s *Session) RecordSearch(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches.Push(term)
}

func (s *Session) RecentBrowsing() []HistoryEntry[string] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browsing.List()
}

func (s *Session) RecentSearches() []HistoryEntry[string] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches.List()
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.browsing.Clear()
	s.searches.Clear()
}

func (s *Session) CartAdd(stock ProductLookup, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Add(stock, productID, qty)
}

func (s *Session) CartUpdate(stock ProductLookup, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Update(stock, productID, qty)
}

func (s *Session) CartRemove(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Remove(productID)
}

func (s *Session) CartSnapshot() ([]Line, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot(), s.cart.TotalCents()
}

// Checkout converts the whole cart into orders or nothing. The session
// lock is held across the store write so no concurrent request can edit
// the cart between validation and clearing. Every conflicting line is
// reported; the cart is cleared only after the placer succeeds.
func (s *Session) Checkout(ctx context.Context, stock ProductLookup, placer OrderPlacer) ([]records.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart.Len() == 0 {
		return nil, ErrEmptyCart
	}

	if conflicts := s.cart.validate(stock); len(conflicts) > 0 {
		return nil, &CheckoutError{Conflicts: conflicts}
	}

	lines := s.cart.Snapshot()
	drafts := make([]records.OrderDraft, 0, len(lines))
	for _, l := range lines {
		drafts = append(drafts, records.OrderDraft{
			CustomerID:     s.CustomerID,
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}

	orders, err := placer.Place(ctx, drafts)
	if err != nil {
		return nil, err
	}

	s.cart.Clear()
	return orders, nil
}
