package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore keeps all records in process memory. Used by tests and for
// running the services without Postgres.
type MemStore struct {
	mu       sync.RWMutex
	products map[string]Product
	orders   map[string]Order
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: make(map[string]Product),
		orders:   make(map[string]Order),
	}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) LoadAllProducts(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) GetProduct(ctx context.Context, id string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	return p, ok, nil
}

func (s *MemStore) CreateProduct(ctx context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return ErrProductExists
	}
	s.products[p.ID] = p
	return nil
}

func (s *MemStore) UpdateProduct(ctx context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = p
	return nil
}

func (s *MemStore) DeleteProduct(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return false, nil
	}
	delete(s.products, id)
	return true, nil
}

func (s *MemStore) RestockProduct(ctx context.Context, id string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return false, nil
	}
	p.Stock += qty
	s.products[id] = p
	return true, nil
}

func (s *MemStore) LoadAllOrders(ctx context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	all, err := s.LoadAllOrders(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Order, 0, 8)
	for _, o := range all {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemStore) GetOrder(ctx context.Context, id string) (Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	return o, ok, nil
}

func (s *MemStore) CreateOrders(ctx context.Context, orders []Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every line before touching anything so a late conflict
	// cannot leave a partial write behind.
	need := make(map[string]int, len(orders))
	for _, o := range orders {
		need[o.ProductID] += o.Quantity
	}
	for pid, qty := range need {
		p, ok := s.products[pid]
		if !ok {
			return fmt.Errorf("create orders: product %s: %w", pid, ErrInsufficientStock)
		}
		if p.Stock < qty {
			return fmt.Errorf("create orders: product %s: %w", pid, ErrInsufficientStock)
		}
	}

	for pid, qty := range need {
		p := s.products[pid]
		p.Stock -= qty
		s.products[pid] = p
	}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return nil
}

func (s *MemStore) UpdateOrderStatus(ctx context.Context, id string, from, to Status, stamps StatusStamps) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}

	o.Status = to
	if stamps.DeliveryDate != nil {
		o.DeliveryDate = stamps.DeliveryDate
	}
	if stamps.ShippedAt != nil {
		o.ShippedAt = stamps.ShippedAt
	}
	if stamps.ReceivedAt != nil {
		o.ReceivedAt = stamps.ReceivedAt
	}
	s.orders[id] = o
	return true, nil
}
