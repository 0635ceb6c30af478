package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CellarSociety/internal/records"
	"CellarSociety/pkg/kit"
)

var ErrNotFound = errors.New("order not found")

// StockReloader refreshes a product's index entry after this service has
// changed its stock behind the catalog's back. Satisfied by
// *catalog.Catalog.
type StockReloader interface {
	Reload(ctx context.Context, productID string) error
}

// Orders drives the order workflow: placement from checkout drafts, the
// FIFO processing queue, and status transitions.
type Orders struct {
	Store   records.Store
	Queue   *Queue
	Stock   StockReloader
	Log     *zap.Logger
	Metrics *kit.IndexMetrics
}

func New(store records.Store, stock StockReloader, log *zap.Logger, metrics *kit.IndexMetrics) *Orders {
	return &Orders{
		Store:   store,
		Queue:   NewQueue(),
		Stock:   stock,
		Log:     log,
		Metrics: metrics,
	}
}

// WarmUp reloads the processing queue from the store at startup. Orders
// arrive sorted by creation time, so FIFO order survives a restart.
func (s *Orders) WarmUp(ctx context.Context) error {
	all, err := s.Store.LoadAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}

	for _, o := range all {
		if o.Status.Open() {
			s.Queue.Enqueue(o.ID)
		}
	}
	s.Metrics.SetQueueDepth(s.Queue.Len())

	if s.Log != nil {
		s.Log.Info("order queue loaded", zap.Int("open_orders", s.Queue.Len()))
	}
	return nil
}

// Place turns checkout drafts into persistent orders: one atomic store
// write covering stock decrement and insertion, then queue admission in
// draft order.
func (s *Orders) Place(ctx context.Context, drafts []records.OrderDraft) ([]records.Order, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	orders := make([]records.Order, 0, len(drafts))
	for _, d := range drafts {
		orders = append(orders, records.Order{
			ID:             "o_" + uuid.NewString(),
			CustomerID:     d.CustomerID,
			ProductID:      d.ProductID,
			Quantity:       d.Quantity,
			UnitPriceCents: d.UnitPriceCents,
			TotalCents:     d.UnitPriceCents * int64(d.Quantity),
			Status:         records.StatusPending,
			CreatedAt:      now,
		})
	}

	if err := s.Store.CreateOrders(ctx, orders); err != nil {
		return nil, err
	}

	for _, o := range orders {
		s.Queue.Enqueue(o.ID)
		s.reloadStock(ctx, o.ProductID)
	}
	s.Metrics.SetQueueDepth(s.Queue.Len())

	if s.Log != nil {
		s.Log.Info("orders placed",
			zap.Int("count", len(orders)),
			zap.String("customer_id", drafts[0].CustomerID),
		)
	}
	return orders, nil
}

const transitionRetries = 3

// Transition moves an order to a new status, persisting the timestamps the
// transition carries and keeping the queue in step. Illegal transitions
// return ErrInvalidTransition and change nothing. The status write is a
// compare-and-swap against the status that was validated, so two
// concurrent transitions cannot both apply; a loser re-reads and
// re-validates against the status that won.
func (s *Orders) Transition(ctx context.Context, id string, to records.Status) (records.Order, error) {
	for attempt := 0; attempt < transitionRetries; attempt++ {
		o, ok, err := s.Store.GetOrder(ctx, id)
		if err != nil {
			return records.Order{}, fmt.Errorf("get order %s: %w", id, err)
		}
		if !ok {
			return records.Order{}, ErrNotFound
		}

		from := o.Status
		stamps, err := applyTransition(&o, to, time.Now().UTC())
		if err != nil {
			return records.Order{}, err
		}

		swapped, err := s.Store.UpdateOrderStatus(ctx, id, from, to, stamps)
		if err != nil {
			return records.Order{}, fmt.Errorf("update order %s: %w", id, err)
		}
		if !swapped {
			continue
		}

		if !to.Open() {
			s.Queue.Remove(id)
			s.Metrics.SetQueueDepth(s.Queue.Len())
		}

		if to == records.StatusCancelled {
			if _, err := s.Store.RestockProduct(ctx, o.ProductID, o.Quantity); err != nil {
				return records.Order{}, fmt.Errorf("restock product %s: %w", o.ProductID, err)
			}
			s.reloadStock(ctx, o.ProductID)
		}

		if s.Log != nil {
			s.Log.Info("order transitioned",
				zap.String("order_id", id),
				zap.String("status", string(to)),
			)
		}
		return o, nil
	}

	return records.Order{}, fmt.Errorf("order %s: concurrent updates: %w", id, ErrInvalidTransition)
}

// NextPending returns the first n open orders, head-first. The queue is
// re-synced from the store on every read: orders placed or transitioned
// by another process since warm-up show up here, and the created-at
// ordering of LoadAllOrders keeps FIFO intact across processes.
func (s *Orders) NextPending(ctx context.Context, n int) ([]records.Order, error) {
	all, err := s.Store.LoadAllOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}

	open := make([]records.Order, 0, len(all))
	ids := make([]string, 0, len(all))
	for _, o := range all {
		if o.Status.Open() {
			open = append(open, o)
			ids = append(ids, o.ID)
		}
	}
	s.Queue.Rebuild(ids)
	s.Metrics.SetQueueDepth(len(ids))

	if n < 0 {
		n = 0
	}
	if n > len(open) {
		n = len(open)
	}
	return open[:n], nil
}

func (s *Orders) Get(ctx context.Context, id string) (records.Order, error) {
	o, ok, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return records.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	if !ok {
		return records.Order{}, ErrNotFound
	}
	return o, nil
}

// ListByCustomer returns a customer's orders newest first, optionally
// filtered by status.
func (s *Orders) ListByCustomer(ctx context.Context, customerID string, status records.Status) ([]records.Order, error) {
	all, err := s.Store.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", customerID, err)
	}

	out := make([]records.Order, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if status != "" && all[i].Status != status {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Orders) reloadStock(ctx context.Context, productID string) {
	if s.Stock == nil {
		return
	}
	if err := s.Stock.Reload(ctx, productID); err != nil && s.Log != nil {
		s.Log.Warn("stock reload failed", zap.Error(err), zap.String("product_id", productID))
	}
}
