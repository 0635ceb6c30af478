package records

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientStock is returned when an order draft asks for more
	// units than the authoritative record has available.
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrProductExists = errors.New("product already exists")
)

// Store is the authoritative table of products and orders. It is the only
// place data is permanently lost; the index layer surfaces its errors
// unchanged and never retries them.
type Store interface {
	Ping(ctx context.Context) error

	LoadAllProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, bool, error)
	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) (bool, error)
	// RestockProduct adds qty back onto a product's stock, e.g. when an
	// order is cancelled. Returns false if the product no longer exists.
	RestockProduct(ctx context.Context, id string, qty int) (bool, error)

	LoadAllOrders(ctx context.Context) ([]Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error)
	GetOrder(ctx context.Context, id string) (Order, bool, error)
	// CreateOrders validates stock for every order and decrements it in
	// the same transaction that inserts the order rows; either all orders
	// are created or none. A stock conflict reports ErrInsufficientStock
	// wrapped with the offending product id.
	CreateOrders(ctx context.Context, orders []Order) error
	// UpdateOrderStatus moves an order to a new status, setting any
	// non-nil stamps. The write applies only while the stored status
	// still equals from; false means the order is missing or another
	// transition got there first.
	UpdateOrderStatus(ctx context.Context, id string, from, to Status, stamps StatusStamps) (bool, error)
}
