package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	txTimeout    = 5 * time.Second

	pgUniqueCode = "23505"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

const productColumns = `id, name, category, region, vintage, price_cents, alcohol_pct, stock, description, image_url, created_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Region, &p.Vintage,
		&p.PriceCents, &p.AlcoholPct, &p.Stock, &p.Description, &p.ImageURL, &p.CreatedAt)
	return p, err
}

func (s *PostgresStore) LoadAllProducts(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+productColumns+`
			FROM products
			ORDER BY id ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 64)
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (Product, bool, error) {
	var (
		p   Product
		err error
	)

	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		p, err = scanProduct(s.db.QueryRowContext(ctx, `
			SELECT `+productColumns+`
			FROM products
			WHERE id = $1
		`, id))
		return err
	})

	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p Product) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, p.ID, p.Name, p.Category, p.Region, p.Vintage,
			p.PriceCents, p.AlcoholPct, p.Stock, p.Description, p.ImageURL, p.CreatedAt)

		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			return ErrProductExists
		}
		return err
	})
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p Product) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET name = $2, category = $3, region = $4, vintage = $5,
			    price_cents = $6, alcohol_pct = $7, stock = $8,
			    description = $9, image_url = $10
			WHERE id = $1
		`, p.ID, p.Name, p.Category, p.Region, p.Vintage,
			p.PriceCents, p.AlcoholPct, p.Stock, p.Description, p.ImageURL)
		return err
	})
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) (bool, error) {
	var deleted bool

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})

	return deleted, err
}

func (s *PostgresStore) RestockProduct(ctx context.Context, id string, qty int) (bool, error) {
	var found bool

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $2
			WHERE id = $1
		`, id, qty)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		found = n > 0
		return err
	})

	return found, err
}

const orderColumns = `id, customer_id, product_id, quantity, unit_price_cents, total_cents, status, created_at, delivery_date, shipped_at, received_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.ProductID, &o.Quantity,
		&o.UnitPriceCents, &o.TotalCents, &o.Status, &o.CreatedAt,
		&o.DeliveryDate, &o.ShippedAt, &o.ReceivedAt)
	return o, err
}

func (s *PostgresStore) LoadAllOrders(ctx context.Context) ([]Order, error) {
	var out []Order

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			ORDER BY created_at ASC, id ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Order, 0, 64)
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	var out []Order

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE customer_id = $1
			ORDER BY created_at ASC, id ASC
		`, customerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Order, 0, 8)
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (Order, bool, error) {
	var (
		o   Order
		err error
	)

	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		o, err = scanOrder(s.db.QueryRowContext(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE id = $1
		`, id))
		return err
	})

	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

// CreateOrders decrements stock and inserts the order rows in one
// transaction. The conditional UPDATE is the stock check: zero rows
// affected means another checkout got there first.
func (s *PostgresStore) CreateOrders(ctx context.Context, orders []Order) error {
	return withTimeout(ctx, txTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		for _, o := range orders {
			res, err := tx.ExecContext(ctx, `
				UPDATE products
				SET stock = stock - $2
				WHERE id = $1 AND stock >= $2
			`, o.ProductID, o.Quantity)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("create orders: product %s: %w", o.ProductID, ErrInsufficientStock)
			}
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range orders {
			_, err := stmt.ExecContext(ctx, o.ID, o.CustomerID, o.ProductID, o.Quantity,
				o.UnitPriceCents, o.TotalCents, o.Status, o.CreatedAt,
				o.DeliveryDate, o.ShippedAt, o.ReceivedAt)
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// UpdateOrderStatus is a compare-and-swap: the WHERE clause on the
// current status makes concurrent transitions serialize at the database,
// the same way CreateOrders guards stock.
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, from, to Status, stamps StatusStamps) (bool, error) {
	var swapped bool

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE orders
			SET status = $3,
			    delivery_date = COALESCE($4, delivery_date),
			    shipped_at = COALESCE($5, shipped_at),
			    received_at = COALESCE($6, received_at)
			WHERE id = $1 AND status = $2
		`, id, from, to, stamps.DeliveryDate, stamps.ShippedAt, stamps.ReceivedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		swapped = n > 0
		return err
	})

	return swapped, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
