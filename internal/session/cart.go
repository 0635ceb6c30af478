package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"CellarSociety/internal/records"
)

var (
	ErrBadQuantity = errors.New("quantity must be positive")

	// ErrUnknownProduct covers cart operations naming a product the
	// catalog index does not know.
	ErrUnknownProduct = errors.New("unknown product")
)

// ProductLookup is the read the cart needs from the catalog index: current
// record by id. Satisfied by *catalog.Index.
type ProductLookup interface {
	Get(id string) (records.Product, bool)
}

// Line is one cart entry. UnitPriceCents is the price snapshot taken when
// the line was created; later catalog price changes do not touch it — the
// cart is a draft of the order the customer saw.
type Line struct {
	ProductID      string    `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	AddedAt        time.Time `json:"added_at"`
}

// CheckoutConflict names one cart line that failed final stock validation.
type CheckoutConflict struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// CheckoutError reports every conflicting line; a checkout either converts
// the whole cart or nothing.
type CheckoutError struct {
	Conflicts []CheckoutConflict
}

func (e *CheckoutError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = c.ProductID
	}
	return fmt.Sprintf("checkout conflicts on %s", strings.Join(ids, ", "))
}

// Cart maps product id to line and remembers insertion order so snapshots
// and drafts come out stable. Not safe for concurrent use on its own; the
// owning Session's mutex guards it.
type Cart struct {
	lines map[string]Line
	order []string
}

func NewCart() *Cart {
	return &Cart{lines: make(map[string]Line)}
}

// Add accumulates qty onto an existing line or opens a new one with the
// price captured from the index now. The requested total is checked
// against current stock; on failure the cart is left untouched.
func (c *Cart) Add(stock ProductLookup, productID string, qty int) error {
	if qty <= 0 {
		return ErrBadQuantity
	}

	p, ok := stock.Get(productID)
	if !ok {
		return fmt.Errorf("%s: %w", productID, ErrUnknownProduct)
	}

	line, exists := c.lines[productID]
	want := qty
	if exists {
		want += line.Quantity
	}
	if want > p.Stock {
		return fmt.Errorf("product %s: want %d, stock %d: %w",
			productID, want, p.Stock, records.ErrInsufficientStock)
	}

	if exists {
		line.Quantity = want
		c.lines[productID] = line
		return nil
	}

	c.lines[productID] = Line{
		ProductID:      productID,
		Name:           p.Name,
		Quantity:       qty,
		UnitPriceCents: p.PriceCents,
		AddedAt:        time.Now().UTC(),
	}
	c.order = append(c.order, productID)
	return nil
}

// Update sets an absolute quantity on an existing line; zero or negative
// removes it. The captured price is kept.
func (c *Cart) Update(stock ProductLookup, productID string, qty int) error {
	line, exists := c.lines[productID]
	if !exists {
		return fmt.Errorf("%s: %w", productID, ErrUnknownProduct)
	}

	if qty <= 0 {
		c.Remove(productID)
		return nil
	}

	p, ok := stock.Get(productID)
	if !ok {
		return fmt.Errorf("%s: %w", productID, ErrUnknownProduct)
	}
	if qty > p.Stock {
		return fmt.Errorf("product %s: want %d, stock %d: %w",
			productID, qty, p.Stock, records.ErrInsufficientStock)
	}

	line.Quantity = qty
	c.lines[productID] = line
	return nil
}

func (c *Cart) Remove(productID string) bool {
	if _, ok := c.lines[productID]; !ok {
		return false
	}
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot returns the lines in insertion order.
func (c *Cart) Snapshot() []Line {
	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.lines[id])
	}
	return out
}

func (c *Cart) TotalCents() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.UnitPriceCents * int64(l.Quantity)
	}
	return total
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) Clear() {
	c.lines = make(map[string]Line)
	c.order = c.order[:0]
}

// validate re-checks every line against current stock and reports all
// conflicts, not just the first.
func (c *Cart) validate(stock ProductLookup) []CheckoutConflict {
	var conflicts []CheckoutConflict
	for _, id := range c.order {
		line := c.lines[id]

		p, ok := stock.Get(id)
		if !ok {
			conflicts = append(conflicts, CheckoutConflict{
				ProductID: id, Requested: line.Quantity, Available: 0,
			})
			continue
		}
		if line.Quantity > p.Stock {
			conflicts = append(conflicts, CheckoutConflict{
				ProductID: id, Requested: line.Quantity, Available: p.Stock,
			})
		}
	}
	return conflicts
}
