package records

import "time"

// Product is a wine record as held by the authoritative store. Category and
// PriceCents are denormalized into the catalog indexes; everything else is
// opaque to the index layer.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Region      string    `json:"region"`
	Vintage     int       `json:"vintage"`
	PriceCents  int64     `json:"price_cents"`
	AlcoholPct  float64   `json:"alcohol_pct"`
	Stock       int       `json:"stock"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Categories is the fixed set of wine types a product may carry.
var Categories = []string{"Red", "White", "Rose", "Sparkling", "Dessert"}

func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusDelivered  Status = "Delivered"
	StatusReceived   Status = "Received"
	StatusCancelled  Status = "Cancelled"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusDelivered, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// Open reports whether an order in this status still belongs in the
// processing queue.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusProcessing
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusReceived || s == StatusCancelled
}

type Order struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customer_id"`
	ProductID      string     `json:"product_id"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	TotalCents     int64      `json:"total_cents"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	DeliveryDate   *time.Time `json:"delivery_date,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	ReceivedAt     *time.Time `json:"received_at,omitempty"`
}

// OrderDraft is one cart line about to become an order record. The unit
// price is the snapshot captured when the line entered the cart.
type OrderDraft struct {
	CustomerID     string `json:"customer_id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// StatusStamps carries the timestamps a status transition may set.
// Nil fields are left untouched by the store.
type StatusStamps struct {
	DeliveryDate *time.Time
	ShippedAt    *time.Time
	ReceivedAt   *time.Time
}
