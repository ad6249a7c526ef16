// Package shop defines the marketplace model shared by search and vendor
// operations: shops, the products they sell, and the storage contract.
package shop

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bazaarscan/bazaarscan/internal/geo"
)

// Defaults applied to newly registered shops and products.
const (
	DefaultName     = "Unnamed Store"
	DefaultAddress  = "Location not set"
	DefaultCategory = "other"
	DefaultUnit     = "kg"
)

// DefaultLocation is used when a vendor registers without placing a pin.
var DefaultLocation = geo.Point{Lat: 41.2995, Lon: 69.2401}

// Shop is a vendor's stall or store with its price list.
type Shop struct {
	ID         string
	Name       string
	Phone      string
	Address    string
	Location   geo.Point
	Categories []string
	Products   []Product
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Product is a priced item owned by exactly one shop. Name is stored in
// normalized (lowercase) form and is unique within the shop.
type Product struct {
	ID        string
	ShopID    string
	Name      string
	Price     decimal.Decimal
	Unit      string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository is the persistence contract for shops and products.
//
// Implementations must return shops in a deterministic order (creation time,
// then ID) and must return ErrNotFound from ByID when the shop does not exist.
// Concurrent SaveProduct calls for the same shop and product name are
// last-write-wins.
type Repository interface {
	// ShopsInBounds returns every shop located inside b with its products
	// eagerly loaded.
	ShopsInBounds(ctx context.Context, b geo.Bounds) ([]Shop, error)
	// ByID returns a shop with its products.
	ByID(ctx context.Context, id string) (*Shop, error)
	// ByPhone returns all shops owned by phone with their products. An empty
	// slice is not an error.
	ByPhone(ctx context.Context, phone string) ([]Shop, error)
	// SaveShop inserts or updates a shop (products are not touched).
	SaveShop(ctx context.Context, s *Shop) error
	// SaveProduct inserts a product or, when the shop already has one with
	// the same name, overwrites its price, unit, category and update time.
	// p.ID is set to the id of the stored product.
	SaveProduct(ctx context.Context, p *Product) error
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
