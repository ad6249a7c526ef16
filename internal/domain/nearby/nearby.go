// Package nearby implements proximity price comparison: it selects the shops
// around a location and ranks their prices for the searched product or
// category.
package nearby

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

// Tier is the competitive price position of a shop within a result set.
type Tier string

const (
	// TierCheapest marks shops offering the lowest best price. When every
	// matching shop has the same best price, all of them are cheapest.
	TierCheapest Tier = "cheapest"
	// TierMostExpensive marks shops whose best price is the highest.
	TierMostExpensive Tier = "most-expensive"
	// TierIntermediate marks shops strictly between the two extremes.
	TierIntermediate Tier = "intermediate"
	// TierNoMatch marks shops with nothing matching the filter, or every
	// shop when no filter is given.
	TierNoMatch Tier = "no-match"
)

// Color returns the map marker color for the tier.
func (t Tier) Color() string {
	switch t {
	case TierCheapest:
		return "green"
	case TierMostExpensive:
		return "red"
	case TierIntermediate:
		return "yellow"
	default:
		return "blue"
	}
}

// Query selects shops around Origin within RadiusKm, optionally narrowed to a
// product name substring or an exact category tag. Product wins when both
// are set.
type Query struct {
	Origin   geo.Point
	RadiusKm float64
	Product  string
	Category string
}

// Validate rejects queries that cannot be evaluated. maxRadiusKm <= 0 means
// no upper limit.
func (q Query) Validate(maxRadiusKm float64) error {
	if err := q.Origin.Validate(); err != nil {
		return shop.Invalid("coordinates", err.Error())
	}
	if math.IsNaN(q.RadiusKm) || math.IsInf(q.RadiusKm, 0) || q.RadiusKm <= 0 {
		return shop.Invalid("radius", "must be a positive number of kilometers")
	}
	if maxRadiusKm > 0 && q.RadiusKm > maxRadiusKm {
		return shop.Invalid("radius", fmt.Sprintf("must not exceed %g km", maxRadiusKm))
	}
	return nil
}

// filter is the normalized form of the query's product/category narrowing.
type filter struct {
	product  string
	category string
}

func (q Query) filter() filter {
	if p := shop.NormalizeName(q.Product); p != "" {
		return filter{product: p}
	}
	return filter{category: q.Category}
}

func (f filter) active() bool {
	return f.product != "" || f.category != ""
}

func (f filter) matches(p shop.Product) bool {
	if f.product != "" {
		return strings.Contains(shop.NormalizeName(p.Name), f.product)
	}
	return f.category != "" && p.Category == f.category
}

// Entry is one shop in a result set.
type Entry struct {
	// Shop carries the displayed products: the matched subset when the shop
	// has matches, its full price list otherwise.
	Shop       shop.Shop
	DistanceKm float64
	Tier       Tier
	// BestPrice is the lowest matching price, invalid when nothing matched.
	BestPrice decimal.NullDecimal
}
