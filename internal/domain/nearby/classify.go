package nearby

import (
	"github.com/shopspring/decimal"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
)

// band is the price range spanned by the per-shop best prices.
type band struct {
	min, max decimal.Decimal
	ok       bool
}

func (b *band) add(price decimal.Decimal) {
	if !b.ok {
		b.min, b.max, b.ok = price, price, true
		return
	}
	if price.LessThan(b.min) {
		b.min = price
	}
	if price.GreaterThan(b.max) {
		b.max = price
	}
}

func (b band) tier(best decimal.Decimal) Tier {
	if !b.max.GreaterThan(b.min) {
		// Every matching shop sells at the same best price.
		return TierCheapest
	}
	switch {
	case best.Equal(b.min):
		return TierCheapest
	case best.Equal(b.max):
		return TierMostExpensive
	default:
		return TierIntermediate
	}
}

// classify assigns each located shop its tier and displayed products. The
// output keeps the input order.
func classify(shops []located, f filter) []Entry {
	matches := make([][]shop.Product, len(shops))
	bests := make([]decimal.NullDecimal, len(shops))

	var b band
	if f.active() {
		for i, l := range shops {
			for _, p := range l.shop.Products {
				if f.matches(p) {
					matches[i] = append(matches[i], p)
				}
			}
			if len(matches[i]) == 0 {
				continue
			}
			best := lowestPrice(matches[i])
			bests[i] = decimal.NullDecimal{Decimal: best, Valid: true}
			b.add(best)
		}
	}

	entries := make([]Entry, len(shops))
	for i, l := range shops {
		e := Entry{
			Shop:       l.shop,
			DistanceKm: l.distanceKm,
			Tier:       TierNoMatch,
			BestPrice:  bests[i],
		}
		if len(matches[i]) > 0 {
			e.Shop.Products = matches[i]
			e.Tier = b.tier(bests[i].Decimal)
		}
		entries[i] = e
	}
	return entries
}

// lowestPrice returns the minimum price of a non-empty product list.
func lowestPrice(products []shop.Product) decimal.Decimal {
	lowest := products[0].Price
	for _, p := range products[1:] {
		if p.Price.LessThan(lowest) {
			lowest = p.Price
		}
	}
	return lowest
}
