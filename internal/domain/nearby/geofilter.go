package nearby

import (
	"sort"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

// located pairs a shop with its distance from the query origin.
type located struct {
	shop       shop.Shop
	distanceKm float64
}

// withinRadius keeps the shops whose distance to origin is at most radiusKm,
// closest first. Shops at equal distance keep their input order.
func withinRadius(origin geo.Point, radiusKm float64, shops []shop.Shop) []located {
	out := make([]located, 0, len(shops))
	for _, s := range shops {
		d := geo.Distance(origin, s.Location)
		if d <= radiusKm {
			out = append(out, located{shop: s, distanceKm: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].distanceKm < out[j].distanceKm
	})
	return out
}
