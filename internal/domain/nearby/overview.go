package nearby

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
)

// DefaultOverviewLimit is the number of products listed when the caller does
// not ask for a specific count.
const DefaultOverviewLimit = 5

// PriceStat summarizes the prices of one product across the shops selling it.
type PriceStat struct {
	Name  string
	Min   decimal.Decimal
	Max   decimal.Decimal
	Avg   decimal.Decimal
	Count int
}

// Overview is a market summary for an area.
type Overview struct {
	TotalShops    int
	TotalProducts int
	// Products lists the most widely sold products, most listings first.
	Products []PriceStat
}

// Overview summarizes prices of every shop within the query radius. The
// product and category filters are ignored. limit <= 0 selects
// DefaultOverviewLimit.
func (e *Evaluator) Overview(ctx context.Context, q Query, limit int) (*Overview, error) {
	ctx, span := e.tracer.Start(ctx, "nearby.Overview",
		trace.WithAttributes(attribute.Float64("bazaar.radius_km", q.RadiusKm)),
	)
	defer span.End()

	located, err := e.locate(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultOverviewLimit
	}
	return summarize(located, limit), nil
}

func summarize(shops []located, limit int) *Overview {
	type acc struct {
		min, max, sum decimal.Decimal
		count         int
	}

	var (
		byName = make(map[string]*acc)
		order  []string
		total  int
	)
	for _, l := range shops {
		total += len(l.shop.Products)
		for _, p := range l.shop.Products {
			name := shop.NormalizeName(p.Name)
			a, ok := byName[name]
			if !ok {
				a = &acc{min: p.Price, max: p.Price, sum: decimal.Zero}
				byName[name] = a
				order = append(order, name)
			}
			a.min = decimal.Min(a.min, p.Price)
			a.max = decimal.Max(a.max, p.Price)
			a.sum = a.sum.Add(p.Price)
			a.count++
		}
	}

	stats := make([]PriceStat, 0, len(order))
	for _, name := range order {
		a := byName[name]
		stats = append(stats, PriceStat{
			Name:  name,
			Min:   a.min,
			Max:   a.max,
			Avg:   a.sum.Div(decimal.NewFromInt(int64(a.count))).Round(2),
			Count: a.count,
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Name < stats[j].Name
	})
	if len(stats) > limit {
		stats = stats[:limit]
	}

	return &Overview{
		TotalShops:    len(shops),
		TotalProducts: total,
		Products:      stats,
	}
}
