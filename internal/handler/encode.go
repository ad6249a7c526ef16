package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/bazaarscan/bazaarscan/internal/domain/nearby"
	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
)

func encodePrice(e *jx.Encoder, p decimal.Decimal) {
	e.Num(jx.Num(p.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeProduct(e *jx.Encoder, p shop.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("shopId", func(e *jx.Encoder) { e.Str(p.ShopID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodePrice(e, p.Price) })
		e.Field("unit", func(e *jx.Encoder) { e.Str(p.Unit) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("lastUpdated", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

// shopFields writes the members of a shop object without the braces so
// that nearby entries can extend it.
func shopFields(e *jx.Encoder, s shop.Shop) {
	e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
	e.Field("phone", func(e *jx.Encoder) { e.Str(s.Phone) })
	e.Field("address", func(e *jx.Encoder) { e.Str(s.Address) })
	e.Field("lat", func(e *jx.Encoder) { e.Float64(s.Location.Lat) })
	e.Field("lon", func(e *jx.Encoder) { e.Float64(s.Location.Lon) })
	e.Field("categories", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range s.Categories {
				e.Str(c)
			}
		})
	})
	e.Field("products", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range s.Products {
				encodeProduct(e, p)
			}
		})
	})
	e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, s.CreatedAt) })
	e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, s.UpdatedAt) })
}

func encodeShop(e *jx.Encoder, s shop.Shop) {
	e.Obj(func(e *jx.Encoder) { shopFields(e, s) })
}

func encodeShops(e *jx.Encoder, shops []shop.Shop) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range shops {
			encodeShop(e, s)
		}
	})
}

func encodeEntry(e *jx.Encoder, entry nearby.Entry) {
	e.Obj(func(e *jx.Encoder) {
		shopFields(e, entry.Shop)
		e.Field("distance", func(e *jx.Encoder) { e.Float64(entry.DistanceKm) })
		e.Field("tier", func(e *jx.Encoder) { e.Str(string(entry.Tier)) })
		e.Field("color", func(e *jx.Encoder) { e.Str(entry.Tier.Color()) })
		e.Field("bestPrice", func(e *jx.Encoder) {
			if !entry.BestPrice.Valid {
				e.Null()
				return
			}
			encodePrice(e, entry.BestPrice.Decimal)
		})
	})
}

func encodeOverview(e *jx.Encoder, o *nearby.Overview) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("totalShops", func(e *jx.Encoder) { e.Int(o.TotalShops) })
		e.Field("totalProducts", func(e *jx.Encoder) { e.Int(o.TotalProducts) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range o.Products {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
						e.Field("min", func(e *jx.Encoder) { encodePrice(e, s.Min) })
						e.Field("max", func(e *jx.Encoder) { encodePrice(e, s.Max) })
						e.Field("avg", func(e *jx.Encoder) { encodePrice(e, s.Avg) })
						e.Field("count", func(e *jx.Encoder) { e.Int(s.Count) })
					})
				}
			})
		})
	})
}
