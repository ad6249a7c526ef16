// Package shoptest holds a behavioural test suite shared by every
// shop.Repository implementation.
package shoptest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) shop.Repository

var base = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

// Shop builds a shop created offset after a fixed instant.
func Shop(id, phone string, lat, lon float64, offset time.Duration) *shop.Shop {
	at := base.Add(offset)
	return &shop.Shop{
		ID:         id,
		Name:       "Shop " + id,
		Phone:      phone,
		Address:    "Row " + id,
		Location:   geo.Point{Lat: lat, Lon: lon},
		Categories: []string{"vegetables", "fruits"},
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

// Product builds a product of shopID priced at price.
func Product(id, shopID, name, price string, offset time.Duration) *shop.Product {
	at := base.Add(offset)
	return &shop.Product{
		ID:        id,
		ShopID:    shopID,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Unit:      "kg",
		Category:  "vegetables",
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// Run exercises the repository contract against repositories from newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("ByIDNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.ByID(context.Background(), "missing")
		require.ErrorIs(t, err, shop.ErrNotFound)
	})

	t.Run("SaveAndLoadShop", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		s := Shop("s1", "+998901111111", 41.3, 69.3, 0)
		require.NoError(t, repo.SaveShop(ctx, s))
		require.NoError(t, repo.SaveProduct(ctx, Product("p1", "s1", "tomato", "12.50", time.Minute)))

		got, err := repo.ByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Shop s1", got.Name)
		assert.Equal(t, "+998901111111", got.Phone)
		assert.Equal(t, geo.Point{Lat: 41.3, Lon: 69.3}, got.Location)
		assert.Equal(t, []string{"vegetables", "fruits"}, got.Categories)
		assert.True(t, base.Equal(got.CreatedAt))

		require.Len(t, got.Products, 1)
		p := got.Products[0]
		assert.Equal(t, "tomato", p.Name)
		assert.Equal(t, "s1", p.ShopID)
		assert.True(t, decimal.RequireFromString("12.5").Equal(p.Price), "price %s", p.Price)
		assert.Equal(t, "kg", p.Unit)
	})

	t.Run("SaveShopUpdates", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		s := Shop("s1", "+998901111111", 41.3, 69.3, 0)
		require.NoError(t, repo.SaveShop(ctx, s))

		s.Name = "Renamed"
		s.Categories = []string{"meat"}
		s.Location = geo.Point{Lat: 41.31, Lon: 69.29}
		s.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, repo.SaveShop(ctx, s))

		got, err := repo.ByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Equal(t, []string{"meat"}, got.Categories)
		assert.Equal(t, geo.Point{Lat: 41.31, Lon: 69.29}, got.Location)
		assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))
	})

	t.Run("SaveProductUpdates", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		require.NoError(t, repo.SaveShop(ctx, Shop("s1", "+998901111111", 41.3, 69.3, 0)))
		p := Product("p1", "s1", "tomato", "10", 0)
		require.NoError(t, repo.SaveProduct(ctx, p))

		p.Price = decimal.NewFromInt(12)
		p.Category = "fruits"
		require.NoError(t, repo.SaveProduct(ctx, p))

		got, err := repo.ByID(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got.Products, 1)
		assert.Equal(t, "tomato", got.Products[0].Name)
		assert.True(t, decimal.NewFromInt(12).Equal(got.Products[0].Price))
		assert.Equal(t, "fruits", got.Products[0].Category)
	})

	t.Run("SaveProductSameNameLastWriteWins", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		require.NoError(t, repo.SaveShop(ctx, Shop("s1", "+998901111111", 41.3, 69.3, 0)))
		first := Product("p-a", "s1", "tomato", "10", 0)
		second := Product("p-b", "s1", "tomato", "12", time.Minute)
		second.Unit = "box"
		require.NoError(t, repo.SaveProduct(ctx, first))
		require.NoError(t, repo.SaveProduct(ctx, second))
		assert.Equal(t, "p-a", second.ID, "the stored product keeps its id")

		// Another shop may sell a product of the same name.
		require.NoError(t, repo.SaveShop(ctx, Shop("s2", "+998902222222", 41.3, 69.3, 0)))
		other := Product("p-c", "s2", "tomato", "7", 0)
		require.NoError(t, repo.SaveProduct(ctx, other))
		assert.Equal(t, "p-c", other.ID)

		got, err := repo.ByID(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got.Products, 1)
		p := got.Products[0]
		assert.Equal(t, "p-a", p.ID)
		assert.True(t, decimal.NewFromInt(12).Equal(p.Price), "price %s", p.Price)
		assert.Equal(t, "box", p.Unit)
		assert.True(t, base.Equal(p.CreatedAt))
		assert.True(t, base.Add(time.Minute).Equal(p.UpdatedAt))
	})

	t.Run("SaveProductExactPrice", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		require.NoError(t, repo.SaveShop(ctx, Shop("s1", "+998901111111", 41.3, 69.3, 0)))
		require.NoError(t, repo.SaveProduct(ctx, Product("p1", "s1", "saffron", "10.004", 0)))
		require.NoError(t, repo.SaveProduct(ctx, Product("p2", "s1", "tractor", "1234567890123.45", 0)))

		got, err := repo.ByID(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got.Products, 2)
		prices := map[string]string{}
		for _, p := range got.Products {
			prices[p.Name] = p.Price.String()
		}
		assert.Equal(t, map[string]string{"saffron": "10.004", "tractor": "1234567890123.45"}, prices)
	})

	t.Run("ByPhoneOrdered", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		require.NoError(t, repo.SaveShop(ctx, Shop("b", "+998901111111", 41.3, 69.3, time.Hour)))
		require.NoError(t, repo.SaveShop(ctx, Shop("a", "+998901111111", 41.3, 69.3, time.Hour)))
		require.NoError(t, repo.SaveShop(ctx, Shop("c", "+998901111111", 41.3, 69.3, 0)))
		require.NoError(t, repo.SaveShop(ctx, Shop("x", "+998902222222", 41.3, 69.3, 0)))

		got, err := repo.ByPhone(ctx, "+998901111111")
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, ids(got))

		none, err := repo.ByPhone(ctx, "+998900000000")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ShopsInBounds", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		require.NoError(t, repo.SaveShop(ctx, Shop("in1", "1", 41.30, 69.30, 0)))
		require.NoError(t, repo.SaveShop(ctx, Shop("in2", "2", 41.31, 69.29, time.Minute)))
		require.NoError(t, repo.SaveShop(ctx, Shop("out", "3", 39.65, 66.96, 0)))
		require.NoError(t, repo.SaveProduct(ctx, Product("p1", "in2", "apple", "8", 0)))
		require.NoError(t, repo.SaveProduct(ctx, Product("p2", "in2", "pear", "9", time.Minute)))

		got, err := repo.ShopsInBounds(ctx, geo.BoundingBox(geo.Point{Lat: 41.3, Lon: 69.3}, 5))
		require.NoError(t, err)
		assert.Equal(t, []string{"in1", "in2"}, ids(got))
		assert.Empty(t, got[0].Products)
		require.Len(t, got[1].Products, 2)
		assert.Equal(t, "apple", got[1].Products[0].Name)
		assert.Equal(t, "pear", got[1].Products[1].Name)
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newRepo(t).Ping(context.Background()))
	})
}

func ids(shops []shop.Shop) []string {
	out := make([]string, len(shops))
	for i, s := range shops {
		out[i] = s.ID
	}
	return out
}
