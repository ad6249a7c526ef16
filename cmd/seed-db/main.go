package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/bazaarscan/bazaarscan/internal/app"
	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
	"github.com/bazaarscan/bazaarscan/internal/geo"
	"github.com/bazaarscan/bazaarscan/internal/notify"
)

type demoPrice struct {
	name  string
	price string
	unit  string
}

type demoShop struct {
	name     string
	phone    string
	address  string
	location geo.Point
	category string
	prices   []demoPrice
}

var demoShops = []demoShop{
	{
		name:     "Akmal Sabzavotlari",
		phone:    "+998901234567",
		address:  "E-Block, 12-Shop",
		location: geo.Point{Lat: 41.3, Lon: 69.3},
		category: "vegetables",
		prices: []demoPrice{
			{"pomidor", "12000", "kg"},
			{"bodring", "8000", "kg"},
			{"piyoz", "4000", "kg"},
			{"kartoshka", "5000", "kg"},
			{"sabzi", "3500", "kg"},
		},
	},
	{
		name:     "Meva Markazi",
		phone:    "+998907654321",
		address:  "F-Block, 5-Shop",
		location: geo.Point{Lat: 41.31, Lon: 69.29},
		category: "fruits",
		prices: []demoPrice{
			{"olma", "15000", "kg"},
			{"nok", "18000", "kg"},
			{"uzum", "22000", "kg"},
			{"pomidor", "14000", "kg"},
		},
	},
	{
		name:     "Halol Go'sht",
		phone:    "+998990001122",
		address:  "A-Block, 1-Shop",
		location: geo.Point{Lat: 41.29, Lon: 69.31},
		category: "meat",
		prices: []demoPrice{
			{"mol go'shti", "95000", "kg"},
			{"qo'y go'shti", "110000", "kg"},
			{"tovuq", "38000", "kg"},
		},
	},
}

func main() {
	var storage app.StorageConfig

	flag.StringVar(&storage.Driver, "storage", app.DriverPostgres, "storage driver: postgres or sqlite")
	flag.StringVar(&storage.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storage.SQLitePath, "sqlite-path", "bazaar.db", "SQLite database file")
	flag.Parse()

	storage.QueryTimeout = 30 * time.Second
	if storage.DatabaseURL == "" {
		storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if storage.Driver == app.DriverPostgres && storage.DatabaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, storage); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, storage app.StorageConfig) error {
	slog.Info("opening store", slog.String("driver", storage.Driver))

	store, closeStore, err := app.OpenStore(ctx, storage)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeStore()

	svc, err := vendor.NewService(store, notify.Discard{}, otel.GetTracerProvider(), otel.GetMeterProvider())
	if err != nil {
		return errors.Wrap(err, "create vendor service")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, d := range demoShops {
		g.Go(func() error {
			if err := seedShop(ctx, store, svc, d); err != nil {
				return errors.Wrapf(err, "seed %q", d.name)
			}
			return nil
		})
	}
	return g.Wait()
}

// seedShop registers d, or updates it when its phone already owns a shop,
// and submits its price list.
func seedShop(ctx context.Context, store shop.Repository, svc *vendor.Service, d demoShop) error {
	existing, err := store.ByPhone(ctx, d.phone)
	if err != nil {
		return errors.Wrap(err, "look up phone")
	}

	loc := d.location
	req := vendor.RegisterRequest{
		Name:       d.name,
		Phone:      d.phone,
		Address:    d.address,
		Location:   &loc,
		Categories: shop.Categories{Tag: d.category},
	}
	if len(existing) > 0 {
		req.ID = existing[0].ID
	}

	reg, err := svc.Register(ctx, req)
	if err != nil {
		return errors.Wrap(err, "register")
	}

	entries := make([]vendor.PriceEntry, 0, len(d.prices))
	for _, p := range d.prices {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			return errors.Wrapf(err, "parse price of %q", p.name)
		}
		entries = append(entries, vendor.PriceEntry{
			Name:     p.name,
			Price:    &price,
			Unit:     p.unit,
			Category: d.category,
		})
	}

	res, err := svc.SubmitPrices(ctx, vendor.SubmitRequest{
		Phone:    d.phone,
		ShopID:   reg.Shop.ID,
		Products: entries,
	})
	if err != nil {
		return errors.Wrap(err, "submit prices")
	}

	slog.Info("shop seeded",
		slog.String("id", reg.Shop.ID),
		slog.String("name", d.name),
		slog.Bool("created", reg.Created),
		slog.Int("products", res.Applied),
	)
	return nil
}
