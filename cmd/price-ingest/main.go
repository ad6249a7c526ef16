package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.opentelemetry.io/otel"

	"github.com/bazaarscan/bazaarscan/internal/app"
	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
	"github.com/bazaarscan/bazaarscan/internal/ingest"
	"github.com/bazaarscan/bazaarscan/internal/notify"
)

type options struct {
	storage   app.StorageConfig
	encoding  string
	separator string
	workers   int
	rps       float64
}

func main() {
	var opts options

	flag.StringVar(&opts.storage.Driver, "storage", app.DriverPostgres, "storage driver: postgres or sqlite")
	flag.StringVar(&opts.storage.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.storage.SQLitePath, "sqlite-path", "bazaar.db", "SQLite database file")
	flag.StringVar(&opts.encoding, "encoding", ingest.EncodingUTF8, "feed encoding: utf-8 or windows-1251")
	flag.StringVar(&opts.separator, "separator", "", "field separator, detected from the first line when empty")
	flag.IntVar(&opts.workers, "workers", 4, "concurrent submissions")
	flag.Float64Var(&opts.rps, "rps", 50, "submissions per second, 0 for unlimited")
	flag.Parse()

	opts.storage.QueryTimeout = 30 * time.Second
	if opts.storage.DatabaseURL == "" {
		opts.storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.storage.Driver == app.DriverPostgres && opts.storage.DatabaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		slog.Error("usage: price-ingest [flags] feed.csv.gz...")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts, flag.Args()); err != nil {
		slog.Error("price ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("price ingest completed successfully")
}

func run(ctx context.Context, opts options, files []string) error {
	feedOpts := ingest.Options{Encoding: opts.encoding}
	switch opts.separator {
	case "":
	case ";", ",", "\t":
		feedOpts.Comma = rune(opts.separator[0])
	default:
		return errors.Errorf("unsupported separator %q", opts.separator)
	}

	var g ingest.Grouper
	for _, path := range files {
		stats, err := readGzFeed(path, feedOpts, &g)
		if err != nil {
			return err
		}
		slog.Info("feed read",
			slog.String("path", path),
			slog.Int("rows", stats.Rows),
			slog.Int("malformed", stats.Malformed),
		)
	}

	slog.Info("opening store", slog.String("driver", opts.storage.Driver))

	store, closeStore, err := app.OpenStore(ctx, opts.storage)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer closeStore()

	phones, err := store.Phones(ctx)
	if err != nil {
		return errors.Wrap(err, "list vendor phones")
	}
	slog.Info("vendor phones loaded", slog.Int("count", len(phones)))

	svc, err := vendor.NewService(store, notify.Discard{}, otel.GetTracerProvider(), otel.GetMeterProvider())
	if err != nil {
		return errors.Wrap(err, "create vendor service")
	}

	im := ingest.NewImporter(svc, ingest.NewPhoneFilter(phones), ingest.Config{
		Workers: opts.workers,
		RPS:     opts.rps,
	}, slog.Default())

	summary, err := im.Run(ctx, g.Batches())
	slog.Info("import summary",
		slog.Int("batches", summary.Batches),
		slog.Int("unknown_phones", summary.Unknown),
		slog.Int("rejected", summary.Rejected),
		slog.Int("applied", summary.Applied),
		slog.Int("skipped", summary.Skipped),
	)
	return err
}

// readGzFeed decodes one gzip-compressed feed into g.
func readGzFeed(path string, opts ingest.Options, g *ingest.Grouper) (ingest.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.Stats{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return ingest.Stats{}, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	stats, err := ingest.ReadFeed(gz, opts, func(row ingest.Row) error {
		g.Add(row)
		return nil
	})
	if err != nil {
		return stats, errors.Wrapf(err, "read %s", path)
	}
	return stats, nil
}
