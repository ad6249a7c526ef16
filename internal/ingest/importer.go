package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
)

const phoneFilterFPR = 0.001

// Submitter applies one price list. *vendor.Service implements it.
type Submitter interface {
	SubmitPrices(ctx context.Context, req vendor.SubmitRequest) (*vendor.SubmitResult, error)
}

// Batch is the price list of one (phone, shop id) pair.
type Batch struct {
	Phone   string
	ShopID  string
	Entries []vendor.PriceEntry
}

// Grouper collects rows into batches, keeping first-seen order.
type Grouper struct {
	index   map[[2]string]int
	batches []Batch
}

// Add appends row to its batch.
func (g *Grouper) Add(row Row) {
	if g.index == nil {
		g.index = make(map[[2]string]int)
	}
	key := [2]string{row.Phone, row.ShopID}
	i, ok := g.index[key]
	if !ok {
		i = len(g.batches)
		g.index[key] = i
		g.batches = append(g.batches, Batch{Phone: row.Phone, ShopID: row.ShopID})
	}
	g.batches[i].Entries = append(g.batches[i].Entries, vendor.PriceEntry{
		Name:     row.Name,
		Price:    row.Price,
		Unit:     row.Unit,
		Category: row.Category,
	})
}

// Batches returns the collected batches.
func (g *Grouper) Batches() []Batch { return g.batches }

// NewPhoneFilter builds a bloom filter over the registered vendor phones.
func NewPhoneFilter(phones []string) *bloom.BloomFilter {
	f := bloom.NewWithEstimates(uint(max(len(phones), 1)), phoneFilterFPR)
	for _, p := range phones {
		f.AddString(p)
	}
	return f
}

// Config tunes an Importer.
type Config struct {
	// Workers bounds concurrent submissions. Zero means 4.
	Workers int
	// RPS throttles submissions. Zero disables throttling.
	RPS float64
}

// Summary reports an import run.
type Summary struct {
	Batches  int
	Unknown  int
	Rejected int
	Applied  int
	Skipped  int
}

// Importer submits grouped price lists through the vendor service.
type Importer struct {
	submit  Submitter
	known   *bloom.BloomFilter
	limiter *rate.Limiter
	workers int
	lg      *slog.Logger
}

// NewImporter creates an Importer. known may be nil to submit every batch.
func NewImporter(s Submitter, known *bloom.BloomFilter, cfg Config, lg *slog.Logger) *Importer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Importer{submit: s, known: known, limiter: limiter, workers: workers, lg: lg}
}

// Run submits batches concurrently. Batches for phones that are definitely
// not registered are dropped without a store round trip. Batches the vendor
// service rejects (unknown or ambiguous shop, invalid input) are counted and
// logged; any other error stops the run.
func (im *Importer) Run(ctx context.Context, batches []Batch) (Summary, error) {
	var unknown, rejected, applied, skipped atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for _, b := range batches {
		if im.known != nil && !im.known.TestString(b.Phone) {
			unknown.Add(1)
			im.lg.Warn("skipping unregistered phone",
				slog.String("phone", b.Phone),
				slog.Int("entries", len(b.Entries)),
			)
			continue
		}

		g.Go(func() error {
			if err := im.limiter.Wait(ctx); err != nil {
				return err
			}
			res, err := im.submit.SubmitPrices(ctx, vendor.SubmitRequest{
				Phone:    b.Phone,
				ShopID:   b.ShopID,
				Products: b.Entries,
			})
			if err != nil {
				if rejectable(err) {
					rejected.Add(1)
					im.lg.Warn("price list rejected",
						slog.String("phone", b.Phone),
						slog.String("shop_id", b.ShopID),
						slog.String("error", err.Error()),
					)
					return nil
				}
				return errors.Wrapf(err, "submit prices for %s", b.Phone)
			}
			applied.Add(int64(res.Applied))
			skipped.Add(int64(res.Skipped))
			return nil
		})
	}
	err := g.Wait()

	return Summary{
		Batches:  len(batches),
		Unknown:  int(unknown.Load()),
		Rejected: int(rejected.Load()),
		Applied:  int(applied.Load()),
		Skipped:  int(skipped.Load()),
	}, err
}

func rejectable(err error) bool {
	return errors.Is(err, shop.ErrNotFound) ||
		errors.Is(err, shop.ErrAmbiguousShop) ||
		errors.Is(err, shop.ErrInvalidInput)
}
