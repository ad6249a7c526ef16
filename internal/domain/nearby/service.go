package nearby

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

const instrumentationName = "github.com/bazaarscan/bazaarscan/internal/domain/nearby"

// Config holds evaluator limits.
type Config struct {
	// MaxRadiusKm rejects larger search radii. Zero disables the limit.
	MaxRadiusKm float64
}

// Evaluator answers proximity price-comparison queries from a snapshot of the
// shop repository. It holds no per-request state.
type Evaluator struct {
	shops     shop.Repository
	maxRadius float64

	tracer  trace.Tracer
	queries metric.Int64Counter
}

// NewEvaluator creates an Evaluator reading shops from repo.
func NewEvaluator(
	repo shop.Repository,
	cfg Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Evaluator, error) {
	queries, err := mp.Meter(instrumentationName).Int64Counter("bazaar.nearby.queries",
		metric.WithDescription("Nearby shop queries evaluated"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create queries counter")
	}

	return &Evaluator{
		shops:     repo,
		maxRadius: cfg.MaxRadiusKm,
		tracer:    tp.Tracer(instrumentationName),
		queries:   queries,
	}, nil
}

// Evaluate returns the shops within the query radius, closest first, each
// tagged with its price tier for the query's product or category.
func (e *Evaluator) Evaluate(ctx context.Context, q Query) (_ []Entry, rerr error) {
	ctx, span := e.tracer.Start(ctx, "nearby.Evaluate", trace.WithAttributes(
		attribute.Float64("bazaar.radius_km", q.RadiusKm),
		attribute.String("bazaar.product", q.Product),
		attribute.String("bazaar.category", q.Category),
	))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	located, err := e.locate(ctx, q)
	if err != nil {
		return nil, err
	}

	f := q.filter()
	e.queries.Add(ctx, 1, metric.WithAttributes(attribute.String("filter", f.kind())))

	entries := classify(located, f)
	span.SetAttributes(attribute.Int("bazaar.shops", len(entries)))
	return entries, nil
}

// locate validates q and runs the geo filter over the candidate shops.
func (e *Evaluator) locate(ctx context.Context, q Query) ([]located, error) {
	if err := q.Validate(e.maxRadius); err != nil {
		return nil, err
	}

	candidates, err := e.shops.ShopsInBounds(ctx, geo.BoundingBox(q.Origin, q.RadiusKm))
	if err != nil {
		return nil, errors.Wrap(err, "load shops in bounds")
	}
	return withinRadius(q.Origin, q.RadiusKm, candidates), nil
}

func (f filter) kind() string {
	switch {
	case f.product != "":
		return "product"
	case f.category != "":
		return "category"
	default:
		return "none"
	}
}
