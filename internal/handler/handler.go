// Package handler is the HTTP transport of the price map API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/bazaarscan/bazaarscan/internal/domain/nearby"
	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
)

// Finder answers map queries.
type Finder interface {
	Evaluate(ctx context.Context, q nearby.Query) ([]nearby.Entry, error)
	Overview(ctx context.Context, q nearby.Query, limit int) (*nearby.Overview, error)
}

// Vendors performs shop owner operations.
type Vendors interface {
	Register(ctx context.Context, req vendor.RegisterRequest) (*vendor.RegisterResult, error)
	Login(ctx context.Context, phone string) ([]shop.Shop, error)
	SubmitPrices(ctx context.Context, req vendor.SubmitRequest) (*vendor.SubmitResult, error)
}

// Config holds transport settings.
type Config struct {
	// DefaultRadiusKm is used when a map query has no radius.
	DefaultRadiusKm float64
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the /api routes.
type Handler struct {
	finder  Finder
	vendors Vendors

	defaultRadius float64
	maxBody       int64
	now           func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, finder Finder, vendors Vendors) *Handler {
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = 5
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		finder:        finder,
		vendors:       vendors,
		defaultRadius: cfg.DefaultRadiusKm,
		maxBody:       cfg.MaxBodyBytes,
		now:           time.Now,
	}
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.Health)
	r.Route("/shops", func(r chi.Router) {
		r.Get("/nearby", h.Nearby)
		r.Get("/stats", h.Stats)
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/submit-prices", h.SubmitPrices)
	})
	return r
}

// Health reports that the API process is up.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	at := h.now().UTC()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			e.Field("timestamp", func(e *jx.Encoder) { e.Str(at.Format(time.RFC3339)) })
		})
	})
}
