package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"

	"github.com/bazaarscan/bazaarscan/internal/domain/nearby"
	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
)

// Nearby serves GET /shops/nearby: shops around lat/lon, closest first,
// with their price tier for the product or category searched.
func (h *Handler) Nearby(w http.ResponseWriter, r *http.Request) {
	q, err := h.decodeQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	entries, err := h.finder.Evaluate(r.Context(), q)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, entry := range entries {
				encodeEntry(e, entry)
			}
		})
	})
}

// Stats serves GET /shops/stats: a price overview of the area.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	q, err := h.decodeQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	limit := nearby.DefaultOverviewLimit
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			fail(w, r, shop.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	o, err := h.finder.Overview(r.Context(), q, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOverview(e, o) })
}

// Register serves POST /shops/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRegister(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.vendors.Register(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}

	msg := "Store updated!"
	if res.Created {
		msg = "Store registered!"
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
			e.Field("shops", func(e *jx.Encoder) { encodeShops(e, res.Shops) })
			e.Field("activeShop", func(e *jx.Encoder) { encodeShop(e, res.Shop) })
		})
	})
}

// Login serves POST /shops/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	phone, err := h.decodeLogin(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	shops, err := h.vendors.Login(r.Context(), phone)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeShops(e, shops) })
}

// SubmitPrices serves POST /shops/submit-prices.
func (h *Handler) SubmitPrices(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSubmit(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := h.vendors.SubmitPrices(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("message", func(e *jx.Encoder) { e.Str("Prices updated!") })
			e.Field("shopId", func(e *jx.Encoder) { e.Str(res.ShopID) })
			e.Field("shop", func(e *jx.Encoder) { e.Str(res.ShopName) })
			e.Field("count", func(e *jx.Encoder) { e.Int(res.Applied) })
			e.Field("skipped", func(e *jx.Encoder) { e.Int(res.Skipped) })
		})
	})
}
