package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarscan/bazaarscan/internal/domain/nearby"
	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

// --- Mock implementations ---

type mockFinder struct {
	query    nearby.Query
	limit    int
	entries  []nearby.Entry
	overview *nearby.Overview
	err      error
}

func (m *mockFinder) Evaluate(_ context.Context, q nearby.Query) ([]nearby.Entry, error) {
	m.query = q
	return m.entries, m.err
}

func (m *mockFinder) Overview(_ context.Context, q nearby.Query, limit int) (*nearby.Overview, error) {
	m.query = q
	m.limit = limit
	return m.overview, m.err
}

type mockVendors struct {
	register  vendor.RegisterRequest
	phone     string
	submit    vendor.SubmitRequest
	regResult *vendor.RegisterResult
	shops     []shop.Shop
	subResult *vendor.SubmitResult
	err       error
}

func (m *mockVendors) Register(_ context.Context, req vendor.RegisterRequest) (*vendor.RegisterResult, error) {
	m.register = req
	return m.regResult, m.err
}

func (m *mockVendors) Login(_ context.Context, phone string) ([]shop.Shop, error) {
	m.phone = phone
	return m.shops, m.err
}

func (m *mockVendors) SubmitPrices(_ context.Context, req vendor.SubmitRequest) (*vendor.SubmitResult, error) {
	m.submit = req
	return m.subResult, m.err
}

// --- Helpers ---

var testTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestHandler(f *mockFinder, v *mockVendors) http.Handler {
	h := NewHandler(Config{DefaultRadiusKm: 5}, f, v)
	h.now = func() time.Time { return testTime }
	return h.Routes()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func testShop() shop.Shop {
	return shop.Shop{
		ID:         "s1",
		Name:       "Akmal",
		Phone:      "+998901111111",
		Address:    "E-Block",
		Location:   geo.Point{Lat: 41.3, Lon: 69.3},
		Categories: []string{"vegetables"},
		Products: []shop.Product{{
			ID: "p1", ShopID: "s1", Name: "tomato", Price: decimal.RequireFromString("12.5"),
			Unit: "kg", Category: "vegetables", UpdatedAt: testTime,
		}},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// --- Tests ---

func TestHealth(t *testing.T) {
	w := do(t, newTestHandler(&mockFinder{}, &mockVendors{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","timestamp":"2026-03-01T09:30:00Z"}`, w.Body.String())
}

func TestRoutingErrors(t *testing.T) {
	h := newTestHandler(&mockFinder{}, &mockVendors{})

	w := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"route not found"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/shops/register", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNearby(t *testing.T) {
	f := &mockFinder{entries: []nearby.Entry{
		{
			Shop:       testShop(),
			DistanceKm: 1.25,
			Tier:       nearby.TierCheapest,
			BestPrice:  decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
		},
		{Shop: shop.Shop{ID: "s2", Name: "Empty"}, DistanceKm: 2, Tier: nearby.TierNoMatch},
	}}
	w := do(t, newTestHandler(f, &mockVendors{}), http.MethodGet,
		"/shops/nearby?lat=41.3&lon=69.3&radius=3&product=Tomato&category=fruits", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, nearby.Query{
		Origin:   geo.Point{Lat: 41.3, Lon: 69.3},
		RadiusKm: 3,
		Product:  "Tomato",
		Category: "fruits",
	}, f.query)

	assert.JSONEq(t, `[
		{"id":"s1","name":"Akmal","phone":"+998901111111","address":"E-Block","lat":41.3,"lon":69.3,
		 "categories":["vegetables"],
		 "products":[{"id":"p1","shopId":"s1","name":"tomato","price":12.5,"unit":"kg",
		              "category":"vegetables","lastUpdated":"2026-03-01T09:30:00Z"}],
		 "createdAt":"2026-03-01T09:30:00Z","updatedAt":"2026-03-01T09:30:00Z",
		 "distance":1.25,"tier":"cheapest","color":"green","bestPrice":12.5},
		{"id":"s2","name":"Empty","phone":"","address":"","lat":0,"lon":0,"categories":[],"products":[],
		 "createdAt":"0001-01-01T00:00:00Z","updatedAt":"0001-01-01T00:00:00Z",
		 "distance":2,"tier":"no-match","color":"blue","bestPrice":null}
	]`, w.Body.String())
}

func TestNearby_DefaultRadius(t *testing.T) {
	f := &mockFinder{}
	w := do(t, newTestHandler(f, &mockVendors{}), http.MethodGet, "/shops/nearby?lat=41.3&lon=69.3", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5.0, f.query.RadiusKm)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestNearby_BadQuery(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing lat", "/shops/nearby?lon=69.3"},
		{"missing lon", "/shops/nearby?lat=41.3"},
		{"non-numeric lat", "/shops/nearby?lat=abc&lon=69.3"},
		{"non-numeric radius", "/shops/nearby?lat=41.3&lon=69.3&radius=far"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFinder{}
			w := do(t, newTestHandler(f, &mockVendors{}), http.MethodGet, tt.target, "")

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
			assert.Zero(t, f.query)
		})
	}
}

func TestNearby_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", shop.Invalid("radius", "must not exceed 50 km"), http.StatusBadRequest,
			`{"error":"invalid radius: must not exceed 50 km"}`},
		{"storage", errors.New("pq: connection reset"), http.StatusInternalServerError,
			`{"error":"internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFinder{err: tt.err}
			w := do(t, newTestHandler(f, &mockVendors{}), http.MethodGet, "/shops/nearby?lat=1&lon=2", "")

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestStats(t *testing.T) {
	f := &mockFinder{overview: &nearby.Overview{
		TotalShops:    2,
		TotalProducts: 3,
		Products: []nearby.PriceStat{{
			Name: "tomato", Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(14),
			Avg: decimal.NewFromInt(12), Count: 2,
		}},
	}}
	h := newTestHandler(f, &mockVendors{})

	w := do(t, h, http.MethodGet, "/shops/stats?lat=41.3&lon=69.3&limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, f.limit)
	assert.JSONEq(t, `{"totalShops":2,"totalProducts":3,
		"products":[{"name":"tomato","min":10,"max":14,"avg":12,"count":2}]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/shops/stats?lat=41.3&lon=69.3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, nearby.DefaultOverviewLimit, f.limit)

	w = do(t, h, http.MethodGet, "/shops/stats?lat=41.3&lon=69.3&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister(t *testing.T) {
	s := testShop()
	v := &mockVendors{regResult: &vendor.RegisterResult{Shop: s, Shops: []shop.Shop{s}, Created: true}}

	w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/register",
		`{"name":"Akmal","phone":998901111111,"address":"E-Block","lat":"41.3","lon":69.3,
		  "categories":"vegetables, fruits","extra":{"ignored":true}}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, vendor.RegisterRequest{
		Name:       "Akmal",
		Phone:      "998901111111",
		Address:    "E-Block",
		Location:   &geo.Point{Lat: 41.3, Lon: 69.3},
		Categories: shop.Categories{List: []string{"vegetables, fruits"}},
	}, v.register)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), `"message":"Store registered!"`)
	assert.Contains(t, w.Body.String(), `"activeShop":{"id":"s1"`)
}

func TestRegister_UpdateAndCategoryTag(t *testing.T) {
	s := testShop()
	v := &mockVendors{regResult: &vendor.RegisterResult{Shop: s, Shops: []shop.Shop{s}}}

	w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/register",
		`{"id":"s1","phone":"+998901111111","category":"meat","lat":null,"lon":""}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", v.register.ID)
	assert.Equal(t, "meat", v.register.Categories.Tag)
	assert.Nil(t, v.register.Location)
	assert.Contains(t, w.Body.String(), `"message":"Store updated!"`)
}

func TestRegister_CategoryArray(t *testing.T) {
	s := testShop()
	v := &mockVendors{regResult: &vendor.RegisterResult{Shop: s}}

	w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/register",
		`{"phone":"1","categories":["fruits","meat"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"fruits", "meat"}, v.register.Categories.List)
}

func TestRegister_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"phone":`},
		{"not an object", `[1,2]`},
		{"lat without lon", `{"phone":"1","lat":41.3}`},
		{"bad lat", `{"phone":"1","lat":"north","lon":1}`},
		{"object phone", `{"phone":{"n":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVendors{}
			w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/register", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Empty(t, v.register.Phone)
		})
	}
}

func TestRegister_BodyTooLarge(t *testing.T) {
	h := NewHandler(Config{MaxBodyBytes: 16}, &mockFinder{}, &mockVendors{})
	w := do(t, h.Routes(), http.MethodPost, "/shops/register", `{"phone":"123456789012345"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid body: too large"}`, w.Body.String())
}

func TestLogin(t *testing.T) {
	v := &mockVendors{shops: []shop.Shop{testShop()}}
	w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/login", `{"phone":"+998901111111"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+998901111111", v.phone)
	assert.True(t, strings.HasPrefix(w.Body.String(), `[{"id":"s1"`))
}

func TestLogin_NotFound(t *testing.T) {
	v := &mockVendors{err: shop.ErrNotFound}
	w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/login", `{"phone":"+1"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"shop not found"}`, w.Body.String())
}

func TestSubmitPrices(t *testing.T) {
	v := &mockVendors{subResult: &vendor.SubmitResult{ShopID: "s1", ShopName: "Akmal", Applied: 2, Skipped: 3}}

	w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/submit-prices", `{
		"phone":"+998901111111","shopId":"s1",
		"products":[
			{"name":"Tomato","price":12.50,"unit":"kg","category":"vegetables"},
			{"name":"onion","price":"4"},
			{"name":"garlic","price":"cheap"},
			{"name":"pepper"},
			"junk"
		]}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Prices updated!","shopId":"s1","shop":"Akmal",
		"count":2,"skipped":3}`, w.Body.String())

	assert.Equal(t, "+998901111111", v.submit.Phone)
	assert.Equal(t, "s1", v.submit.ShopID)
	require.Len(t, v.submit.Products, 5)
	assert.Equal(t, vendor.PriceEntry{Name: "Tomato", Price: price("12.50"), Unit: "kg", Category: "vegetables"},
		v.submit.Products[0])
	assert.True(t, decimal.NewFromInt(4).Equal(*v.submit.Products[1].Price))
	assert.Nil(t, v.submit.Products[2].Price)
	assert.Nil(t, v.submit.Products[3].Price)
	assert.Empty(t, v.submit.Products[4].Name)
}

func TestSubmitPrices_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"products not an array", `{"phone":"1","products":"tomato=5"}`, nil, http.StatusBadRequest},
		{"ambiguous", `{"phone":"1","products":[{"name":"a","price":1}]}`, shop.ErrAmbiguousShop, http.StatusConflict},
		{"unknown shop", `{"phone":"1","products":[{"name":"a","price":1}]}`, shop.ErrNotFound, http.StatusNotFound},
		{"invalid", `{"products":[]}`, shop.Invalid("phone", "is required"), http.StatusBadRequest},
		{"storage", `{"phone":"1","products":[{"name":"a","price":1}]}`, errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockVendors{err: tt.err}
			w := do(t, newTestHandler(&mockFinder{}, v), http.MethodPost, "/shops/submit-prices", tt.body)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}
