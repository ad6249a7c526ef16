package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/bazaarscan/bazaarscan/internal/domain/nearby"
	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/domain/vendor"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

// Vendor apps are lenient about JSON types: numbers arrive as strings,
// categories as comma separated text. The readers below accept both.

// readBody reads the request body and decodes a JSON object with fn.
func (h *Handler) readBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	buf, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return shop.Invalid("body", "too large")
		}
		return errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(buf))) == 0 {
		return shop.Invalid("body", "a JSON object is required")
	}
	if err := jx.DecodeBytes(buf).Obj(fn); err != nil {
		var ve *shop.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return shop.Invalid("body", err.Error())
	}
	return nil
}

// readText reads a string, accepting numbers verbatim. Null reads as "".
func readText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		raw, err := d.Raw()
		if err != nil {
			return "", err
		}
		return raw.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.New("expected a string")
	}
}

// readFloat reads a number or numeric string. Null and "" read as nil.
func readFloat(d *jx.Decoder, field string) (*float64, error) {
	switch d.Next() {
	case jx.Number:
		v, err := d.Float64()
		if err != nil {
			return nil, shop.Invalid(field, "not a number")
		}
		return &v, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		if s = strings.TrimSpace(s); s == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, shop.Invalid(field, "not a number")
		}
		return &v, nil
	case jx.Null:
		return nil, d.Null()
	default:
		return nil, shop.Invalid(field, "not a number")
	}
}

// readPrice reads a price. Missing, blank and unparseable prices read as nil
// so the service skips the entry instead of failing the batch.
func readPrice(d *jx.Decoder) (*decimal.Decimal, error) {
	var text string
	switch d.Next() {
	case jx.Number:
		raw, err := d.Raw()
		if err != nil {
			return nil, err
		}
		text = raw.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(s)
	default:
		return nil, d.Skip()
	}

	p, err := decimal.NewFromString(text)
	if err != nil {
		return nil, nil
	}
	return &p, nil
}

// readCategories reads a list of strings or a single delimited string.
func readCategories(d *jx.Decoder) ([]string, error) {
	switch d.Next() {
	case jx.Array:
		var out []string
		err := d.Arr(func(d *jx.Decoder) error {
			s, err := readText(d)
			if err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
		return out, err
	case jx.Null:
		return nil, d.Null()
	default:
		s, err := readText(d)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func (h *Handler) decodeRegister(r *http.Request) (vendor.RegisterRequest, error) {
	var (
		req      vendor.RegisterRequest
		lat, lon *float64
	)
	err := h.readBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			req.ID, err = readText(d)
		case "name":
			req.Name, err = readText(d)
		case "phone":
			req.Phone, err = readText(d)
		case "address":
			req.Address, err = readText(d)
		case "lat":
			lat, err = readFloat(d, "lat")
		case "lon":
			lon, err = readFloat(d, "lon")
		case "categories":
			req.Categories.List, err = readCategories(d)
		case "category":
			req.Categories.Tag, err = readText(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, err
	}

	switch {
	case lat != nil && lon != nil:
		req.Location = &geo.Point{Lat: *lat, Lon: *lon}
	case lat != nil || lon != nil:
		return req, shop.Invalid("coordinates", "lat and lon must be given together")
	}
	return req, nil
}

func (h *Handler) decodeLogin(r *http.Request) (string, error) {
	var phone string
	err := h.readBody(r, func(d *jx.Decoder, key string) error {
		if key != "phone" {
			return d.Skip()
		}
		var err error
		phone, err = readText(d)
		return err
	})
	return phone, err
}

func (h *Handler) decodeSubmit(r *http.Request) (vendor.SubmitRequest, error) {
	var req vendor.SubmitRequest
	err := h.readBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "phone":
			req.Phone, err = readText(d)
		case "shopId":
			req.ShopID, err = readText(d)
		case "products":
			if d.Next() != jx.Array {
				if err := d.Skip(); err != nil {
					return err
				}
				return shop.Invalid("products", "must be an array")
			}
			err = d.Arr(func(d *jx.Decoder) error {
				entry, err := readPriceEntry(d)
				if err != nil {
					return err
				}
				req.Products = append(req.Products, entry)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func readPriceEntry(d *jx.Decoder) (vendor.PriceEntry, error) {
	var entry vendor.PriceEntry
	if d.Next() != jx.Object {
		// Not an entry at all; keep it so the service counts it as skipped.
		return entry, d.Skip()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			entry.Name, err = readText(d)
		case "price":
			entry.Price, err = readPrice(d)
		case "unit":
			entry.Unit, err = readText(d)
		case "category":
			entry.Category, err = readText(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return entry, err
}

// queryFloat parses an optional numeric query parameter.
func queryFloat(r *http.Request, name string) (float64, bool, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, shop.Invalid(name, "not a number")
	}
	return v, true, nil
}

// decodeQuery reads lat, lon, radius, product and category.
func (h *Handler) decodeQuery(r *http.Request) (nearby.Query, error) {
	lat, okLat, err := queryFloat(r, "lat")
	if err != nil {
		return nearby.Query{}, err
	}
	lon, okLon, err := queryFloat(r, "lon")
	if err != nil {
		return nearby.Query{}, err
	}
	if !okLat || !okLon {
		return nearby.Query{}, shop.Invalid("coordinates", "lat and lon are required")
	}
	radius, ok, err := queryFloat(r, "radius")
	if err != nil {
		return nearby.Query{}, err
	}
	if !ok {
		radius = h.defaultRadius
	}

	q := r.URL.Query()
	return nearby.Query{
		Origin:   geo.Point{Lat: lat, Lon: lon},
		RadiusKm: radius,
		Product:  q.Get("product"),
		Category: q.Get("category"),
	}, nil
}
