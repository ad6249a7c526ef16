// Package sqlite implements the shop repository on an embedded SQLite
// database for single-binary deployments.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/bazaarscan/bazaarscan/db"
	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	shopColumns    = `id, name, phone, address, lat, lon, categories, created_at, updated_at`
	productColumns = `id, shop_id, name, price, unit, category, created_at, updated_at`

	shopsInBoundsSQL = `SELECT ` + shopColumns + ` FROM shops
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY created_at, id`

	shopByIDSQL = `SELECT ` + shopColumns + ` FROM shops WHERE id = ?`

	shopsByPhoneSQL = `SELECT ` + shopColumns + ` FROM shops
		WHERE phone = ? ORDER BY created_at, id`

	productsOfShopsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE shop_id IN (?) ORDER BY created_at, id`

	upsertShopSQL = `INSERT INTO shops (` + shopColumns + `)
		VALUES (:id, :name, :phone, :address, :lat, :lon, :categories, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			lat = excluded.lat,
			lon = excluded.lon,
			categories = excluded.categories,
			updated_at = excluded.updated_at`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES (:id, :shop_id, :name, :price, :unit, :category, :created_at, :updated_at)
		ON CONFLICT (shop_id, name) DO UPDATE SET
			price = excluded.price,
			unit = excluded.unit,
			category = excluded.category,
			updated_at = excluded.updated_at
		RETURNING id`
)

type shopRow struct {
	ID         string  `db:"id"`
	Name       string  `db:"name"`
	Phone      string  `db:"phone"`
	Address    string  `db:"address"`
	Lat        float64 `db:"lat"`
	Lon        float64 `db:"lon"`
	Categories string  `db:"categories"`
	CreatedAt  string  `db:"created_at"`
	UpdatedAt  string  `db:"updated_at"`
}

type productRow struct {
	ID        string `db:"id"`
	ShopID    string `db:"shop_id"`
	Name      string `db:"name"`
	Price     string `db:"price"`
	Unit      string `db:"unit"`
	Category  string `db:"category"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	if _, err := conn.ExecContext(ctx, db.SQLiteSchema); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return conn, nil
}

var _ shop.Repository = (*ShopRepository)(nil)

// ShopRepository implements shop.Repository backed by SQLite.
type ShopRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewShopRepository returns a ShopRepository using conn. A positive timeout
// bounds every call.
func NewShopRepository(conn *sqlx.DB, timeout time.Duration) *ShopRepository {
	return &ShopRepository{db: conn, timeout: timeout}
}

func (r *ShopRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *ShopRepository) ShopsInBounds(ctx context.Context, b geo.Bounds) ([]shop.Shop, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.selectShops(ctx, shopsInBoundsSQL, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
}

func (r *ShopRepository) ByID(ctx context.Context, id string) (*shop.Shop, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var row shopRow
	if err := r.db.GetContext(ctx, &row, shopByIDSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shop.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get shop %q", id)
	}

	shops, err := r.toShops(ctx, []shopRow{row})
	if err != nil {
		return nil, err
	}
	return &shops[0], nil
}

func (r *ShopRepository) ByPhone(ctx context.Context, phone string) ([]shop.Shop, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.selectShops(ctx, shopsByPhoneSQL, phone)
}

func (r *ShopRepository) SaveShop(ctx context.Context, s *shop.Shop) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := shopRow{
		ID:         s.ID,
		Name:       s.Name,
		Phone:      s.Phone,
		Address:    s.Address,
		Lat:        s.Location.Lat,
		Lon:        s.Location.Lon,
		Categories: encodeCategories(s.Categories),
		CreatedAt:  formatTime(s.CreatedAt),
		UpdatedAt:  formatTime(s.UpdatedAt),
	}
	if _, err := r.db.NamedExecContext(ctx, upsertShopSQL, row); err != nil {
		return errors.Wrapf(err, "save shop %q", s.ID)
	}
	return nil
}

func (r *ShopRepository) SaveProduct(ctx context.Context, p *shop.Product) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if p.Price.IsNegative() {
		return errors.Errorf("save product %q: negative price %s", p.ID, p.Price)
	}
	row := productRow{
		ID:        p.ID,
		ShopID:    p.ShopID,
		Name:      p.Name,
		Price:     p.Price.String(),
		Unit:      p.Unit,
		Category:  p.Category,
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
	query, args, err := sqlx.Named(upsertProductSQL, row)
	if err != nil {
		return errors.Wrap(err, "bind product")
	}
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query), args...).Scan(&p.ID); err != nil {
		return errors.Wrapf(err, "save product %q", p.ID)
	}
	return nil
}

// Phones lists the distinct phone numbers that own at least one shop.
func (r *ShopRepository) Phones(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var phones []string
	if err := r.db.SelectContext(ctx, &phones, `SELECT DISTINCT phone FROM shops`); err != nil {
		return nil, errors.Wrap(err, "list phones")
	}
	return phones, nil
}

func (r *ShopRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ShopRepository) selectShops(ctx context.Context, query string, args ...any) ([]shop.Shop, error) {
	var rows []shopRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "query shops")
	}
	return r.toShops(ctx, rows)
}

// toShops converts rows and attaches their products with one query.
func (r *ShopRepository) toShops(ctx context.Context, rows []shopRow) ([]shop.Shop, error) {
	shops := make([]shop.Shop, len(rows))
	if len(rows) == 0 {
		return shops, nil
	}

	ids := make([]string, len(rows))
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		s, err := row.toShop()
		if err != nil {
			return nil, errors.Wrapf(err, "decode shop %q", row.ID)
		}
		shops[i] = s
		ids[i] = row.ID
		index[row.ID] = i
	}

	query, args, err := sqlx.In(productsOfShopsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expand product query")
	}
	var products []productRow
	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	for _, row := range products {
		p, err := row.toProduct()
		if err != nil {
			return nil, errors.Wrapf(err, "decode product %q", row.ID)
		}
		i := index[p.ShopID]
		shops[i].Products = append(shops[i].Products, p)
	}
	return shops, nil
}

func (row shopRow) toShop() (shop.Shop, error) {
	categories, err := decodeCategories(row.Categories)
	if err != nil {
		return shop.Shop{}, err
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return shop.Shop{}, errors.Wrap(err, "created_at")
	}
	updated, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return shop.Shop{}, errors.Wrap(err, "updated_at")
	}
	return shop.Shop{
		ID:         row.ID,
		Name:       row.Name,
		Phone:      row.Phone,
		Address:    row.Address,
		Location:   geo.Point{Lat: row.Lat, Lon: row.Lon},
		Categories: categories,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

func (row productRow) toProduct() (shop.Product, error) {
	price, err := decimal.NewFromString(row.Price)
	if err != nil {
		return shop.Product{}, errors.Wrap(err, "price")
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return shop.Product{}, errors.Wrap(err, "created_at")
	}
	updated, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return shop.Product{}, errors.Wrap(err, "updated_at")
	}
	return shop.Product{
		ID:        row.ID,
		ShopID:    row.ShopID,
		Name:      row.Name,
		Price:     price,
		Unit:      row.Unit,
		Category:  row.Category,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeCategories(categories []string) string {
	var e jx.Encoder
	e.ArrStart()
	for _, c := range categories {
		e.Str(c)
	}
	e.ArrEnd()
	return e.String()
}

func decodeCategories(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []string
	err := jx.DecodeStr(raw).Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "categories")
	}
	return out, nil
}
