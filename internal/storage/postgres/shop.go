package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaarscan/bazaarscan/internal/domain/shop"
	"github.com/bazaarscan/bazaarscan/internal/geo"
)

const (
	shopColumns    = `id, name, phone, address, lat, lon, categories, created_at, updated_at`
	productColumns = `id, shop_id, name, price, unit, category, created_at, updated_at`

	shopsInBoundsSQL = `SELECT ` + shopColumns + ` FROM shops
		WHERE lat BETWEEN $1 AND $2 AND lon BETWEEN $3 AND $4
		ORDER BY created_at, id`

	shopByIDSQL = `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`

	shopsByPhoneSQL = `SELECT ` + shopColumns + ` FROM shops
		WHERE phone = $1 ORDER BY created_at, id`

	productsOfShopsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE shop_id = ANY($1) ORDER BY created_at, id`

	upsertShopSQL = `INSERT INTO shops (` + shopColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			categories = EXCLUDED.categories,
			updated_at = EXCLUDED.updated_at`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (shop_id, name) DO UPDATE SET
			price = EXCLUDED.price,
			unit = EXCLUDED.unit,
			category = EXCLUDED.category,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	phonesSQL = `SELECT DISTINCT phone FROM shops`
)

var _ shop.Repository = (*ShopRepository)(nil)

// ShopRepository implements shop.Repository backed by PostgreSQL.
type ShopRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewShopRepository returns a ShopRepository using pool. A positive timeout
// bounds every call.
func NewShopRepository(pool *pgxpool.Pool, timeout time.Duration) *ShopRepository {
	return &ShopRepository{pool: pool, timeout: timeout}
}

func (r *ShopRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// ShopsInBounds returns the shops inside b with their products.
func (r *ShopRepository) ShopsInBounds(ctx context.Context, b geo.Bounds) ([]shop.Shop, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.queryShops(ctx, shopsInBoundsSQL, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
}

// ByID returns the shop with id or shop.ErrNotFound.
func (r *ShopRepository) ByID(ctx context.Context, id string) (*shop.Shop, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, shopByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get shop %q", id)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanShop)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shop.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get shop %q", id)
	}

	shops := []shop.Shop{s}
	if err := r.attachProducts(ctx, shops); err != nil {
		return nil, err
	}
	return &shops[0], nil
}

// ByPhone returns every shop registered to phone.
func (r *ShopRepository) ByPhone(ctx context.Context, phone string) ([]shop.Shop, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.queryShops(ctx, shopsByPhoneSQL, phone)
}

// SaveShop inserts s or updates its mutable fields.
func (r *ShopRepository) SaveShop(ctx context.Context, s *shop.Shop) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	categories := s.Categories
	if categories == nil {
		categories = []string{}
	}
	_, err := r.pool.Exec(ctx, upsertShopSQL,
		s.ID, s.Name, s.Phone, s.Address, s.Location.Lat, s.Location.Lon,
		categories, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "save shop %q", s.ID)
	}
	return nil
}

// SaveProduct inserts p or updates the product of the same shop and name,
// then sets p.ID to the stored id.
func (r *ShopRepository) SaveProduct(ctx context.Context, p *shop.Product) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.ID, p.ShopID, p.Name, p.Price, p.Unit, p.Category, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return errors.Wrapf(err, "save product %q", p.ID)
	}
	return nil
}

// Phones lists the distinct phone numbers that own at least one shop.
func (r *ShopRepository) Phones(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, phonesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list phones")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Ping checks the database connection.
func (r *ShopRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *ShopRepository) queryShops(ctx context.Context, sql string, args ...any) ([]shop.Shop, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query shops")
	}
	shops, err := pgx.CollectRows(rows, scanShop)
	if err != nil {
		return nil, errors.Wrap(err, "scan shops")
	}
	if err := r.attachProducts(ctx, shops); err != nil {
		return nil, err
	}
	return shops, nil
}

// attachProducts loads the products of shops with a single query.
func (r *ShopRepository) attachProducts(ctx context.Context, shops []shop.Shop) error {
	if len(shops) == 0 {
		return nil
	}

	ids := make([]string, len(shops))
	index := make(map[string]int, len(shops))
	for i, s := range shops {
		ids[i] = s.ID
		index[s.ID] = i
	}

	rows, err := r.pool.Query(ctx, productsOfShopsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "query products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return errors.Wrap(err, "scan products")
	}
	for _, p := range products {
		i := index[p.ShopID]
		shops[i].Products = append(shops[i].Products, p)
	}
	return nil
}

func scanShop(row pgx.CollectableRow) (shop.Shop, error) {
	var s shop.Shop
	err := row.Scan(
		&s.ID, &s.Name, &s.Phone, &s.Address,
		&s.Location.Lat, &s.Location.Lon, &s.Categories,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func scanProduct(row pgx.CollectableRow) (shop.Product, error) {
	var p shop.Product
	err := row.Scan(
		&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Unit, &p.Category,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
