package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

const productColumns = `p.id, p.name, p.description, p.price, p.category, p.stock, p.images,
	p.thumbnail, p.rating, p.discount_percentage, p.created_at, p.updated_at`

// productFilter is shared by the page and count queries. Parameters:
// $1 search, $2 category, $3 min price, $4 max price.
const productFilter = `
	WHERE ($1 = '' OR p.name ILIKE '%' || $1 || '%' OR p.description ILIKE '%' || $1 || '%')
	  AND ($2 = '' OR p.category = $2)
	  AND ($3::numeric IS NULL OR p.price >= $3::numeric)
	  AND ($4::numeric IS NULL OR p.price <= $4::numeric)`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products p` + productFilter + `
	ORDER BY p.id LIMIT $5 OFFSET $6`

	countProductsSQL = `SELECT count(*) FROM products p` + productFilter

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = ANY($1) ORDER BY p.id`

	countAllProductsSQL = `SELECT count(*) FROM products`

	listCategoriesSQL = `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, category, stock, images,
		thumbnail, rating, discount_percentage)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		category = EXCLUDED.category,
		stock = EXCLUDED.stock,
		images = EXCLUDED.images,
		thumbnail = EXCLUDED.thumbnail,
		rating = EXCLUDED.rating,
		discount_percentage = EXCLUDED.discount_percentage,
		updated_at = now()`

	// Keeps BIGSERIAL ahead of explicitly inserted ids.
	syncProductSeqSQL = `SELECT setval(pg_get_serial_sequence('products', 'id'),
		GREATEST((SELECT COALESCE(max(id), 0) FROM products), 1))`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one page of products matching f, ordered by id.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) (*product.Page, error) {
	f = f.Normalize()
	args := []any{f.Search, f.Category, f.MinPrice, f.MaxPrice}

	var total int
	if err := r.pool.QueryRow(ctx, countProductsSQL, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count products")
	}

	rows, err := r.pool.Query(ctx, listProductsSQL, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	items, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}

	return &product.Page{
		Items:      items,
		Pagination: product.NewPagination(f.Page, f.Limit, total),
	}, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given ids.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Categories returns the distinct non-empty categories, sorted.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Count returns the number of products in the catalog.
func (r *ProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countAllProductsSQL).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count products")
	}
	return n, nil
}

// Upsert inserts or replaces products by id in a single batch.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			images := p.Images
			if images == nil {
				images = []string{}
			}
			batch.Queue(upsertProductSQL,
				p.ID, p.Name, p.Description, p.Price, p.Category, p.Stock, images,
				p.Thumbnail, p.Rating, p.DiscountPercentage,
			)
		}
		batch.Queue(syncProductSeqSQL)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert products")
		}
		return nil
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.Images,
		&p.Thumbnail, &p.Rating, &p.DiscountPercentage, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
