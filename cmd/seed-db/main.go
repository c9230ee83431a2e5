// Command seed-db loads product catalogs into the storefront database.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/internal/wire"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Usage = func() {
		_, _ = io.WriteString(flag.CommandLine.Output(),
			"Usage: seed-db [--database-url URL] [catalog.json | catalog.json.gz ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	files := flag.Args()
	if len(files) == 0 {
		files = []string{filepath.Join("db", "seed", "products.json")}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string) error {
	products, err := loadCatalogs(ctx, lg, files)
	if err != nil {
		return errors.Wrap(err, "load catalogs")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	lg.Info("Upserting products", zap.Int("count", len(products)))
	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	return nil
}

// loadCatalogs reads every file concurrently and merges the products. Later
// files override earlier ones for the same product id.
func loadCatalogs(ctx context.Context, lg *zap.Logger, files []string) ([]product.Product, error) {
	results := make([][]product.Product, len(files))

	g, _ := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			ps, err := loadCatalog(name)
			if err != nil {
				return errors.Wrapf(err, "load %s", name)
			}
			lg.Info("Read catalog", zap.String("path", name), zap.Int("products", len(ps)))
			results[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		merged []product.Product
		index  = make(map[int64]int)
	)
	for _, ps := range results {
		for _, p := range ps {
			if i, ok := index[p.ID]; ok {
				merged[i] = p
				continue
			}
			index[p.ID] = len(merged)
			merged = append(merged, p)
		}
	}
	return merged, nil
}

// loadCatalog decodes one catalog file. Files ending in .gz are decompressed.
// The content is either a bare product array or an API list envelope.
func loadCatalog(name string) ([]product.Product, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	return decodeCatalog(buf)
}

func decodeCatalog(buf []byte) ([]product.Product, error) {
	resp, err := wire.DecodeResponse(buf)
	if err != nil {
		return nil, err
	}
	if !resp.HasData() {
		return nil, errors.New("catalog has no products")
	}
	ps, err := wire.DecodeProducts(resp.DataDecoder())
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	for _, p := range ps {
		if p.ID < 1 {
			return nil, errors.Errorf("product %q: id must be positive", p.Name)
		}
		if p.Price.IsNegative() {
			return nil, errors.Errorf("product %d: negative price", p.ID)
		}
	}
	return ps, nil
}
