package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	lg, err := zap.NewDevelopment()
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, catalogFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, catalogFile string) error {
	lg.Info("Reading catalog file", zap.String("path", catalogFile))

	f, err := os.Open(catalogFile)
	if err != nil {
		return errors.Wrap(err, "open catalog file")
	}
	defer func() { _ = f.Close() }()

	stores, err := parseSeed(f)
	if err != nil {
		return errors.Wrap(err, "parse catalog file")
	}

	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	w := postgres.NewCatalogWriter(pool)
	for _, s := range stores {
		if err := w.WriteCatalog(ctx, s.ID, s.Variants, s.Catalog, s.Codes); err != nil {
			return errors.Wrapf(err, "write store %q", s.ID)
		}

		lg.Info("Seeded store",
			zap.String("store_id", s.ID),
			zap.Int("variants", len(s.Variants)),
			zap.Int("collections", len(s.Catalog.Collections)),
			zap.Int("discounts", len(s.Catalog.Discounts)),
			zap.Int("codes", len(s.Codes)),
		)
	}

	return nil
}
