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
		databaseURL   string
		storeID       string
		discountID    string
		expectedCodes uint
		batchSize     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storeID, "store", "", "store the codes belong to")
	flag.StringVar(&discountID, "discount", "", "discount the codes unlock")
	flag.UintVar(&expectedCodes, "expected-codes", 10_000_000, "expected number of stored codes, sizes the bloom filter")
	flag.IntVar(&batchSize, "batch-size", 50_000, "codes per lookup and COPY batch")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	switch {
	case databaseURL == "":
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	case storeID == "" || discountID == "":
		lg.Fatal("--store and --discount are required")
	case flag.NArg() == 0:
		lg.Fatal("No code files given")
	case batchSize <= 0:
		lg.Fatal("--batch-size must be positive")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, storeID, discountID, expectedCodes, batchSize, flag.Args()); err != nil {
		lg.Fatal("Code import failed", zap.Error(err))
	}
}

func run(
	ctx context.Context,
	lg *zap.Logger,
	databaseURL, storeID, discountID string,
	expectedCodes uint,
	batchSize int,
	files []string,
) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	im := &importer{
		store:         postgres.NewCodeRepository(pool),
		lg:            lg,
		expectedCodes: expectedCodes,
		falsePositive: 0.001,
		batchSize:     batchSize,
	}
	stats, err := im.Import(ctx, storeID, discountID, files)
	if err != nil {
		return err
	}

	lg.Info("Code import completed",
		zap.String("store_id", storeID),
		zap.String("discount_id", discountID),
		zap.Int("read", stats.Read),
		zap.Int("invalid", stats.Invalid),
		zap.Int("bloom_positives", stats.Confirmed),
		zap.Int("existing", stats.Existing),
		zap.Int64("inserted", stats.Inserted),
	)
	return nil
}
