package main

import (
	"bufio"
	"context"
	"os"
	"slices"
	"unicode"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

const (
	maxCodeLen    = 64
	progressEvery = 1_000_000
)

// codeStore is the storage the importer writes to.
type codeStore interface {
	EnsureDiscount(ctx context.Context, storeID, discountID string) error
	ForEachCode(ctx context.Context, storeID string, fn func(code string)) error
	ExistingCodes(ctx context.Context, storeID string, codes []string) (map[string]struct{}, error)
	InsertCodes(ctx context.Context, storeID, discountID string, codes []string) (int64, error)
}

type importer struct {
	store codeStore
	lg    *zap.Logger

	expectedCodes uint
	falsePositive float64
	batchSize     int
}

// importStats summarises a run.
type importStats struct {
	Read      int
	Invalid   int
	Existing  int
	Inserted  int64
	Confirmed int
}

func (im *importer) Import(ctx context.Context, storeID, discountID string, files []string) (importStats, error) {
	var stats importStats

	if err := im.store.EnsureDiscount(ctx, storeID, discountID); err != nil {
		return stats, err
	}

	codes, invalid, err := readCodeFiles(ctx, im.lg, files)
	if err != nil {
		return stats, errors.Wrap(err, "read code files")
	}
	stats.Read = len(codes)
	stats.Invalid = invalid
	im.lg.Info("Read codes", zap.Int("unique", len(codes)), zap.Int("invalid", invalid))

	filter := bloom.NewWithEstimates(im.expectedCodes, im.falsePositive)
	var stored int
	if err := im.store.ForEachCode(ctx, storeID, func(code string) {
		filter.AddString(code)
		stored++
	}); err != nil {
		return stats, errors.Wrap(err, "load existing codes")
	}
	im.lg.Info("Loaded existing codes", zap.Int("count", stored))

	fresh, maybe := partitionCodes(codes, filter)
	stats.Confirmed = len(maybe)

	for batch := range slices.Chunk(maybe, im.batchSize) {
		existing, err := im.store.ExistingCodes(ctx, storeID, batch)
		if err != nil {
			return stats, errors.Wrap(err, "confirm existing codes")
		}
		for _, code := range batch {
			if _, ok := existing[code]; ok {
				stats.Existing++
				continue
			}
			fresh = append(fresh, code)
		}
	}

	slices.Sort(fresh)
	for batch := range slices.Chunk(fresh, im.batchSize) {
		n, err := im.store.InsertCodes(ctx, storeID, discountID, batch)
		if err != nil {
			return stats, errors.Wrap(err, "insert codes")
		}
		stats.Inserted += n
		im.lg.Info("Insert progress", zap.Int64("inserted", stats.Inserted), zap.Int("total", len(fresh)))
	}

	return stats, nil
}

// partitionCodes splits codes into those the filter has definitely not seen
// and those that may already exist.
func partitionCodes(codes []string, filter *bloom.BloomFilter) (fresh, maybe []string) {
	for _, code := range codes {
		if filter.TestString(code) {
			maybe = append(maybe, code)
		} else {
			fresh = append(fresh, code)
		}
	}
	return fresh, maybe
}

// readCodeFiles reads gzipped newline-delimited code lists concurrently and
// returns the unique normalised codes.
func readCodeFiles(ctx context.Context, lg *zap.Logger, files []string) ([]string, int, error) {
	perFile := make([][]string, len(files))
	invalid := make([]int, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			var count int
			err := streamGzFile(ctx, path, func(line string) {
				code := discount.NormalizeCode(line)
				if code == "" {
					return
				}
				if !validCode(code) {
					invalid[i]++
					return
				}
				perFile[i] = append(perFile[i], code)
				count++
				if count%progressEvery == 0 {
					lg.Info("Read progress", zap.String("file", path), zap.Int("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{})
	var (
		unique     []string
		invalidSum int
	)
	for i, codes := range perFile {
		invalidSum += invalid[i]
		for _, code := range codes {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			unique = append(unique, code)
		}
	}
	return unique, invalidSum, nil
}

// validCode reports whether a normalised code can be stored.
func validCode(code string) bool {
	if len(code) > maxCodeLen {
		return false
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
