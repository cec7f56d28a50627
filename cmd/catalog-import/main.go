// Command catalog-import loads gzipped JSON-lines catalog files and stores
// their products.
//
// Usage:
//
//	catalog-import [-dry-run] file.jsonl.gz [file.jsonl.gz ...]
//
// With S3 enabled each path is looked up under S3_PREFIX in S3_BUCKET first
// and read from disk when that fails.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tg-storefront/internal/catalog"
	"tg-storefront/internal/config"
	"tg-storefront/internal/database"
	"tg-storefront/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dryRun := flag.Bool("dry-run", false, "parse and validate the files without writing to the database")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		return errors.New("at least one catalog file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger, "catalog-import")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileLoader := catalog.NewFileLoader(logger)
	var s3Loader catalog.Loader
	if cfg.S3.Enabled {
		s3Loader, err = catalog.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		}
	}
	loader := catalog.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, cfg.S3.Enabled, logger)

	entries, err := catalog.LoadAll(ctx, loader, paths)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	logger.Info().
		Int("files", len(paths)).
		Int("entries", len(entries)).
		Msg("catalog loaded")

	if *dryRun {
		return nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	importer := catalog.NewImporter(repository.NewProductRepository(pool, logger), logger)
	products, err := importer.Import(ctx, entries)
	if err != nil {
		return fmt.Errorf("imported %d of %d products: %w", len(products), len(entries), err)
	}

	logger.Info().Int("products", len(products)).Msg("catalog import completed")
	return nil
}
