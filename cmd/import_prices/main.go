package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"mensago/internal/config"
	"mensago/internal/db"
	"mensago/internal/importer"
)

type options struct {
	pricingPath   string
	allergensPath string
	chunkSize     int
}

func main() {
	opts := options{}
	flag.StringVar(&opts.pricingPath, "pricing", "", "path to the supplier pricing csv")
	flag.StringVar(&opts.allergensPath, "allergens", "", "path to the allergen declaration csv")
	flag.IntVar(&opts.chunkSize, "chunk", importer.DefaultChunkSize, "product codes resynced per pass")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if strings.TrimSpace(opts.pricingPath) == "" && strings.TrimSpace(opts.allergensPath) == "" {
		return fmt.Errorf("at least one of -pricing or -allergens must be provided")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return runImports(ctx, database, opts, out)
}

func runImports(ctx context.Context, database *gorm.DB, opts options, out io.Writer) error {
	imp := importer.New(database)
	if opts.chunkSize > 0 {
		imp.ChunkSize = opts.chunkSize
	}

	if path := strings.TrimSpace(opts.pricingPath); path != "" {
		result, err := importFile(ctx, path, imp.ImportPricing)
		if err != nil {
			return fmt.Errorf("import pricing: %w", err)
		}
		report(out, "pricing", path, result)
	}

	if path := strings.TrimSpace(opts.allergensPath); path != "" {
		result, err := importFile(ctx, path, imp.ImportAllergens)
		if err != nil {
			return fmt.Errorf("import allergens: %w", err)
		}
		report(out, "allergens", path, result)
	}

	return nil
}

func importFile(ctx context.Context, path string, load func(context.Context, io.Reader) (*importer.Result, error)) (*importer.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	return load(ctx, file)
}

func report(out io.Writer, kind, path string, result *importer.Result) {
	fmt.Fprintf(out, "Imported %d %s rows from %s (skipped %d, snapshots updated %d, recipes recalculated %d)\n",
		result.Imported,
		kind,
		filepath.Base(path),
		result.Skipped,
		result.Resync.SnapshotsUpdated,
		result.Resync.RecipesRecalculated,
	)
	for _, failure := range result.Resync.Failures {
		fmt.Fprintf(out, "  resync failure: recipe %d: %s\n", failure.RecipeID, failure.Reason)
	}
}
