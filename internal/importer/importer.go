// Package importer ingests the supplier's tabular exports: a pricing table
// and an allergen matrix. Each import upserts the catalogue inside one
// transaction and then refreshes the affected recipe snapshots in chunks.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mensago/internal/allergen"
	applog "mensago/internal/log"
	"mensago/internal/snapshot"
	"mensago/models"
)

var (
	ErrEmptyInput     = errors.New("importer: input contains no rows")
	ErrMissingColumns = errors.New("importer: required columns missing")
)

// DefaultChunkSize bounds how many product codes one resync pass touches,
// keeping a single import request within the platform time limit.
const DefaultChunkSize = 25

// Importer runs bulk imports against the given database handle.
type Importer struct {
	DB        *gorm.DB
	ChunkSize int
}

// New returns an Importer with the default chunk size.
func New(db *gorm.DB) *Importer {
	return &Importer{DB: db, ChunkSize: DefaultChunkSize}
}

// Result summarises one import run. Skipped counts malformed rows, which
// never abort the file; only structural problems do.
type Result struct {
	BatchID  string                `json:"batch_id"`
	Imported int                   `json:"imported"`
	Skipped  int                   `json:"skipped"`
	Resync   snapshot.ResyncResult `json:"resync"`
}

// ImportPricing reads the pricing table (columns: code, product name,
// supplier, weight, unit, price), upserts ingredients by product code and
// resyncs every recipe snapshot referencing a changed code.
func (imp *Importer) ImportPricing(ctx context.Context, r io.Reader) (*Result, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}

	codeCol := findColumn(header, "code", "product code", "productcode")
	nameCol := findColumn(header, "product", "product name", "name", "description")
	priceCol := findColumn(header, "price", "pack price", "cost")
	if codeCol < 0 || nameCol < 0 || priceCol < 0 {
		return nil, fmt.Errorf("%w: need code, product name and price", ErrMissingColumns)
	}
	supplierCol := findColumn(header, "supplier", "vendor")
	weightCol := findColumn(header, "weight", "pack weight", "pack size")
	unitCol := findColumn(header, "unit", "units", "uom")

	result := &Result{BatchID: uuid.NewString()}
	var changed []string

	err = imp.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, row := range rows {
			code := strings.TrimSpace(cell(row, codeCol))
			name := strings.TrimSpace(cell(row, nameCol))
			price, priceOK := parsePrice(cell(row, priceCol))
			if code == "" || name == "" || !priceOK {
				applog.Debug(ctx, "skipping malformed pricing row", "row", idx+2, "code", code)
				result.Skipped++
				continue
			}

			ingredient := models.Ingredient{
				ProductCode: code,
				Name:        name,
				Supplier:    strings.TrimSpace(cell(row, supplierCol)),
				PackWeight:  parseWeight(cell(row, weightCol)),
				Unit:        strings.TrimSpace(cell(row, unitCol)),
				Price:       price,
			}

			if err := upsertIngredient(ctx, tx, ingredient); err != nil {
				return fmt.Errorf("row %d (%s): %w", idx+2, code, err)
			}
			result.Imported++
			changed = append(changed, code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Resync, err = imp.resyncChunked(ctx, changed)
	if err != nil {
		return nil, err
	}

	applog.Info(ctx, "pricing import finished",
		"batchID", result.BatchID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"snapshotsUpdated", result.Resync.SnapshotsUpdated,
	)
	return result, nil
}

// ImportAllergens reads the allergen matrix (columns: code, description,
// then one column per allergen). Cell tokens map y/yes to has, n/no to no
// and may/"may contain"/p to may; anything else is ignored. Declarations
// are upserted per (code, allergen) pair and the affected snapshots resynced.
func (imp *Importer) ImportAllergens(ctx context.Context, r io.Reader) (*Result, error) {
	header, rows, err := readTable(r)
	if err != nil {
		return nil, err
	}

	codeCol := findColumn(header, "code", "product code", "productcode")
	if codeCol < 0 {
		return nil, fmt.Errorf("%w: need a code column", ErrMissingColumns)
	}
	descriptionCol := findColumn(header, "description", "product", "product name", "name")

	allergenCols := make(map[int]string)
	for idx, name := range header {
		if idx == codeCol || idx == descriptionCol {
			continue
		}
		trimmed := strings.TrimSpace(name)
		if trimmed != "" {
			allergenCols[idx] = trimmed
		}
	}
	if len(allergenCols) == 0 {
		return nil, fmt.Errorf("%w: no allergen columns found", ErrMissingColumns)
	}

	result := &Result{BatchID: uuid.NewString()}
	var changed []string

	err = imp.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, row := range rows {
			code := strings.TrimSpace(cell(row, codeCol))
			if code == "" {
				applog.Debug(ctx, "skipping allergen row without code", "row", idx+2)
				result.Skipped++
				continue
			}

			stored := 0
			for col, name := range allergenCols {
				status, ok := allergen.ParseStatus(cell(row, col))
				if !ok {
					continue
				}
				if err := upsertDeclaration(ctx, tx, code, name, status); err != nil {
					return fmt.Errorf("row %d (%s/%s): %w", idx+2, code, name, err)
				}
				stored++
			}
			if stored == 0 {
				result.Skipped++
				continue
			}
			result.Imported++
			changed = append(changed, code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Resync, err = imp.resyncChunked(ctx, changed)
	if err != nil {
		return nil, err
	}

	applog.Info(ctx, "allergen import finished",
		"batchID", result.BatchID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"snapshotsUpdated", result.Resync.SnapshotsUpdated,
	)
	return result, nil
}

func (imp *Importer) resyncChunked(ctx context.Context, codes []string) (snapshot.ResyncResult, error) {
	combined := snapshot.ResyncResult{}
	chunkSize := imp.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	for start := 0; start < len(codes); start += chunkSize {
		end := start + chunkSize
		if end > len(codes) {
			end = len(codes)
		}
		partial, err := snapshot.Resync(ctx, imp.DB, codes[start:end])
		combined.SnapshotsUpdated += partial.SnapshotsUpdated
		combined.RecipesRecalculated += partial.RecipesRecalculated
		combined.Failures = append(combined.Failures, partial.Failures...)
		if err != nil {
			return combined, err
		}
	}
	return combined, nil
}

func upsertIngredient(ctx context.Context, tx *gorm.DB, ingredient models.Ingredient) error {
	var existing models.Ingredient
	err := tx.WithContext(ctx).Where("product_code = ?", ingredient.ProductCode).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"name":        ingredient.Name,
			"supplier":    ingredient.Supplier,
			"pack_weight": ingredient.PackWeight,
			"unit":        ingredient.Unit,
			"price":       ingredient.Price,
		}
		if err := tx.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("update ingredient: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.WithContext(ctx).Create(&ingredient).Error; err != nil {
			return fmt.Errorf("create ingredient: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find ingredient: %w", err)
	}
}

func upsertDeclaration(ctx context.Context, tx *gorm.DB, code, name string, status allergen.Status) error {
	var existing models.AllergenDeclaration
	err := tx.WithContext(ctx).
		Where("product_code = ? AND allergen_name = ?", code, name).
		First(&existing).Error
	switch {
	case err == nil:
		if existing.Status == string(status) {
			return nil
		}
		if err := tx.WithContext(ctx).Model(&existing).Update("status", string(status)).Error; err != nil {
			return fmt.Errorf("update declaration: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		declaration := models.AllergenDeclaration{ProductCode: code, AllergenName: name, Status: string(status)}
		if err := tx.WithContext(ctx).Create(&declaration).Error; err != nil {
			return fmt.Errorf("create declaration: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find declaration: %w", err)
	}
}

func readTable(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyInput
	}
	return rows[0], rows[1:], nil
}

// findColumn matches a header against the accepted aliases, ignoring case
// and surrounding whitespace. Returns -1 when no alias matches.
func findColumn(header []string, aliases ...string) int {
	for idx, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		for _, alias := range aliases {
			if normalized == alias {
				return idx
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parsePrice(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimLeft(cleaned, "£$€ ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}

// parseWeight tolerates blank or junk weights; the cost engine treats a
// zero weight as "price the pack directly".
func parseWeight(raw string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
