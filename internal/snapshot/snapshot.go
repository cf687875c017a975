// Package snapshot owns the recipe-ingredient snapshot lifecycle: building
// snapshots when ingredients are attached, refreshing them after catalogue
// imports, and persisting the cached recipe cost figures.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"mensago/internal/allergen"
	"mensago/internal/costing"
	applog "mensago/internal/log"
	"mensago/models"
)

var (
	ErrMissingProductCode = errors.New("snapshot: product code is required")
	ErrInvalidQuantity    = errors.New("snapshot: quantity must be greater than zero")
	ErrIngredientNotFound = errors.New("snapshot: ingredient not found")
	ErrRecipeNotFound     = errors.New("snapshot: recipe not found")
)

// Line describes one requested recipe-ingredient attachment.
type Line struct {
	ProductCode string  `json:"product_code"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Notes       string  `json:"notes"`
}

// Attach copies the ingredient's current catalogue state onto a new
// recipe-ingredient row. It validates the request but deliberately does not
// recalculate the recipe: callers batch attachments and recalculate once.
func Attach(ctx context.Context, db *gorm.DB, recipeID uint, line Line) (*models.RecipeIngredient, error) {
	code := strings.TrimSpace(line.ProductCode)
	if code == "" {
		return nil, ErrMissingProductCode
	}
	if !(line.Quantity > 0) {
		return nil, ErrInvalidQuantity
	}

	var recipe models.Recipe
	if err := db.WithContext(ctx).Select("id").First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("load recipe %d: %w", recipeID, err)
	}

	ingredient, declarations, err := loadIngredient(ctx, db, code)
	if err != nil {
		return nil, err
	}

	row := models.RecipeIngredient{
		RecipeID:            recipeID,
		OriginalProductCode: ingredient.ProductCode,
		Quantity:            line.Quantity,
		Unit:                strings.TrimSpace(line.Unit),
		Notes:               strings.TrimSpace(line.Notes),
	}
	applySnapshot(&row, ingredient, declarations)

	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create recipe ingredient: %w", err)
	}
	return &row, nil
}

// ReplaceLines swaps a recipe's entire ingredient list for the given lines
// and recalculates the cached totals once at the end. The replacement runs
// inside one transaction so a rejected line leaves the previous list intact.
func ReplaceLines(ctx context.Context, db *gorm.DB, recipeID uint, lines []Line) ([]models.RecipeIngredient, error) {
	var created []models.RecipeIngredient

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("clear recipe ingredients: %w", err)
		}
		for _, line := range lines {
			row, err := Attach(ctx, tx, recipeID, line)
			if err != nil {
				return err
			}
			created = append(created, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := Recalculate(ctx, db, recipeID); err != nil {
		return nil, err
	}
	return created, nil
}

// Recalculate recomputes a recipe's total and per-serving cost from its
// snapshots and persists the result onto the cached columns.
func Recalculate(ctx context.Context, db *gorm.DB, recipeID uint) (costing.Totals, error) {
	var recipe models.Recipe
	if err := db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return costing.Totals{}, ErrRecipeNotFound
		}
		return costing.Totals{}, fmt.Errorf("load recipe %d: %w", recipeID, err)
	}

	var rows []models.RecipeIngredient
	if err := db.WithContext(ctx).Where("recipe_id = ?", recipeID).Find(&rows).Error; err != nil {
		return costing.Totals{}, fmt.Errorf("load recipe ingredients for %d: %w", recipeID, err)
	}

	lines := make([]costing.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, costing.Line{
			Quantity: row.Quantity,
			Price:    row.IngredientPrice,
			Weight:   row.IngredientWeight,
		})
	}

	totals := costing.RecipeTotals(lines, recipe.Servings)
	updates := map[string]any{
		"total_cost":       totals.TotalCost,
		"cost_per_serving": totals.CostPerServing,
	}
	if err := db.WithContext(ctx).Model(&recipe).Updates(updates).Error; err != nil {
		return costing.Totals{}, fmt.Errorf("persist totals for recipe %d: %w", recipeID, err)
	}
	return totals, nil
}

// RecalculateAll reruns the recalculation for every recipe and returns the
// number processed. Individual failures are logged and skipped.
func RecalculateAll(ctx context.Context, db *gorm.DB) (int, error) {
	var ids []uint
	if err := db.WithContext(ctx).Model(&models.Recipe{}).Order("id asc").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list recipes: %w", err)
	}

	processed := 0
	for _, id := range ids {
		if _, err := Recalculate(ctx, db, id); err != nil {
			applog.Error(ctx, "recipe recalculation failed", "error", err, "recipeID", id)
			continue
		}
		processed++
	}
	return processed, nil
}

// ResyncFailure records one unit of resync work that could not finish. A
// zero RecipeID means the failure was scoped to a product code rather than
// a single recipe.
type ResyncFailure struct {
	RecipeID uint   `json:"recipe_id"`
	Reason   string `json:"reason"`
}

// ResyncResult summarises a resync pass.
type ResyncResult struct {
	SnapshotsUpdated    int             `json:"snapshots_updated"`
	RecipesRecalculated int             `json:"recipes_recalculated"`
	Failures            []ResyncFailure `json:"failures,omitempty"`
}

// Resync refreshes every snapshot referencing the given product codes with
// the ingredient's current price and allergen data, then recalculates each
// touched recipe exactly once. A failure on one code or recipe is recorded
// and does not abort the rest of the batch; resync is idempotent and safe
// to re-run.
func Resync(ctx context.Context, db *gorm.DB, codes []string) (ResyncResult, error) {
	result := ResyncResult{}
	touched := make(map[uint]struct{})

	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}

		ingredient, declarations, err := loadIngredient(ctx, db, code)
		if err != nil {
			if errors.Is(err, ErrIngredientNotFound) {
				applog.Debug(ctx, "resync skipping unknown product code", "code", code)
				continue
			}
			applog.Error(ctx, "resync ingredient load failed", "error", err, "code", code)
			result.Failures = append(result.Failures, ResyncFailure{Reason: fmt.Sprintf("load ingredient %q: %v", code, err)})
			continue
		}

		var rows []models.RecipeIngredient
		if err := db.WithContext(ctx).Where("original_product_code = ?", code).Find(&rows).Error; err != nil {
			applog.Error(ctx, "resync snapshot lookup failed", "error", err, "code", code)
			result.Failures = append(result.Failures, ResyncFailure{Reason: fmt.Sprintf("find snapshots for %q: %v", code, err)})
			continue
		}

		updates := snapshotUpdates(ingredient, declarations)
		for _, row := range rows {
			if err := db.WithContext(ctx).Model(&models.RecipeIngredient{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
				applog.Error(ctx, "snapshot refresh failed", "error", err, "code", code, "recipeIngredientID", row.ID)
				result.Failures = append(result.Failures, ResyncFailure{RecipeID: row.RecipeID, Reason: err.Error()})
				continue
			}
			result.SnapshotsUpdated++
			touched[row.RecipeID] = struct{}{}
		}
	}

	for recipeID := range touched {
		if _, err := Recalculate(ctx, db, recipeID); err != nil {
			applog.Error(ctx, "resync recalculation failed", "error", err, "recipeID", recipeID)
			result.Failures = append(result.Failures, ResyncFailure{RecipeID: recipeID, Reason: err.Error()})
			continue
		}
		result.RecipesRecalculated++
	}
	return result, nil
}

func loadIngredient(ctx context.Context, db *gorm.DB, code string) (models.Ingredient, []models.AllergenDeclaration, error) {
	var ingredient models.Ingredient
	if err := db.WithContext(ctx).Where("product_code = ?", code).First(&ingredient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Ingredient{}, nil, ErrIngredientNotFound
		}
		return models.Ingredient{}, nil, fmt.Errorf("load ingredient %q: %w", code, err)
	}

	var declarations []models.AllergenDeclaration
	if err := db.WithContext(ctx).
		Where("product_code = ?", code).
		Order("allergen_name asc").
		Find(&declarations).Error; err != nil {
		return models.Ingredient{}, nil, fmt.Errorf("load allergen declarations for %q: %w", code, err)
	}
	return ingredient, declarations, nil
}

func serializeDeclarations(declarations []models.AllergenDeclaration) string {
	list := make([]allergen.Declaration, 0, len(declarations))
	for _, declaration := range declarations {
		status, ok := allergen.ParseStatus(declaration.Status)
		if !ok {
			continue
		}
		list = append(list, allergen.Declaration{Name: declaration.AllergenName, Status: status})
	}
	return allergen.Serialize(list)
}

func applySnapshot(row *models.RecipeIngredient, ingredient models.Ingredient, declarations []models.AllergenDeclaration) {
	row.IngredientName = ingredient.Name
	row.IngredientSupplier = ingredient.Supplier
	row.IngredientPrice = ingredient.Price
	row.IngredientWeight = ingredient.PackWeight
	row.IngredientUnit = ingredient.Unit
	row.IngredientAllergies = serializeDeclarations(declarations)
}

func snapshotUpdates(ingredient models.Ingredient, declarations []models.AllergenDeclaration) map[string]any {
	return map[string]any{
		"ingredient_name":      ingredient.Name,
		"ingredient_supplier":  ingredient.Supplier,
		"ingredient_price":     ingredient.Price,
		"ingredient_weight":    ingredient.PackWeight,
		"ingredient_unit":      ingredient.Unit,
		"ingredient_allergies": serializeDeclarations(declarations),
	}
}
