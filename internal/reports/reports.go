// Package reports builds the exportable documents: the allergy matrix, the
// recipe sheet and the weekly menu. Builders assemble plain data; the
// renderers in xlsx.go and pdf.go turn that data into file bytes.
package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"mensago/internal/allergen"
	"mensago/internal/costing"
	applog "mensago/internal/log"
	"mensago/models"
)

var (
	ErrRecipeNotFound = errors.New("reports: recipe not found")
	ErrMenuNotFound   = errors.New("reports: menu not found")
)

// Document is a rendered export: opaque bytes plus a suggested filename.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AllergyMatrixRow is one recipe's aggregated allergen summary.
type AllergyMatrixRow struct {
	RecipeID   uint                       `json:"recipe_id"`
	RecipeName string                     `json:"recipe_name"`
	RecipeCode string                     `json:"recipe_code"`
	Statuses   map[string]allergen.Status `json:"statuses"`
}

// AllergyMatrix is the allergy report across every recipe: one column per
// allergen seen anywhere, one row per recipe.
type AllergyMatrix struct {
	Allergens []string           `json:"allergens"`
	Rows      []AllergyMatrixRow `json:"rows"`
}

// BuildAllergyMatrix aggregates each recipe's snapshot allergen lists into
// the cross-recipe matrix.
func BuildAllergyMatrix(ctx context.Context, db *gorm.DB) (*AllergyMatrix, error) {
	var recipes []models.Recipe
	if err := db.WithContext(ctx).Preload("Ingredients").Order("name asc").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}

	matrix := &AllergyMatrix{Rows: make([]AllergyMatrixRow, 0, len(recipes))}
	seen := make(map[string]struct{})

	for _, recipe := range recipes {
		summary := summarizeSnapshots(recipe.Ingredients)
		for name := range summary {
			seen[name] = struct{}{}
		}
		matrix.Rows = append(matrix.Rows, AllergyMatrixRow{
			RecipeID:   recipe.ID,
			RecipeName: recipe.Name,
			RecipeCode: recipe.Code,
			Statuses:   summary,
		})
	}

	matrix.Allergens = make([]string, 0, len(seen))
	for name := range seen {
		matrix.Allergens = append(matrix.Allergens, name)
	}
	sort.Strings(matrix.Allergens)
	return matrix, nil
}

// RecipeLine is one costed ingredient line of a recipe document.
type RecipeLine struct {
	Name     string  `json:"name"`
	Supplier string  `json:"supplier"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Cost     float64 `json:"cost"`
	Notes    string  `json:"notes"`
}

// RecipeDocument is the structured input for a recipe export.
type RecipeDocument struct {
	RecipeID       uint                       `json:"recipe_id"`
	Name           string                     `json:"name"`
	Code           string                     `json:"code"`
	Servings       int                        `json:"servings"`
	Instructions   string                     `json:"instructions"`
	Notes          string                     `json:"notes"`
	PhotoPath      string                     `json:"photo_path"`
	Lines          []RecipeLine               `json:"lines"`
	TotalCost      float64                    `json:"total_cost"`
	CostPerServing float64                    `json:"cost_per_serving"`
	Allergens      map[string]allergen.Status `json:"allergens"`
}

// BuildRecipeDocument assembles one recipe's export data. Costs are derived
// from the snapshots rather than the cached recipe columns so the document
// cannot disagree with its own ingredient lines.
func BuildRecipeDocument(ctx context.Context, db *gorm.DB, recipeID uint) (*RecipeDocument, error) {
	var recipe models.Recipe
	if err := db.WithContext(ctx).Preload("Ingredients").First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("load recipe %d: %w", recipeID, err)
	}

	document := &RecipeDocument{
		RecipeID:     recipe.ID,
		Name:         recipe.Name,
		Code:         recipe.Code,
		Servings:     recipe.Servings,
		Instructions: recipe.Instructions,
		Notes:        recipe.Notes,
		PhotoPath:    recipe.PhotoPath,
		Lines:        make([]RecipeLine, 0, len(recipe.Ingredients)),
		Allergens:    summarizeSnapshots(recipe.Ingredients),
	}

	lines := make([]costing.Line, 0, len(recipe.Ingredients))
	for _, row := range recipe.Ingredients {
		cost := costing.LineCost(row.Quantity, row.IngredientPrice, row.IngredientWeight)
		document.Lines = append(document.Lines, RecipeLine{
			Name:     row.IngredientName,
			Supplier: row.IngredientSupplier,
			Quantity: row.Quantity,
			Unit:     row.Unit,
			Cost:     cost,
			Notes:    row.Notes,
		})
		lines = append(lines, costing.Line{Quantity: row.Quantity, Price: row.IngredientPrice, Weight: row.IngredientWeight})
	}

	totals := costing.RecipeTotals(lines, recipe.Servings)
	document.TotalCost = totals.TotalCost
	document.CostPerServing = totals.CostPerServing
	return document, nil
}

// MenuDocument is the structured input for a weekly menu export.
type MenuDocument struct {
	MenuID        uint                       `json:"menu_id"`
	Name          string                     `json:"name"`
	WeekStartDate string                     `json:"week_start_date"`
	Week          costing.Week               `json:"week"`
	Rollup        costing.Rollup             `json:"rollup"`
	Allergens     map[string]allergen.Status `json:"allergens"`
}

// BuildMenuDocument resolves a menu's recipe references, rolls up the
// week's costs and merges the allergen summaries of every placed recipe.
// A slot referencing a deleted recipe resolves to nothing rather than
// failing the export.
func BuildMenuDocument(ctx context.Context, db *gorm.DB, weekStartDate string) (*MenuDocument, error) {
	var menu models.Menu
	if err := db.WithContext(ctx).Where("week_start_date = ?", weekStartDate).First(&menu).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMenuNotFound
		}
		return nil, fmt.Errorf("load menu %q: %w", weekStartDate, err)
	}
	return buildMenuDocument(ctx, db, menu)
}

func buildMenuDocument(ctx context.Context, db *gorm.DB, menu models.Menu) (*MenuDocument, error) {
	days, err := menu.Days()
	if err != nil {
		return nil, err
	}
	options, err := menu.Options()
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, 29)
	for _, day := range days {
		ids = append(ids, day.RecipeIDs()...)
	}
	ids = append(ids, options.RecipeIDs()...)

	recipes, err := loadRecipeSet(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	document := &MenuDocument{
		MenuID:        menu.ID,
		Name:          menu.Name,
		WeekStartDate: menu.WeekStartDate,
	}

	lists := make([][]allergen.Declaration, 0, len(recipes))
	appendRecipeAllergens := func(recipe *models.Recipe) {
		for _, row := range recipe.Ingredients {
			lists = append(lists, allergen.Parse(row.IngredientAllergies))
		}
	}

	week := costing.Week{Days: make([]costing.Day, 0, 5)}
	for i, day := range days {
		costDay := costing.Day{Name: models.Weekdays[i]}
		for _, slot := range daySlots(day) {
			recipe, ok := recipes[slot.recipeID]
			if !ok {
				applog.Debug(ctx, "menu slot references missing recipe", "recipeID", slot.recipeID, "slot", slot.label)
				continue
			}
			costDay.Slots = append(costDay.Slots, costing.Slot{
				Label:          slot.label,
				RecipeID:       recipe.ID,
				RecipeName:     recipe.Name,
				CostPerServing: recipe.CostPerServing,
				Servings:       recipe.Servings,
			})
			appendRecipeAllergens(recipe)
		}
		week.Days = append(week.Days, costDay)
	}

	for _, slot := range optionSlots(options) {
		recipe, ok := recipes[slot.recipeID]
		if !ok {
			applog.Debug(ctx, "menu option references missing recipe", "recipeID", slot.recipeID, "slot", slot.label)
			continue
		}
		week.Options = append(week.Options, costing.Slot{
			Label:          slot.label,
			RecipeID:       recipe.ID,
			RecipeName:     recipe.Name,
			CostPerServing: recipe.CostPerServing,
			Servings:       recipe.Servings,
		})
		appendRecipeAllergens(recipe)
	}

	document.Week = week
	document.Rollup = costing.RollupMenu(week)
	document.Allergens = allergen.Summarize(lists...)
	return document, nil
}

type slotRef struct {
	label    string
	recipeID uint
}

func daySlots(day *models.DayMenu) []slotRef {
	if day == nil {
		return nil
	}
	refs := make([]slotRef, 0, 5)
	named := []struct {
		label string
		id    *uint
	}{
		{"lunch_option_1", day.LunchOption1},
		{"lunch_option_2", day.LunchOption2},
		{"lunch_option_3", day.LunchOption3},
		{"side_dish", day.SideDish},
		{"dessert", day.Dessert},
	}
	for _, slot := range named {
		if slot.id != nil && *slot.id != 0 {
			refs = append(refs, slotRef{label: slot.label, recipeID: *slot.id})
		}
	}
	return refs
}

func optionSlots(options *models.DailyOptions) []slotRef {
	if options == nil {
		return nil
	}
	refs := make([]slotRef, 0, 4)
	named := []struct {
		label string
		id    *uint
	}{
		{"option_1", options.Option1},
		{"option_2", options.Option2},
		{"option_3", options.Option3},
		{"option_4", options.Option4},
	}
	for _, slot := range named {
		if slot.id != nil && *slot.id != 0 {
			refs = append(refs, slotRef{label: slot.label, recipeID: *slot.id})
		}
	}
	return refs
}

func loadRecipeSet(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]*models.Recipe, error) {
	recipes := make(map[uint]*models.Recipe, len(ids))
	if len(ids) == 0 {
		return recipes, nil
	}

	var loaded []models.Recipe
	if err := db.WithContext(ctx).Preload("Ingredients").Where("id IN ?", ids).Find(&loaded).Error; err != nil {
		return nil, fmt.Errorf("load menu recipes: %w", err)
	}
	for i := range loaded {
		recipes[loaded[i].ID] = &loaded[i]
	}
	return recipes, nil
}

func summarizeSnapshots(rows []models.RecipeIngredient) map[string]allergen.Status {
	lists := make([][]allergen.Declaration, 0, len(rows))
	for _, row := range rows {
		lists = append(lists, allergen.Parse(row.IngredientAllergies))
	}
	return allergen.Summarize(lists...)
}

// slugify builds a filesystem-friendly fragment for suggested filenames.
func slugify(value string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
