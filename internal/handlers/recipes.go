package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"mensago/internal/allergen"
	applog "mensago/internal/log"
	"mensago/internal/snapshot"
	"mensago/models"
)

type recipeRequest struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	Servings     int    `json:"servings"`
	Instructions string `json:"instructions"`
	Notes        string `json:"notes"`
}

type recipeIngredientResponse struct {
	ID                  uint    `json:"id"`
	OriginalProductCode string  `json:"original_product_code"`
	Quantity            float64 `json:"quantity"`
	Unit                string  `json:"unit"`
	Notes               string  `json:"notes"`
	IngredientName      string  `json:"ingredient_name"`
	IngredientSupplier  string  `json:"ingredient_supplier"`
	IngredientPrice     float64 `json:"ingredient_price"`
	IngredientWeight    float64 `json:"ingredient_weight"`
	IngredientUnit      string  `json:"ingredient_unit"`
	IngredientAllergies string  `json:"ingredient_allergies"`
}

type recipeResponse struct {
	ID             uint                       `json:"id"`
	Name           string                     `json:"name"`
	Code           string                     `json:"code"`
	Servings       int                        `json:"servings"`
	Instructions   string                     `json:"instructions"`
	Notes          string                     `json:"notes"`
	PhotoPath      string                     `json:"photo_path"`
	TotalCost      float64                    `json:"total_cost"`
	CostPerServing float64                    `json:"cost_per_serving"`
	Allergens      map[string]allergen.Status `json:"allergens"`
	Ingredients    []recipeIngredientResponse `json:"ingredients"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// RecipeResource handles CRUD interactions for recipes, their snapshot
// ingredient lists and the persisted cost recalculations.
func RecipeResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "recipe request without database")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "recipe request without authenticated user")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/app/api/recipes")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listRecipes(w, r)
		case http.MethodPost:
			createRecipe(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	segments := strings.Split(path, "/")

	if segments[0] == "recalculate" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		recalculateAllRecipes(w, r)
		return
	}

	idValue, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil {
		applog.Debug(r.Context(), "invalid recipe identifier", "identifier", segments[0], "error", err)
		http.NotFound(w, r)
		return
	}
	recipeID := uint(idValue)

	if len(segments) > 1 {
		switch segments[1] {
		case "ingredients":
			if r.Method != http.MethodPut {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			replaceRecipeIngredients(w, r, recipeID)
		case "recalculate":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			recalculateRecipe(w, r, recipeID)
		case "photo":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			uploadRecipePhoto(w, r, recipeID)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		showRecipe(w, r, recipeID)
	case http.MethodPut:
		updateRecipe(w, r, recipeID)
	case http.MethodDelete:
		deleteRecipe(w, r, recipeID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listRecipes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var recipes []models.Recipe
	query := database.WithContext(ctx).Preload("Ingredients").Order("name asc")
	if search := strings.TrimSpace(r.URL.Query().Get("q")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("lower(name) LIKE ? OR lower(code) LIKE ?", pattern, pattern)
	}
	if err := query.Find(&recipes).Error; err != nil {
		applog.Error(ctx, "failed to list recipes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
		return
	}

	responses := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		responses = append(responses, projectRecipe(recipe))
	}
	writeJSON(w, http.StatusOK, responses)
}

func showRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	recipe, ok := loadRecipe(w, r, recipeID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectRecipe(*recipe))
}

func createRecipe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid recipe create payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := validateRecipePayload(payload); err != nil {
		applog.Debug(ctx, "recipe validation failed", "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipe := models.Recipe{
		Name:         strings.TrimSpace(payload.Name),
		Code:         strings.TrimSpace(payload.Code),
		Servings:     normalizedServings(payload.Servings),
		Instructions: strings.TrimSpace(payload.Instructions),
		Notes:        strings.TrimSpace(payload.Notes),
	}

	if err := database.WithContext(ctx).Create(&recipe).Error; err != nil {
		applog.Error(ctx, "failed to create recipe", "error", err)
		writeJSONError(w, http.StatusBadRequest, "unable to create recipe")
		return
	}

	writeJSON(w, http.StatusCreated, projectRecipe(recipe))
}

func updateRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	recipe, ok := loadRecipe(w, r, recipeID)
	if !ok {
		return
	}

	var payload recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid recipe update payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := validateRecipePayload(payload); err != nil {
		applog.Debug(ctx, "recipe update validation failed", "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	servingsChanged := normalizedServings(payload.Servings) != recipe.Servings

	updates := map[string]any{
		"name":         strings.TrimSpace(payload.Name),
		"code":         strings.TrimSpace(payload.Code),
		"servings":     normalizedServings(payload.Servings),
		"instructions": strings.TrimSpace(payload.Instructions),
		"notes":        strings.TrimSpace(payload.Notes),
	}

	if err := database.WithContext(ctx).Model(recipe).Updates(updates).Error; err != nil {
		applog.Error(ctx, "failed to update recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusBadRequest, "unable to update recipe")
		return
	}

	// a servings change shifts cost per serving, so refresh the cached totals
	if servingsChanged {
		if _, err := snapshot.Recalculate(ctx, database, recipeID); err != nil {
			applog.Error(ctx, "failed to recalculate after servings change", "error", err, "id", recipeID)
			writeJSONError(w, http.StatusInternalServerError, "unable to recalculate recipe")
			return
		}
	}

	reloaded, ok := loadRecipe(w, r, recipeID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectRecipe(*reloaded))
}

func deleteRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	recipe, ok := loadRecipe(w, r, recipeID)
	if !ok {
		return
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func replaceRecipeIngredients(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	var lines []snapshot.Line
	if err := json.NewDecoder(r.Body).Decode(&lines); err != nil {
		applog.Debug(ctx, "invalid recipe ingredients payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if _, err := snapshot.ReplaceLines(ctx, database, recipeID, lines); err != nil {
		switch {
		case errors.Is(err, snapshot.ErrRecipeNotFound):
			http.NotFound(w, r)
		case errors.Is(err, snapshot.ErrIngredientNotFound),
			errors.Is(err, snapshot.ErrMissingProductCode),
			errors.Is(err, snapshot.ErrInvalidQuantity):
			applog.Debug(ctx, "recipe ingredient replacement rejected", "error", err, "id", recipeID)
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			applog.Error(ctx, "failed to replace recipe ingredients", "error", err, "id", recipeID)
			writeJSONError(w, http.StatusInternalServerError, "unable to update recipe ingredients")
		}
		return
	}

	recipe, ok := loadRecipe(w, r, recipeID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectRecipe(*recipe))
}

func recalculateRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()
	totals, err := snapshot.Recalculate(ctx, database, recipeID)
	if err != nil {
		if errors.Is(err, snapshot.ErrRecipeNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to recalculate recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to recalculate recipe")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func recalculateAllRecipes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	processed, err := snapshot.RecalculateAll(ctx, database)
	if err != nil {
		applog.Error(ctx, "failed to recalculate recipes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to recalculate recipes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recalculated": processed})
}

func loadRecipe(w http.ResponseWriter, r *http.Request, recipeID uint) (*models.Recipe, bool) {
	ctx := r.Context()
	var recipe models.Recipe
	if err := database.WithContext(ctx).Preload("Ingredients").First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		applog.Error(ctx, "failed to load recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return nil, false
	}
	return &recipe, true
}

func projectRecipe(recipe models.Recipe) recipeResponse {
	ingredients := make([]recipeIngredientResponse, 0, len(recipe.Ingredients))
	lists := make([][]allergen.Declaration, 0, len(recipe.Ingredients))
	for _, row := range recipe.Ingredients {
		ingredients = append(ingredients, recipeIngredientResponse{
			ID:                  row.ID,
			OriginalProductCode: row.OriginalProductCode,
			Quantity:            row.Quantity,
			Unit:                row.Unit,
			Notes:               row.Notes,
			IngredientName:      row.IngredientName,
			IngredientSupplier:  row.IngredientSupplier,
			IngredientPrice:     row.IngredientPrice,
			IngredientWeight:    row.IngredientWeight,
			IngredientUnit:      row.IngredientUnit,
			IngredientAllergies: row.IngredientAllergies,
		})
		lists = append(lists, allergen.Parse(row.IngredientAllergies))
	}

	return recipeResponse{
		ID:             recipe.ID,
		Name:           recipe.Name,
		Code:           recipe.Code,
		Servings:       recipe.Servings,
		Instructions:   recipe.Instructions,
		Notes:          recipe.Notes,
		PhotoPath:      recipe.PhotoPath,
		TotalCost:      recipe.TotalCost,
		CostPerServing: recipe.CostPerServing,
		Allergens:      allergen.Summarize(lists...),
		Ingredients:    ingredients,
		CreatedAt:      recipe.CreatedAt,
		UpdatedAt:      recipe.UpdatedAt,
	}
}

func validateRecipePayload(payload recipeRequest) error {
	if strings.TrimSpace(payload.Name) == "" {
		return errors.New("name is required")
	}
	if payload.Servings < 0 {
		return errors.New("servings must not be negative")
	}
	return nil
}

// normalizedServings clamps an omitted or zero servings to the model
// default so create and update store the same value.
func normalizedServings(servings int) int {
	if servings <= 0 {
		return 1
	}
	return servings
}
