package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"mensago/internal/allergen"
	applog "mensago/internal/log"
	"mensago/models"
)

type allergenDeclarationResponse struct {
	AllergenName string `json:"allergen_name"`
	Status       string `json:"status"`
}

type ingredientResponse struct {
	ID          uint                          `json:"id"`
	ProductCode string                        `json:"product_code"`
	Name        string                        `json:"name"`
	Supplier    string                        `json:"supplier"`
	PackWeight  float64                       `json:"pack_weight"`
	Unit        string                        `json:"unit"`
	Price       float64                       `json:"price"`
	Allergens   []allergenDeclarationResponse `json:"allergens"`
	CreatedAt   time.Time                     `json:"created_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
}

// IngredientResource handles read-only interactions with the supplier
// catalogue. Records are created and refreshed through bulk import only.
func IngredientResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "ingredient request without database")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "ingredient request without authenticated user")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/app/api/ingredients")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method == http.MethodGet {
			listIngredients(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	showIngredient(w, r, path)
}

func listIngredients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var ingredients []models.Ingredient

	query := database.WithContext(ctx).Order("name asc")
	if search := strings.TrimSpace(r.URL.Query().Get("q")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("lower(name) LIKE ? OR lower(product_code) LIKE ?", pattern, pattern)
	}
	if supplier := strings.TrimSpace(r.URL.Query().Get("supplier")); supplier != "" {
		query = query.Where("lower(supplier) = ?", strings.ToLower(supplier))
	}

	if err := query.Find(&ingredients).Error; err != nil {
		applog.Error(ctx, "failed to list ingredients", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
		return
	}

	declarations, err := declarationsByCode(r)
	if err != nil {
		applog.Error(ctx, "failed to load allergen declarations", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
		return
	}

	responses := make([]ingredientResponse, 0, len(ingredients))
	for _, ingredient := range ingredients {
		responses = append(responses, projectIngredient(ingredient, declarations[ingredient.ProductCode]))
	}
	writeJSON(w, http.StatusOK, responses)
}

func showIngredient(w http.ResponseWriter, r *http.Request, code string) {
	ctx := r.Context()
	var ingredient models.Ingredient
	if err := database.WithContext(ctx).Where("product_code = ?", code).First(&ingredient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Debug(ctx, "ingredient not found", "code", code)
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load ingredient", "error", err, "code", code)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return
	}

	var declarations []models.AllergenDeclaration
	if err := database.WithContext(ctx).
		Where("product_code = ?", ingredient.ProductCode).
		Order("allergen_name asc").
		Find(&declarations).Error; err != nil {
		applog.Error(ctx, "failed to load allergen declarations", "error", err, "code", code)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return
	}

	writeJSON(w, http.StatusOK, projectIngredient(ingredient, declarations))
}

func declarationsByCode(r *http.Request) (map[string][]models.AllergenDeclaration, error) {
	var declarations []models.AllergenDeclaration
	if err := database.WithContext(r.Context()).
		Order("product_code asc, allergen_name asc").
		Find(&declarations).Error; err != nil {
		return nil, err
	}
	grouped := make(map[string][]models.AllergenDeclaration)
	for _, declaration := range declarations {
		grouped[declaration.ProductCode] = append(grouped[declaration.ProductCode], declaration)
	}
	return grouped, nil
}

func projectIngredient(ingredient models.Ingredient, declarations []models.AllergenDeclaration) ingredientResponse {
	allergens := make([]allergenDeclarationResponse, 0, len(declarations))
	for _, declaration := range declarations {
		if _, ok := allergen.ParseStatus(declaration.Status); !ok {
			continue
		}
		allergens = append(allergens, allergenDeclarationResponse{
			AllergenName: declaration.AllergenName,
			Status:       declaration.Status,
		})
	}

	return ingredientResponse{
		ID:          ingredient.ID,
		ProductCode: ingredient.ProductCode,
		Name:        ingredient.Name,
		Supplier:    ingredient.Supplier,
		PackWeight:  ingredient.PackWeight,
		Unit:        ingredient.Unit,
		Price:       ingredient.Price,
		Allergens:   allergens,
		CreatedAt:   ingredient.CreatedAt,
		UpdatedAt:   ingredient.UpdatedAt,
	}
}
