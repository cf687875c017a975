package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/gorm"

	"mensago/models"
)

func seedCatalogue(t *testing.T, db *gorm.DB) {
	t.Helper()
	ingredients := []models.Ingredient{
		{ProductCode: "ING1", Name: "Flour", Supplier: "Millstone", PackWeight: 5, Unit: "kg", Price: 10},
		{ProductCode: "ING2", Name: "Cheese", Supplier: "Dairy Direct", PackWeight: 2, Unit: "kg", Price: 8},
	}
	for i := range ingredients {
		if err := db.Create(&ingredients[i]).Error; err != nil {
			t.Fatalf("failed to seed ingredient: %v", err)
		}
	}
	declarations := []models.AllergenDeclaration{
		{ProductCode: "ING1", AllergenName: "Gluten", Status: "has"},
		{ProductCode: "ING2", AllergenName: "Milk", Status: "has"},
	}
	for i := range declarations {
		if err := db.Create(&declarations[i]).Error; err != nil {
			t.Fatalf("failed to seed declaration: %v", err)
		}
	}
}

func seedRecipeRecord(t *testing.T, db *gorm.DB, name string, servings int) *models.Recipe {
	t.Helper()
	recipe := &models.Recipe{Name: name, Servings: servings}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("failed to seed recipe: %v", err)
	}
	return recipe
}

func TestRecipeResourceCreateAndShow(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	body := `{"name":"Tomato Bake","code":"MAIN-01","servings":24,"instructions":"Bake until golden."}`
	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/recipes", strings.NewReader(body)))
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created recipeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if created.Name != "Tomato Bake" || created.Servings != 24 {
		t.Fatalf("unexpected created recipe: %+v", created)
	}

	req = authenticatedRequest(t, sm, httptest.NewRequest(http.MethodGet, "/app/api/recipes/1", nil))
	w = httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRecipeResourceDefaultsOmittedServings(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	body := `{"name":"Soup"}`
	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/recipes", strings.NewReader(body)))
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created recipeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	if created.Servings != 1 {
		t.Fatalf("created servings = %d, want default 1", created.Servings)
	}

	// an update without servings stores the same default, never zero
	req = authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPut, "/app/api/recipes/1", strings.NewReader(body)))
	w = httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stored models.Recipe
	if err := db.First(&stored, created.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if stored.Servings != 1 {
		t.Fatalf("stored servings = %d, want 1 after update", stored.Servings)
	}
}

func TestRecipeResourceRejectsInvalidPayload(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"servings":4}`},
		{"negative servings", `{"name":"Soup","servings":-1}`},
		{"malformed json", `{"name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/recipes", strings.NewReader(tt.body)))
			w := httptest.NewRecorder()
			RecipeResource(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestRecipeResourceRequiresAuthentication(t *testing.T) {
	_, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	req := httptest.NewRequest(http.MethodGet, "/app/api/recipes", nil)
	sm := sessionManager
	ctx, err := sm.Load(req.Context(), "")
	if err != nil {
		t.Fatalf("failed to load session context: %v", err)
	}
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session user, got %d", w.Code)
	}
}

func TestRecipeResourceReplacesIngredientListAndRecalculates(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	seedCatalogue(t, db)
	recipe := seedRecipeRecord(t, db, "Tomato Bake", 2)

	body := `[{"product_code":"ING1","quantity":3,"unit":"kg"}]`
	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPut, "/app/api/recipes/1/ingredients", strings.NewReader(body)))
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated recipeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// unit price 10/5 = 2, line cost 3*2 = 6, per serving 6/2 = 3
	if updated.TotalCost != 6 || updated.CostPerServing != 3 {
		t.Fatalf("expected recalculated costs 6/3, got %v/%v", updated.TotalCost, updated.CostPerServing)
	}
	if len(updated.Ingredients) != 1 || updated.Ingredients[0].IngredientName != "Flour" {
		t.Fatalf("expected snapshot line for Flour, got %+v", updated.Ingredients)
	}
	if status, ok := updated.Allergens["Gluten"]; !ok || string(status) != "has" {
		t.Fatalf("expected gluten summary, got %+v", updated.Allergens)
	}

	var refreshed models.Recipe
	if err := db.First(&refreshed, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if refreshed.TotalCost != 6 {
		t.Fatalf("expected persisted total cost 6, got %v", refreshed.TotalCost)
	}
}

func TestRecipeResourceRejectsUnknownIngredient(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	seedRecipeRecord(t, db, "Tomato Bake", 2)

	body := `[{"product_code":"MISSING","quantity":1}]`
	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPut, "/app/api/recipes/1/ingredients", strings.NewReader(body)))
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown product code, got %d", w.Code)
	}
}

func TestRecipeResourceRecalculateEndpoints(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	seedCatalogue(t, db)
	recipe := seedRecipeRecord(t, db, "Tomato Bake", 2)
	row := models.RecipeIngredient{
		RecipeID:            recipe.ID,
		OriginalProductCode: "ING1",
		Quantity:            3,
		IngredientName:      "Flour",
		IngredientPrice:     10,
		IngredientWeight:    5,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/recipes/1/recalculate", nil))
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"total_cost":6`) {
		t.Fatalf("expected recalculated totals in response, got %s", w.Body.String())
	}

	req = authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/recipes/recalculate", nil))
	w = httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for recalculate-all, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"recalculated":1`) {
		t.Fatalf("expected one recalculated recipe, got %s", w.Body.String())
	}
}

func TestRecipeResourceDeleteRemovesSnapshots(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	recipe := seedRecipeRecord(t, db, "Tomato Bake", 2)
	row := models.RecipeIngredient{RecipeID: recipe.ID, OriginalProductCode: "ING1", Quantity: 1}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodDelete, "/app/api/recipes/1", nil))
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	var count int64
	if err := db.Model(&models.RecipeIngredient{}).Where("recipe_id = ?", recipe.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count snapshots: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected snapshots removed with recipe, found %d", count)
	}
}

func TestRecipeResourceNotFound(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodGet, "/app/api/recipes/999", nil))
	w := httptest.NewRecorder()
	RecipeResource(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing recipe, got %d", w.Code)
	}
}
