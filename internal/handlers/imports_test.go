package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mensago/internal/importer"
	"mensago/models"
)

func multipartCSV(t *testing.T, contents string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(contents)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestImportResourcePricingUpload(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	csv := "code,product name,supplier,weight,unit,price\n" +
		"ING1,Flour,Millstone,5,kg,10.00\n" +
		"ING2,Cheese,Dairy Direct,2,kg,8.00\n"
	body, contentType := multipartCSV(t, csv)

	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/imports/pricing", body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ImportResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result importer.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 0 {
		t.Fatalf("expected 2 imported, got %+v", result)
	}
	if result.BatchID == "" {
		t.Fatal("expected a batch id")
	}

	var count int64
	if err := db.Model(&models.Ingredient{}).Count(&count).Error; err != nil || count != 2 {
		t.Fatalf("expected 2 ingredients persisted, count=%d err=%v", count, err)
	}
}

func TestImportResourceAllergensRawBody(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	seedCatalogue(t, db)

	csv := "code,Gluten,Nuts\nING1,y,may contain\n"
	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/imports/allergens", strings.NewReader(csv)))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	ImportResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var declarations []models.AllergenDeclaration
	if err := db.Where("product_code = ?", "ING1").Order("allergen_name asc").Find(&declarations).Error; err != nil {
		t.Fatalf("failed to load declarations: %v", err)
	}
	if len(declarations) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(declarations))
	}
	if declarations[1].AllergenName != "Nuts" || declarations[1].Status != "may" {
		t.Fatalf("expected nuts may, got %+v", declarations[1])
	}
}

func TestImportResourcePricingResyncsRecipes(t *testing.T) {
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

	csv := "code,product name,price,weight\nING1,Flour,20.00,5\n"
	req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, "/app/api/imports/pricing", strings.NewReader(csv)))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	ImportResource(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result importer.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if result.Resync.SnapshotsUpdated != 1 || result.Resync.RecipesRecalculated != 1 {
		t.Fatalf("expected one snapshot and one recipe resynced, got %+v", result.Resync)
	}

	var refreshed models.Recipe
	if err := db.First(&refreshed, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	// new unit price 20/5 = 4, line cost 12, per serving 6
	if refreshed.TotalCost != 12 || refreshed.CostPerServing != 6 {
		t.Fatalf("expected refreshed costs 12/6, got %v/%v", refreshed.TotalCost, refreshed.CostPerServing)
	}
}

func TestImportResourceRejectsBadUploads(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	_, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown kind", "/app/api/imports/other", "code,price\n", http.StatusNotFound},
		{"empty body", "/app/api/imports/pricing", "", http.StatusBadRequest},
		{"missing columns", "/app/api/imports/pricing", "supplier\nAcme\n", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authenticatedRequest(t, sm, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			req.Header.Set("Content-Type", "text/csv")
			w := httptest.NewRecorder()
			ImportResource(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}
