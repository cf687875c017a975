package reports

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"mensago/internal/allergen"
	"mensago/internal/costing"
)

func TestRenderAllergyMatrixXLSX(t *testing.T) {
	t.Parallel()

	matrix := &AllergyMatrix{
		Allergens: []string{"Milk", "Nuts"},
		Rows: []AllergyMatrixRow{
			{
				RecipeID:   1,
				RecipeName: "Granola",
				RecipeCode: "R-001",
				Statuses:   map[string]allergen.Status{"Nuts": allergen.StatusHas, "Milk": allergen.StatusMay},
			},
			{
				RecipeID:   2,
				RecipeName: "Soup",
				Statuses:   map[string]allergen.Status{},
			},
		},
	}

	document, err := XLSXRenderer{}.RenderAllergyMatrix(matrix)
	if err != nil {
		t.Fatalf("RenderAllergyMatrix returned error: %v", err)
	}
	if document.Filename != "allergy-matrix.xlsx" {
		t.Fatalf("filename = %q", document.Filename)
	}

	file, err := excelize.OpenReader(bytes.NewReader(document.Data))
	if err != nil {
		t.Fatalf("failed to reopen spreadsheet: %v", err)
	}
	defer file.Close()

	assertCell := func(cell, want string) {
		t.Helper()
		got, err := file.GetCellValue("Allergy Matrix", cell)
		if err != nil {
			t.Fatalf("failed to read cell %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("cell %s = %q, want %q", cell, got, want)
		}
	}

	assertCell("A1", "Recipe")
	assertCell("C1", "Milk")
	assertCell("D1", "Nuts")
	assertCell("A2", "Granola")
	assertCell("B2", "R-001")
	assertCell("C2", "may")
	assertCell("D2", "has")
	assertCell("D3", "")
}

func TestRenderRecipeCostsXLSX(t *testing.T) {
	t.Parallel()

	document := &RecipeDocument{
		Name:           "Granola",
		Servings:       2,
		TotalCost:      6,
		CostPerServing: 3,
		Lines: []RecipeLine{
			{Name: "Oats", Supplier: "Acme Foods", Quantity: 3, Unit: "kg", Cost: 6},
		},
	}

	rendered, err := XLSXRenderer{}.RenderRecipeCosts(document)
	if err != nil {
		t.Fatalf("RenderRecipeCosts returned error: %v", err)
	}
	if rendered.Filename != "granola-costs.xlsx" {
		t.Fatalf("filename = %q", rendered.Filename)
	}

	file, err := excelize.OpenReader(bytes.NewReader(rendered.Data))
	if err != nil {
		t.Fatalf("failed to reopen spreadsheet: %v", err)
	}
	defer file.Close()

	got, err := file.GetCellValue("Recipe Costs", "A2")
	if err != nil {
		t.Fatalf("failed to read cell: %v", err)
	}
	if got != "Oats" {
		t.Fatalf("cell A2 = %q, want Oats", got)
	}
}

func TestRenderRecipePDF(t *testing.T) {
	t.Parallel()

	document := &RecipeDocument{
		Name:           "Nut Roast",
		Code:           "R-014",
		Servings:       4,
		Instructions:   "Roast the nuts.",
		TotalCost:      8,
		CostPerServing: 2,
		Lines: []RecipeLine{
			{Name: "Mixed Nuts", Quantity: 2, Unit: "kg", Cost: 8},
		},
		Allergens: map[string]allergen.Status{"Nuts": allergen.StatusHas},
	}

	rendered, err := PDFRenderer{}.RenderRecipe(document)
	if err != nil {
		t.Fatalf("RenderRecipe returned error: %v", err)
	}
	if rendered.Filename != "nut-roast.pdf" {
		t.Fatalf("filename = %q", rendered.Filename)
	}
	if rendered.ContentType != "application/pdf" {
		t.Fatalf("content type = %q", rendered.ContentType)
	}

	text := extractPDFText(t, rendered.Data)
	for _, want := range []string{"Nut Roast", "Mixed Nuts", "Nuts (has)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("pdf text missing %q:\n%s", want, text)
		}
	}
}

func TestRenderMenuPDF(t *testing.T) {
	t.Parallel()

	week := costing.Week{
		Days: []costing.Day{
			{Name: "monday", Slots: []costing.Slot{
				{Label: "lunch_option_1", RecipeName: "Granola", CostPerServing: 2, Servings: 4},
			}},
			{Name: "tuesday"},
		},
	}

	document := &MenuDocument{
		Name:          "Week 1",
		WeekStartDate: "2026-09-07",
		Week:          week,
		Rollup:        costing.RollupMenu(week),
		Allergens:     map[string]allergen.Status{"Milk": allergen.StatusMay},
	}

	rendered, err := PDFRenderer{}.RenderMenu(document)
	if err != nil {
		t.Fatalf("RenderMenu returned error: %v", err)
	}
	if rendered.Filename != "menu-2026-09-07.pdf" {
		t.Fatalf("filename = %q", rendered.Filename)
	}

	text := extractPDFText(t, rendered.Data)
	for _, want := range []string{"Week 1", "Granola", "Milk (may)", "No menu planned."} {
		if !strings.Contains(text, want) {
			t.Fatalf("pdf text missing %q:\n%s", want, text)
		}
	}
}

// extractPDFText pulls the plain text back out of a rendered document so the
// assertions do not depend on PDF byte layout.
func extractPDFText(t *testing.T, data []byte) string {
	t.Helper()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to open rendered pdf: %v", err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		t.Fatalf("failed to extract pdf text: %v", err)
	}
	var buffer bytes.Buffer
	if _, err := buffer.ReadFrom(textReader); err != nil {
		t.Fatalf("failed to read pdf text: %v", err)
	}
	return buffer.String()
}
