package reports

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"mensago/internal/costing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XLSXRenderer renders report data as spreadsheets.
type XLSXRenderer struct{}

// RenderAllergyMatrix writes the matrix with one recipe per row and one
// allergen per column. Cells show "has" or "may"; an allergen the recipe
// carries no evidence for stays blank.
func (XLSXRenderer) RenderAllergyMatrix(matrix *AllergyMatrix) (*Document, error) {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Allergy Matrix"
	file.SetSheetName("Sheet1", sheet)

	if err := setCell(file, sheet, 1, 1, "Recipe"); err != nil {
		return nil, err
	}
	if err := setCell(file, sheet, 2, 1, "Code"); err != nil {
		return nil, err
	}
	for idx, name := range matrix.Allergens {
		if err := setCell(file, sheet, 3+idx, 1, name); err != nil {
			return nil, err
		}
	}

	for rowIdx, row := range matrix.Rows {
		excelRow := rowIdx + 2
		if err := setCell(file, sheet, 1, excelRow, row.RecipeName); err != nil {
			return nil, err
		}
		if err := setCell(file, sheet, 2, excelRow, row.RecipeCode); err != nil {
			return nil, err
		}
		for colIdx, name := range matrix.Allergens {
			status, ok := row.Statuses[name]
			if !ok {
				continue
			}
			if err := setCell(file, sheet, 3+colIdx, excelRow, string(status)); err != nil {
				return nil, err
			}
		}
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write spreadsheet: %w", err)
	}

	return &Document{
		Filename:    "allergy-matrix.xlsx",
		ContentType: xlsxContentType,
		Data:        buffer.Bytes(),
	}, nil
}

// RenderRecipeCosts writes a per-recipe cost sheet: one row per ingredient
// line plus the recipe totals.
func (XLSXRenderer) RenderRecipeCosts(document *RecipeDocument) (*Document, error) {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Recipe Costs"
	file.SetSheetName("Sheet1", sheet)

	headers := []string{"Ingredient", "Supplier", "Quantity", "Unit", "Cost"}
	for idx, header := range headers {
		if err := setCell(file, sheet, 1+idx, 1, header); err != nil {
			return nil, err
		}
	}

	for rowIdx, line := range document.Lines {
		excelRow := rowIdx + 2
		values := []any{line.Name, line.Supplier, line.Quantity, line.Unit, round2(line.Cost)}
		for colIdx, value := range values {
			if err := setCell(file, sheet, 1+colIdx, excelRow, value); err != nil {
				return nil, err
			}
		}
	}

	totalsRow := len(document.Lines) + 3
	if err := setCell(file, sheet, 1, totalsRow, "Total cost"); err != nil {
		return nil, err
	}
	if err := setCell(file, sheet, 5, totalsRow, round2(document.TotalCost)); err != nil {
		return nil, err
	}
	if err := setCell(file, sheet, 1, totalsRow+1, fmt.Sprintf("Cost per serving (%d servings)", document.Servings)); err != nil {
		return nil, err
	}
	if err := setCell(file, sheet, 5, totalsRow+1, round2(document.CostPerServing)); err != nil {
		return nil, err
	}

	buffer, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write spreadsheet: %w", err)
	}

	filename := "recipe-costs.xlsx"
	if slug := slugify(document.Name); slug != "" {
		filename = slug + "-costs.xlsx"
	}
	return &Document{Filename: filename, ContentType: xlsxContentType, Data: buffer.Bytes()}, nil
}

func setCell(file *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell coordinates (%d, %d): %w", col, row, err)
	}
	if err := file.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

// round2 exists so every spreadsheet cell goes through the same
// presentation-boundary rounding.
func round2(value float64) float64 {
	return costing.Round2(value)
}
