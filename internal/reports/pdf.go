package reports

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"mensago/internal/allergen"
	"mensago/internal/costing"
)

const pdfContentType = "application/pdf"

// PDFRenderer renders report data as printable PDF documents.
type PDFRenderer struct{}

// RenderRecipe produces the kitchen-facing recipe sheet: ingredient lines
// with costs, the aggregated allergen summary and the free-text sections.
func (PDFRenderer) RenderRecipe(document *RecipeDocument) (*Document, error) {
	pdf := newPage()

	title := document.Name
	if document.Code != "" {
		title = fmt.Sprintf("%s (%s)", document.Name, document.Code)
	}
	writeTitle(pdf, title)
	writeLine(pdf, fmt.Sprintf("Servings: %d", document.Servings))
	writeLine(pdf, fmt.Sprintf("Total cost: %.2f    Cost per serving: %.2f",
		costing.Round2(document.TotalCost), costing.Round2(document.CostPerServing)))
	pdf.Ln(4)

	writeHeading(pdf, "Ingredients")
	for _, line := range document.Lines {
		entry := fmt.Sprintf("%g %s %s", line.Quantity, line.Unit, line.Name)
		if line.Supplier != "" {
			entry += " - " + line.Supplier
		}
		entry += fmt.Sprintf(" (%.2f)", costing.Round2(line.Cost))
		writeLine(pdf, entry)
		if line.Notes != "" {
			writeLine(pdf, "    "+line.Notes)
		}
	}
	pdf.Ln(4)

	writeHeading(pdf, "Allergens")
	writeLine(pdf, allergenSummaryLine(document.Allergens))
	pdf.Ln(4)

	if strings.TrimSpace(document.Instructions) != "" {
		writeHeading(pdf, "Instructions")
		writeParagraph(pdf, document.Instructions)
		pdf.Ln(4)
	}
	if strings.TrimSpace(document.Notes) != "" {
		writeHeading(pdf, "Notes")
		writeParagraph(pdf, document.Notes)
	}

	data, err := output(pdf)
	if err != nil {
		return nil, err
	}

	filename := "recipe.pdf"
	if slug := slugify(document.Name); slug != "" {
		filename = slug + ".pdf"
	}
	return &Document{Filename: filename, ContentType: pdfContentType, Data: data}, nil
}

// RenderMenu produces the weekly menu sheet: the plan per weekday, the
// daily options, the cost rollup and the week's allergen summary.
func (PDFRenderer) RenderMenu(document *MenuDocument) (*Document, error) {
	pdf := newPage()

	writeTitle(pdf, fmt.Sprintf("%s - week of %s", document.Name, document.WeekStartDate))
	pdf.Ln(2)

	for i, day := range document.Week.Days {
		writeHeading(pdf, titleCase(day.Name))
		if len(day.Slots) == 0 {
			writeLine(pdf, "No menu planned.")
		}
		for _, slot := range day.Slots {
			writeLine(pdf, fmt.Sprintf("%s: %s (%.2f per serving)",
				slotTitle(slot.Label), slot.RecipeName, costing.Round2(slot.CostPerServing)))
		}
		if i < len(document.Rollup.Days) {
			rollup := document.Rollup.Days[i]
			writeLine(pdf, fmt.Sprintf("Day cost %.2f, serves %d", costing.Round2(rollup.Cost), rollup.Servings))
		}
		pdf.Ln(2)
	}

	if len(document.Week.Options) > 0 {
		writeHeading(pdf, "Daily options")
		for _, slot := range document.Week.Options {
			writeLine(pdf, fmt.Sprintf("%s: %s (%.2f per serving)",
				slotTitle(slot.Label), slot.RecipeName, costing.Round2(slot.CostPerServing)))
		}
		writeLine(pdf, fmt.Sprintf("Options cost %.2f", costing.Round2(document.Rollup.OptionsCost)))
		pdf.Ln(2)
	}

	writeHeading(pdf, "Week totals")
	writeLine(pdf, fmt.Sprintf("Weekly cost: %.2f", costing.Round2(document.Rollup.TotalWeeklyCost)))
	writeLine(pdf, fmt.Sprintf("Serves: %d", document.Rollup.TotalWeeklyServings))
	writeLine(pdf, fmt.Sprintf("Cost per person: %.2f", document.Rollup.CostPerPerson))
	pdf.Ln(4)

	writeHeading(pdf, "Allergens across the week")
	writeLine(pdf, allergenSummaryLine(document.Allergens))

	data, err := output(pdf)
	if err != nil {
		return nil, err
	}

	filename := "menu.pdf"
	if slug := slugify(document.WeekStartDate); slug != "" {
		filename = "menu-" + slug + ".pdf"
	}
	return &Document{Filename: filename, ContentType: pdfContentType, Data: data}, nil
}

func newPage() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	return pdf
}

func writeTitle(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, text, "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func writeHeading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, text, "", 1, "L", false, 0, "")
}

func writeLine(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, text, "", 1, "L", false, 0, "")
}

func writeParagraph(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, text, "", "L", false)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buffer.Bytes(), nil
}

func allergenSummaryLine(summary map[string]allergen.Status) string {
	if len(summary) == 0 {
		return "No declared allergens."
	}
	parts := make([]string, 0, len(summary))
	for _, name := range allergen.Names(summary) {
		parts = append(parts, fmt.Sprintf("%s (%s)", name, summary[name]))
	}
	return strings.Join(parts, ", ")
}

func slotTitle(label string) string {
	return titleCase(strings.ReplaceAll(label, "_", " "))
}

func titleCase(text string) string {
	words := strings.Fields(text)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
