package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	applog "mensago/internal/log"
	"mensago/internal/reports"
)

// ReportResource serves the exportable documents: the allergy matrix and
// recipe cost sheet as spreadsheets, recipe and menu sheets as PDFs.
func ReportResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "report request without database")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "report request without authenticated user")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/app/api/reports"), "/")
	segments := strings.Split(path, "/")

	switch {
	case path == "allergy-matrix":
		allergyMatrixReport(w, r)
	case len(segments) == 3 && segments[0] == "recipes" && segments[2] == "pdf":
		recipePDFReport(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "recipes" && segments[2] == "xlsx":
		recipeXLSXReport(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "menus" && segments[2] == "pdf":
		menuPDFReport(w, r, segments[1])
	default:
		http.NotFound(w, r)
	}
}

func allergyMatrixReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matrix, err := reports.BuildAllergyMatrix(ctx, database)
	if err != nil {
		applog.Error(ctx, "failed to build allergy matrix", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to build allergy matrix")
		return
	}

	document, err := reports.XLSXRenderer{}.RenderAllergyMatrix(matrix)
	if err != nil {
		applog.Error(ctx, "failed to render allergy matrix", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to render allergy matrix")
		return
	}

	serveDocument(w, r, document)
}

func recipePDFReport(w http.ResponseWriter, r *http.Request, identifier string) {
	ctx := r.Context()
	idValue, err := strconv.ParseUint(identifier, 10, 64)
	if err != nil {
		applog.Debug(ctx, "invalid recipe identifier for report", "identifier", identifier, "error", err)
		http.NotFound(w, r)
		return
	}

	recipeDocument, err := reports.BuildRecipeDocument(ctx, database, uint(idValue))
	if err != nil {
		if errors.Is(err, reports.ErrRecipeNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to build recipe report", "error", err, "id", idValue)
		writeJSONError(w, http.StatusInternalServerError, "unable to build recipe report")
		return
	}

	document, err := reports.PDFRenderer{}.RenderRecipe(recipeDocument)
	if err != nil {
		applog.Error(ctx, "failed to render recipe report", "error", err, "id", idValue)
		writeJSONError(w, http.StatusInternalServerError, "unable to render recipe report")
		return
	}

	serveDocument(w, r, document)
}

func recipeXLSXReport(w http.ResponseWriter, r *http.Request, identifier string) {
	ctx := r.Context()
	idValue, err := strconv.ParseUint(identifier, 10, 64)
	if err != nil {
		applog.Debug(ctx, "invalid recipe identifier for report", "identifier", identifier, "error", err)
		http.NotFound(w, r)
		return
	}

	recipeDocument, err := reports.BuildRecipeDocument(ctx, database, uint(idValue))
	if err != nil {
		if errors.Is(err, reports.ErrRecipeNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to build recipe report", "error", err, "id", idValue)
		writeJSONError(w, http.StatusInternalServerError, "unable to build recipe report")
		return
	}

	document, err := reports.XLSXRenderer{}.RenderRecipeCosts(recipeDocument)
	if err != nil {
		applog.Error(ctx, "failed to render recipe cost sheet", "error", err, "id", idValue)
		writeJSONError(w, http.StatusInternalServerError, "unable to render recipe cost sheet")
		return
	}

	serveDocument(w, r, document)
}

func menuPDFReport(w http.ResponseWriter, r *http.Request, week string) {
	ctx := r.Context()
	menuDocument, err := reports.BuildMenuDocument(ctx, database, week)
	if err != nil {
		if errors.Is(err, reports.ErrMenuNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to build menu report", "error", err, "week", week)
		writeJSONError(w, http.StatusInternalServerError, "unable to build menu report")
		return
	}

	document, err := reports.PDFRenderer{}.RenderMenu(menuDocument)
	if err != nil {
		applog.Error(ctx, "failed to render menu report", "error", err, "week", week)
		writeJSONError(w, http.StatusInternalServerError, "unable to render menu report")
		return
	}

	serveDocument(w, r, document)
}

func serveDocument(w http.ResponseWriter, r *http.Request, document *reports.Document) {
	w.Header().Set("Content-Type", document.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+document.Filename+`"`)
	if _, err := w.Write(document.Data); err != nil {
		applog.Error(r.Context(), "failed to write report response", "error", err, "filename", document.Filename)
	}
}
