package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"mensago/internal/importer"
	applog "mensago/internal/log"
)

const maxImportUploadSize = 20 << 20 // 20 MiB

var importChunkSize = importer.DefaultChunkSize

// ConfigureImports installs the resync chunk size used by bulk imports.
func ConfigureImports(chunkSize int) {
	if chunkSize > 0 {
		importChunkSize = chunkSize
	}
}

// ImportResource accepts bulk CSV uploads: supplier pricing under
// /app/api/imports/pricing and allergen declarations under
// /app/api/imports/allergens.
func ImportResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "import request without database")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "import request without authenticated user")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	kind := strings.Trim(strings.TrimPrefix(r.URL.Path, "/app/api/imports"), "/")

	file, err := readImportUpload(r)
	if err != nil {
		applog.Debug(r.Context(), "import upload rejected", "error", err)
		writeJSONError(w, http.StatusBadRequest, "a csv file upload is required")
		return
	}
	defer file.Close()

	imp := importer.New(database)
	imp.ChunkSize = importChunkSize

	ctx := r.Context()
	var result *importer.Result
	switch kind {
	case "pricing":
		result, err = imp.ImportPricing(ctx, file)
	case "allergens":
		result, err = imp.ImportAllergens(ctx, file)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, importer.ErrEmptyInput), errors.Is(err, importer.ErrMissingColumns):
			applog.Debug(ctx, "import rejected", "kind", kind, "error", err)
			writeJSONError(w, http.StatusBadRequest, err.Error())
		default:
			applog.Error(ctx, "import failed", "kind", kind, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "import failed")
		}
		return
	}

	applog.Info(ctx, "import completed",
		"kind", kind,
		"batchID", result.BatchID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"snapshotsUpdated", result.Resync.SnapshotsUpdated,
		"recipesRecalculated", result.Resync.RecipesRecalculated,
	)
	writeJSON(w, http.StatusOK, result)
}

// readImportUpload accepts either a multipart "file" field or a raw CSV body.
func readImportUpload(r *http.Request) (io.ReadCloser, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportUploadSize); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}
