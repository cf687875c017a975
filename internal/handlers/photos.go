package handlers

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"gorm.io/gorm"

	"mensago/internal/config"
	applog "mensago/internal/log"
	"mensago/models"
)

const maxPhotoUploadSize = 10 << 20 // 10 MiB

var photoConfig = config.PhotoConfig{Dir: "photos", MaxWidth: 1280}

// ConfigurePhotos installs the photo storage settings.
func ConfigurePhotos(cfg config.PhotoConfig) {
	if strings.TrimSpace(cfg.Dir) != "" {
		photoConfig.Dir = cfg.Dir
	}
	if cfg.MaxWidth > 0 {
		photoConfig.MaxWidth = cfg.MaxWidth
	}
}

func uploadRecipePhoto(w http.ResponseWriter, r *http.Request, recipeID uint) {
	ctx := r.Context()

	var recipe models.Recipe
	if err := database.WithContext(ctx).Select("id", "photo_path").First(&recipe, recipeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load recipe for photo upload", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return
	}

	if err := r.ParseMultipartForm(maxPhotoUploadSize); err != nil {
		applog.Debug(ctx, "failed to parse photo upload form", "error", err)
		writeJSONError(w, http.StatusBadRequest, "upload is too large or invalid")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		applog.Debug(ctx, "photo upload missing file", "error", err)
		writeJSONError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	decoded, format, err := image.Decode(file)
	if err != nil {
		applog.Debug(ctx, "photo upload not a decodable image", "error", err, "filename", header.Filename)
		writeJSONError(w, http.StatusBadRequest, "file is not a supported image")
		return
	}

	if width := decoded.Bounds().Dx(); width > photoConfig.MaxWidth {
		decoded = resize.Resize(uint(photoConfig.MaxWidth), 0, decoded, resize.Lanczos3)
	}

	if err := os.MkdirAll(photoConfig.Dir, 0o755); err != nil {
		applog.Error(ctx, "failed to create photo directory", "error", err, "dir", photoConfig.Dir)
		writeJSONError(w, http.StatusInternalServerError, "unable to store photo")
		return
	}

	ext := ".jpg"
	if format == "png" {
		ext = ".png"
	}
	filename := fmt.Sprintf("recipe-%d-%s%s", recipeID, uuid.NewString(), ext)
	path := filepath.Join(photoConfig.Dir, filename)

	out, err := os.Create(path)
	if err != nil {
		applog.Error(ctx, "failed to create photo file", "error", err, "path", path)
		writeJSONError(w, http.StatusInternalServerError, "unable to store photo")
		return
	}
	defer out.Close()

	switch ext {
	case ".png":
		err = png.Encode(out, decoded)
	default:
		err = jpeg.Encode(out, decoded, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		applog.Error(ctx, "failed to encode photo", "error", err, "path", path)
		writeJSONError(w, http.StatusInternalServerError, "unable to store photo")
		return
	}

	previous := recipe.PhotoPath
	if err := database.WithContext(ctx).Model(&recipe).Update("photo_path", path).Error; err != nil {
		applog.Error(ctx, "failed to record photo path", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to store photo")
		return
	}

	if previous != "" && previous != path {
		if err := os.Remove(previous); err != nil && !errors.Is(err, os.ErrNotExist) {
			applog.Debug(ctx, "failed to remove previous photo", "error", err, "path", previous)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"photo_path": path})
}
