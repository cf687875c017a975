package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	applog "mensago/internal/log"
	"mensago/internal/reports"
	"mensago/models"
)

type menuRequest struct {
	Name          string                     `json:"name"`
	WeekStartDate string                     `json:"week_start_date"`
	Days          map[string]*models.DayMenu `json:"days"`
	DailyOptions  *models.DailyOptions       `json:"daily_options"`
}

type menuResponse struct {
	ID            uint                       `json:"id"`
	Name          string                     `json:"name"`
	WeekStartDate string                     `json:"week_start_date"`
	Days          map[string]*models.DayMenu `json:"days"`
	DailyOptions  *models.DailyOptions       `json:"daily_options"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// MenuResource handles weekly menu plans. Menus are upserted by their week
// start date rather than by id so re-submitting a week replaces the plan.
func MenuResource(w http.ResponseWriter, r *http.Request) {
	if database == nil {
		applog.Debug(r.Context(), "menu request without database")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if _, ok := currentUserID(r); !ok {
		applog.Debug(r.Context(), "menu request without authenticated user")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/app/api/menus")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			listMenus(w, r)
		case http.MethodPost:
			upsertMenu(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	week := path
	switch r.Method {
	case http.MethodGet:
		showMenu(w, r, week)
	case http.MethodDelete:
		deleteMenu(w, r, week)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listMenus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var menus []models.Menu
	if err := database.WithContext(ctx).Order("week_start_date desc").Find(&menus).Error; err != nil {
		applog.Error(ctx, "failed to list menus", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load menus")
		return
	}

	responses := make([]menuResponse, 0, len(menus))
	for _, menu := range menus {
		response, err := projectMenu(menu)
		if err != nil {
			applog.Error(ctx, "failed to decode menu", "error", err, "id", menu.ID)
			writeJSONError(w, http.StatusInternalServerError, "unable to load menus")
			return
		}
		responses = append(responses, response)
	}
	writeJSON(w, http.StatusOK, responses)
}

// showMenu returns the stored plan along with its resolved weekly costing
// rollup and merged allergen summary.
func showMenu(w http.ResponseWriter, r *http.Request, week string) {
	ctx := r.Context()
	var menu models.Menu
	if err := database.WithContext(ctx).Where("week_start_date = ?", week).First(&menu).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Debug(ctx, "menu not found", "week", week)
			http.NotFound(w, r)
			return
		}
		applog.Error(ctx, "failed to load menu", "error", err, "week", week)
		writeJSONError(w, http.StatusInternalServerError, "unable to load menu")
		return
	}

	response, err := projectMenu(menu)
	if err != nil {
		applog.Error(ctx, "failed to decode menu", "error", err, "id", menu.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load menu")
		return
	}

	document, err := reports.BuildMenuDocument(ctx, database, menu.WeekStartDate)
	if err != nil {
		applog.Error(ctx, "failed to build menu costing", "error", err, "week", week)
		writeJSONError(w, http.StatusInternalServerError, "unable to cost menu")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"menu":      response,
		"rollup":    document.Rollup,
		"allergens": document.Allergens,
	})
}

func upsertMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload menuRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		applog.Debug(ctx, "invalid menu payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	week := strings.TrimSpace(payload.WeekStartDate)
	if week == "" {
		writeJSONError(w, http.StatusBadRequest, "week_start_date is required")
		return
	}
	if _, err := time.Parse("2006-01-02", week); err != nil {
		writeJSONError(w, http.StatusBadRequest, "week_start_date must be formatted YYYY-MM-DD")
		return
	}

	for weekday := range payload.Days {
		if !validWeekday(weekday) {
			writeJSONError(w, http.StatusBadRequest, "unknown weekday: "+weekday)
			return
		}
	}

	var menu models.Menu
	err := database.WithContext(ctx).Where("week_start_date = ?", week).First(&menu).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		menu = models.Menu{WeekStartDate: week}
	case err != nil:
		applog.Error(ctx, "failed to load menu for upsert", "error", err, "week", week)
		writeJSONError(w, http.StatusInternalServerError, "unable to save menu")
		return
	}

	created := menu.ID == 0
	menu.Name = strings.TrimSpace(payload.Name)
	if menu.Name == "" {
		menu.Name = "Week of " + week
	}

	// an omitted weekday clears that day's plan: the submitted plan is the
	// whole week
	for _, weekday := range models.Weekdays {
		if err := menu.SetDay(weekday, payload.Days[weekday]); err != nil {
			applog.Error(ctx, "failed to encode menu day", "error", err, "weekday", weekday)
			writeJSONError(w, http.StatusInternalServerError, "unable to save menu")
			return
		}
	}
	if err := menu.SetOptions(payload.DailyOptions); err != nil {
		applog.Error(ctx, "failed to encode menu options", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to save menu")
		return
	}

	if err := database.WithContext(ctx).Save(&menu).Error; err != nil {
		applog.Error(ctx, "failed to save menu", "error", err, "week", week)
		writeJSONError(w, http.StatusInternalServerError, "unable to save menu")
		return
	}

	response, err := projectMenu(menu)
	if err != nil {
		applog.Error(ctx, "failed to decode saved menu", "error", err, "id", menu.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load menu")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, response)
}

func deleteMenu(w http.ResponseWriter, r *http.Request, week string) {
	ctx := r.Context()
	// Hard delete: a soft-deleted row would keep the unique week_start_date
	// occupied and block re-creating the same week.
	result := database.WithContext(ctx).Unscoped().Where("week_start_date = ?", week).Delete(&models.Menu{})
	if result.Error != nil {
		applog.Error(ctx, "failed to delete menu", "error", result.Error, "week", week)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete menu")
		return
	}
	if result.RowsAffected == 0 {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func projectMenu(menu models.Menu) (menuResponse, error) {
	days, err := menu.Days()
	if err != nil {
		return menuResponse{}, err
	}
	options, err := menu.Options()
	if err != nil {
		return menuResponse{}, err
	}

	decoded := make(map[string]*models.DayMenu, len(models.Weekdays))
	for i, weekday := range models.Weekdays {
		if days[i] != nil {
			decoded[weekday] = days[i]
		}
	}

	return menuResponse{
		ID:            menu.ID,
		Name:          menu.Name,
		WeekStartDate: menu.WeekStartDate,
		Days:          decoded,
		DailyOptions:  options,
		CreatedAt:     menu.CreatedAt,
		UpdatedAt:     menu.UpdatedAt,
	}, nil
}

func validWeekday(weekday string) bool {
	for _, known := range models.Weekdays {
		if known == weekday {
			return true
		}
	}
	return false
}
