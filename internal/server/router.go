package server

import (
	"context"
	"net/http"
	"strings"

	"mensago/internal/handlers"
	applog "mensago/internal/log"
)

func newRouter(photoDir string) http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")

	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/login", handlers.Login)
	mux.HandleFunc("/signup", handlers.Signup)
	mux.HandleFunc("/logout", handlers.Logout)

	protected := map[string]http.HandlerFunc{
		"/app/api/ingredients":  handlers.IngredientResource,
		"/app/api/ingredients/": handlers.IngredientResource,
		"/app/api/recipes":      handlers.RecipeResource,
		"/app/api/recipes/":     handlers.RecipeResource,
		"/app/api/menus":        handlers.MenuResource,
		"/app/api/menus/":       handlers.MenuResource,
		"/app/api/imports/":     handlers.ImportResource,
		"/app/api/reports/":     handlers.ReportResource,
	}
	for path, handler := range protected {
		mux.Handle(path, handlers.RequireAuthentication(handler))
		applog.Debug(context.Background(), "route registered", "path", path, "protected", true)
	}

	if strings.TrimSpace(photoDir) != "" {
		mux.Handle("/photos/", http.StripPrefix("/photos/", http.FileServer(http.Dir(photoDir))))
		applog.Debug(context.Background(), "route registered", "path", "/photos/", "static", true)
	}

	return mux
}
