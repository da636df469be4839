// Package server assembles the HTTP router shared by the standalone API
// binary and the Lambda entrypoint.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	appMiddleware "github.com/artgallery/service/internal/middleware"
	"github.com/artgallery/service/internal/response"
	"github.com/artgallery/service/internal/upload"

	_ "github.com/artgallery/service/docs/swagger"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Upload      *upload.Handler
	Logger      *zap.Logger
	CORSOrigins []string
	// JWTSecret enables the bearer guard on the upload route when set.
	JWTSecret string
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(d.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		// Every other method reaches the handler directly and answers 405
		// before any auth check. POST must be registered after HandleFunc.
		r.HandleFunc("/upload", d.Upload.Upload)
		r.With(appMiddleware.RequireAuth(d.JWTSecret)).Post("/upload", d.Upload.Upload)
	})

	return r
}
