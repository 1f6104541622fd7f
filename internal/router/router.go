package router

import (
	"fmt"
	"net/http"

	"certverify/internal/handlers"
	"certverify/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func RegisterRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(middleware.LoggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	// OCR verification (public)
	r.Post("/api/v1/verify-document", handlers.VerifyDocument)

	// Bulk CSV upload of authoritative records
	r.Post("/api/v1/institution/bulk-upload", handlers.BulkUploadHandler)

	// Shareable attempt reports (token required via query param)
	r.Post("/api/v1/attempts/generate-share-link", handlers.GenerateShareLink)
	r.Get("/api/v1/attempts/{id}", handlers.AttemptReport)
	r.Get("/api/v1/attempts/{id}/qrcode", handlers.AttemptQRCode)

	return r
}
