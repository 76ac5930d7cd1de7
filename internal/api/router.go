/**
 * @description
 * This file sets up the HTTP router for the attendance-service using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, panic recovery, timeouts, and CORS, and maps the routes to their
 * corresponding handler functions.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for chi.
 * - github.com/prometheus/client_golang/prometheus/promhttp: /metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new Chi router and registers the attendance-service routes.
func NewRouter(h *AttendanceHandlers, metricsEnabled bool) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/attendance", func(r chi.Router) {
		r.Get("/active", h.ActiveHandler)

		r.Route("/{userID}", func(r chi.Router) {
			r.Post("/check-in", h.CheckInHandler)
			r.Post("/check-out", h.CheckOutHandler)
			r.Get("/status", h.StatusHandler)
			r.Get("/history", h.HistoryHandler)
			r.Get("/history/export", h.HistoryExportHandler)
			r.Get("/stats", h.StatsHandler)
		})
	})

	r.Get("/memberships", h.MembershipsHandler)
	r.Post("/users/{userID}/subscription/{membershipID}", h.PurchaseMembershipHandler)

	return r
}
