package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/postpulse/ai-router/app"
	"github.com/postpulse/ai-router/handlers"
	"github.com/postpulse/ai-router/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	aiHandler := handlers.NewAIHandler(deps.Router, deps.Logger)
	quotaHandler := handlers.NewQuotaHandler(deps.QuotaService, deps.Logger)
	usageHandler := handlers.NewUsageHandler(deps.UsageService, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.DB.DB, deps.HealthMonitor, deps.Logger)

	// Health check endpoints
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// AI routing API (requires authentication)
	r.Route("/api/ai", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Use(deps.AuthMiddleware.ExtractOrg)

		r.Post("/completion", aiHandler.HandleCompletion)
		r.Post("/image", aiHandler.HandleImage)

		r.Get("/quota", quotaHandler.HandleQuotaStatus)
		r.Get("/quota/recommendations", quotaHandler.HandleQuotaRecommendations)

		r.Get("/usage", usageHandler.HandleStatistics)
		r.Get("/usage/cost", usageHandler.HandleCostBreakdown)
		r.Get("/usage/daily", usageHandler.HandleDailySummary)
		r.Get("/usage/trends", usageHandler.HandleTrends)

		r.Get("/health", healthHandler.HandleProviderHealth)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"Route not found"}`))
	})

	return r
}

// requestID propagates chi's request ID into the application context and
// echoes it back on the response
func requestID(next http.Handler) http.Handler {
	return chimiddleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set("X-Request-ID", id)
			r = r.WithContext(middleware.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	}))
}
