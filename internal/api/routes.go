package api

import (
	"github.com/gorilla/mux"

	"repostack/internal/config"
	"repostack/internal/db"
)

// Server holds dependencies for API handlers
type Server struct {
	DB       *db.DB
	Config   config.Config
	Registry *RouteRegistry
}

// RegisterRoutes sets up all API routes with the security middleware chain
func RegisterRoutes(r *mux.Router, database *db.DB, cfg config.Config) {
	s := &Server{
		DB:     database,
		Config: cfg,
	}

	registry := s.SetupRoutes(r)
	s.Registry = registry

	// Apply middleware in order (outermost to innermost)
	r.Use(panicRecoveryMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.requestSizeLimitMiddleware(100 * 1024 * 1024)) // 100MB max request size
	r.Use(s.rateLimitMiddleware(registry))
	r.Use(s.jsonSanitizeMiddleware)
	r.Use(s.authMiddleware(registry))
}
