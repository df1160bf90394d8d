package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouteMetadata contains metadata for a route
type RouteMetadata struct {
	Path                   string
	Method                 string
	RequiresAuthentication bool
	RequiredRole           string
	Handler                http.HandlerFunc
	Description            string
	RateLimit              int // requests per minute, 0 = no limit
}

// RouteRegistry manages route metadata, keyed by the mux path template so
// middleware can look routes up after matching.
type RouteRegistry struct {
	routes []RouteMetadata
}

// NewRouteRegistry creates a new route registry
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{
		routes: make([]RouteMetadata, 0),
	}
}

// RegisterRoute registers a route with metadata
func (rr *RouteRegistry) RegisterRoute(route RouteMetadata) {
	rr.routes = append(rr.routes, route)
}

// GetRouteMetadata retrieves metadata for a route by path template
func (rr *RouteRegistry) GetRouteMetadata(pathTemplate, method string) (RouteMetadata, bool) {
	for _, route := range rr.routes {
		if route.Path == pathTemplate && route.Method == method {
			return route, true
		}
	}
	return RouteMetadata{}, false
}

// GetAllRoutes returns all registered routes
func (rr *RouteRegistry) GetAllRoutes() []RouteMetadata {
	return rr.routes
}

// SetupRoutes configures all routes with their metadata
func (s *Server) SetupRoutes(router *mux.Router) *RouteRegistry {
	registry := NewRouteRegistry()

	api := router.PathPrefix("/v1").Subrouter()

	register := func(path, method string, requiresAuth bool, role string, handler http.HandlerFunc, description string, rateLimit int) {
		registry.RegisterRoute(RouteMetadata{
			Path:                   "/v1" + path,
			Method:                 method,
			RequiresAuthentication: requiresAuth,
			RequiredRole:           role,
			Handler:                handler,
			Description:            description,
			RateLimit:              rateLimit,
		})
		api.HandleFunc(path, handler).Methods(method)
	}

	// Health endpoint - public, no auth required
	register("/health", "GET", false, "", s.healthHandler, "API health check", 0)

	// Repository listing and descriptors - public, with rate limiting
	register("/repositories", "GET", false, "", s.listRepositoriesHandler, "List hosted repositories", 60)
	register("/repositories/{name}/metadata.json", "GET", false, "", s.metadataDescriptorHandler, "Metadata repository descriptor", 120)
	register("/repositories/{name}/artifacts.json", "GET", false, "", s.artifactDescriptorHandler, "Artifact repository descriptor", 120)

	// Blob download - public, rate limited for abuse prevention
	register("/repositories/{name}/blobs/{sha256}", "GET", false, "", s.downloadBlobHandler, "Download artifact blob", 30)

	// Hosting - requires publisher permissions
	register("/repositories", "POST", true, "publisher", s.createRepositoryHandler, "Create repository", 10)
	register("/repositories/{name}/artifacts", "POST", true, "publisher", s.uploadArtifactHandler, "Upload artifact", 10)
	register("/repositories/{name}/children", "POST", true, "publisher", s.addChildHandler, "Add composite child", 10)

	// Accounts and sessions
	register("/auth/register", "POST", false, "", s.createAccountHandler, "Create account", 10)
	register("/auth/login", "POST", false, "", s.loginHandler, "Login", 10)
	register("/auth/logout", "POST", true, "reader", s.logoutHandler, "Logout", 0)
	register("/auth/profile", "GET", true, "reader", s.accountProfileHandler, "Current account profile", 0)
	register("/auth/change-password", "POST", true, "reader", s.changePasswordHandler, "Change password", 5)
	register("/auth/accounts", "GET", true, "admin", s.listAccountsHandler, "List accounts", 0)
	register("/auth/accounts/{id}", "DELETE", true, "admin", s.disableAccountHandler, "Disable account", 0)

	return registry
}
