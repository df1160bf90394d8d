package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"

	"repostack/internal/auth"
	"repostack/internal/db"
)

// Context keys for the authenticated caller
type contextKey string

const (
	accountContextKey      contextKey = "account"
	sessionContextKey      contextKey = "session"
	publishTokenContextKey contextKey = "publishToken"
)

// routeForRequest resolves the matched mux path template so registry
// lookups work for routes with path parameters.
func routeForRequest(registry *RouteRegistry, r *http.Request) (RouteMetadata, bool) {
	if registry == nil {
		return RouteMetadata{}, false
	}

	path := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			path = template
		}
	}

	return registry.GetRouteMetadata(path, r.Method)
}

// authMiddleware validates session tokens, falling back to salted publish
// tokens, based on each route's metadata.
func (s *Server) authMiddleware(registry *RouteRegistry) func(http.Handler) http.Handler {
	issuer := auth.NewIssuer(s.Config.JWTSecret, auth.SessionTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			routeMetadata, routeFound := routeForRequest(registry, r)
			if routeFound && !routeMetadata.RequiresAuthentication {
				next.ServeHTTP(w, r)
				return
			}

			// Unknown routes require authentication.
			if !routeFound {
				routeMetadata.RequiredRole = "reader"
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
				return
			}

			token := parts[1]
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Token cannot be empty")
				return
			}

			ctx := r.Context()

			if _, err := issuer.Verify(token); err == nil {
				// Signature checks out, the session must still exist.
				acct, sess, err := s.DB.SessionAccount(auth.Hash(token))
				if err != nil {
					writeError(w, http.StatusUnauthorized, "Invalid or expired session")
					return
				}
				s.DB.TouchSession(sess.ID)

				if !roleAllowed(routeMetadata.RequiredRole, acct.Role) {
					writeError(w, http.StatusForbidden, "Insufficient permissions")
					return
				}

				ctx = context.WithValue(ctx, accountContextKey, acct)
				ctx = context.WithValue(ctx, sessionContextKey, sess)
			} else {
				// Publish token fallback. These carry publisher scope
				// only, never admin.
				if routeMetadata.RequiredRole == "admin" {
					writeError(w, http.StatusForbidden, "Admin routes require a login session")
					return
				}
				tokenHash := db.HashPublishToken(token, s.Config.TokenSalt)
				pubTok, err := s.DB.PublishTokenByHash(tokenHash)
				if err == sql.ErrNoRows {
					writeError(w, http.StatusUnauthorized, "Invalid token")
					return
				}
				if err != nil {
					writeError(w, http.StatusInternalServerError, "Token validation failed")
					return
				}
				s.DB.TouchPublishToken(pubTok.ID)
				ctx = context.WithValue(ctx, publishTokenContextKey, pubTok)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// roleAllowed maps a route's required role to a permission check.
func roleAllowed(requiredRole string, role db.Role) bool {
	switch requiredRole {
	case "":
		return true
	case "reader":
		return role.Allows("read")
	case "publisher":
		return role.Allows("publish")
	case "admin":
		return role.Allows("admin")
	default:
		return false
	}
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// jsonSanitizeMiddleware strips HTML from every string field of incoming
// JSON bodies before handlers see them.
func (s *Server) jsonSanitizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPut) &&
			strings.Contains(r.Header.Get("Content-Type"), "application/json") {

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}
			r.Body.Close()

			var data interface{}
			if err := json.Unmarshal(body, &data); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid JSON")
				return
			}

			policy := bluemonday.StrictPolicy()
			sanitized := sanitizeData(data, policy)

			newBody, err := json.Marshal(sanitized)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to encode sanitized JSON")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(newBody))
			r.ContentLength = int64(len(newBody))
			r.Header.Set("Content-Length", strconv.Itoa(len(newBody)))
		}

		next.ServeHTTP(w, r)
	})
}

// Rate limiting middleware
type rateLimiter struct {
	mu       sync.RWMutex
	visitors map[string]*visitor
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
	}

	go rl.cleanupVisitors()

	return rl
}

func (rl *rateLimiter) cleanupVisitors() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 5*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(ip string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:   limit - 1,
			lastSeen: time.Now(),
		}
		return true
	}

	// Token bucket refill
	now := time.Now()
	elapsed := now.Sub(v.lastSeen)
	tokensToAdd := int(elapsed.Minutes())

	v.tokens += tokensToAdd
	if v.tokens > limit {
		v.tokens = limit
	}
	v.lastSeen = now

	if v.tokens > 0 {
		v.tokens--
		return true
	}

	return false
}

func (s *Server) rateLimitMiddleware(registry *RouteRegistry) func(http.Handler) http.Handler {
	limiter := newRateLimiter()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			if metadata, found := routeForRequest(registry, r); found && metadata.RateLimit > 0 {
				if !limiter.allow(ip, metadata.RateLimit) {
					writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Security headers middleware
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// Request logging middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		log.Printf("[%s] %s %s - %d (%v) - %s",
			getClientIP(r),
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			duration,
			r.UserAgent(),
		)
	})
}

// Request size limiting middleware
func (s *Server) requestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func sanitizeData(v interface{}, policy *bluemonday.Policy) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, sub := range val {
			val[k] = sanitizeData(sub, policy)
		}
		return val
	case []interface{}:
		for i, sub := range val {
			val[i] = sanitizeData(sub, policy)
		}
		return val
	case string:
		return policy.Sanitize(val)
	default:
		return v
	}
}

func getClientIP(r *http.Request) string {
	// Check for X-Forwarded-For header (behind proxy)
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if strings.Contains(ip, ":") {
		ip, _, _ = strings.Cut(ip, ":")
	}
	return ip
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Helper functions to extract the caller from context
func getAccountFromContext(ctx context.Context) *db.Account {
	acct, ok := ctx.Value(accountContextKey).(*db.Account)
	if !ok {
		return nil
	}
	return acct
}

func getSessionFromContext(ctx context.Context) *db.Session {
	sess, ok := ctx.Value(sessionContextKey).(*db.Session)
	if !ok {
		return nil
	}
	return sess
}

func getPublishTokenFromContext(ctx context.Context) *db.PublishToken {
	tok, ok := ctx.Value(publishTokenContextKey).(*db.PublishToken)
	if !ok {
		return nil
	}
	return tok
}
