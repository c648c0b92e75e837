package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/security/audit"
	"github.com/yourorg/rentnest/internal/security/auth"
	"github.com/yourorg/rentnest/internal/security/ratelimit"
)

type ActorContextKey struct{}
type ClaimsContextKey struct{}

// isPublic reports whether the request needs no bearer token. Property
// browsing is open to anonymous visitors; everything else under /api
// requires auth.
func isPublic(r *http.Request) bool {
	if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" ||
		strings.HasPrefix(r.URL.Path, "/api/auth/") {
		return true
	}
	if r.Method == http.MethodGet &&
		(r.URL.Path == "/api/properties" || strings.HasPrefix(r.URL.Path, "/api/properties/")) &&
		!strings.HasSuffix(r.URL.Path, "/applications") {
		return true
	}
	// Operator endpoints authenticate with the shared admin token, checked
	// by the admin handler itself.
	if strings.HasPrefix(r.URL.Path, "/api/admin/") && r.Header.Get("X-Admin-Token") != "" {
		return true
	}
	return false
}

func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				// websocket clients can't set headers, so the feed
				// accepts the token as a query parameter
				if strings.HasPrefix(r.URL.Path, "/ws/") && r.URL.Query().Get("token") != "" {
					authHeader = "Bearer " + r.URL.Query().Get("token")
				} else {
					http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
					return
				}
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			ctx = context.WithValue(ctx, ActorContextKey{}, claims.Actor())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			if actor, ok := ActorFromContext(r.Context()); ok {
				key = actor.ID
			}

			if !limiter.Allow(key) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""
			if actor, ok := ActorFromContext(r.Context()); ok {
				userID = actor.ID
			}

			if r.Method == http.MethodPost && r.URL.Path == "/api/applications" {
				auditLog.LogAction(r.Context(), userID, "apply", "application", "", "initiated")
			}
			if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/applications/") {
				// Runs ahead of the mux, so the id is cut from the raw path.
				id := strings.TrimPrefix(r.URL.Path, "/api/applications/")
				id, _, _ = strings.Cut(id, "/")
				auditLog.LogAction(r.Context(), userID, "decide", "application", id, "initiated")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ActorFromContext returns the authenticated identity placed by
// JWTMiddleware.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	if a, ok := ctx.Value(ActorContextKey{}).(domain.Actor); ok {
		return a, true
	}
	return domain.Actor{}, false
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}
