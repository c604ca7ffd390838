package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/meterly/api/pkg/apierror"
	"github.com/meterly/api/pkg/domain/shared"
	"github.com/meterly/api/pkg/jwt"
	"github.com/meterly/api/pkg/logger"
)

type contextKey string

// claimsContextKey is where validated token claims live in the context.
const claimsContextKey contextKey = "jwt_claims"

// Auth validates the Bearer token and stores its claims in the request
// context. Every API route below /api/v1 runs behind it.
func Auth(tokens *jwt.Generator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				apierror.Unauthorized("Authorization header required").WriteJSON(w)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				apierror.Unauthorized("Bearer token required").WriteJSON(w)
				return
			}

			claims, err := tokens.ValidateAccessToken(token)
			if err != nil {
				log.Debug("token validation failed",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				apierror.Unauthorized("Invalid or expired token").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			ctx = context.WithValue(ctx, logger.ContextKeyTenantID, claims.TenantID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts the validated token claims from context.
func GetClaims(ctx context.Context) *jwt.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*jwt.Claims)
	return claims
}

// GetTenantID extracts the authenticated tenant ID from context.
// Returns the zero ID when the request is unauthenticated or the claim
// is malformed.
func GetTenantID(ctx context.Context) shared.ID {
	claims := GetClaims(ctx)
	if claims == nil {
		return shared.ID{}
	}
	id, err := shared.IDFromString(claims.TenantID)
	if err != nil {
		return shared.ID{}
	}
	return id
}

// RequireWrite rejects callers whose role may not mutate billing data.
func RequireWrite() func(http.Handler) http.Handler {
	return requireRole(func(c *jwt.Claims) bool { return c.CanWrite() },
		"Write access required")
}

// RequirePlanManagement rejects callers whose role may not manage plans
// or products.
func RequirePlanManagement() func(http.Handler) http.Handler {
	return requireRole(func(c *jwt.Claims) bool { return c.CanManagePlans() },
		"Plan management access required")
}

// RequireUsageRecording rejects callers whose role may not submit usage
// events.
func RequireUsageRecording() func(http.Handler) http.Handler {
	return requireRole(func(c *jwt.Claims) bool { return c.CanRecordUsage() },
		"Usage recording access required")
}

func requireRole(allowed func(*jwt.Claims) bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				apierror.Unauthorized("Authentication required").WriteJSON(w)
				return
			}
			if !allowed(claims) {
				apierror.Forbidden(message).WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
