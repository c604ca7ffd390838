package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterly/api/internal/infra/http/middleware"
	"github.com/meterly/api/pkg/jwt"
	"github.com/meterly/api/pkg/logger"
)

const testTenantID = "a9f1d5b0-1111-4222-8333-444455556666"

func newTestGenerator() *jwt.Generator {
	return jwt.NewGenerator(jwt.TokenConfig{
		Secret:               "test-secret-that-is-long-enough-0123456789",
		Issuer:               "meterly-test",
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_ValidToken(t *testing.T) {
	gen := newTestGenerator()
	token, _, err := gen.GenerateAccessToken(testTenantID, "subject-1", jwt.RoleAdmin)
	require.NoError(t, err)

	var gotTenant string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = middleware.GetTenantID(r.Context()).String()
		claims := middleware.GetClaims(r.Context())
		require.NotNil(t, claims)
		assert.Equal(t, jwt.RoleAdmin, claims.Role)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware.Auth(gen, logger.NewNop())(inner).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testTenantID, gotTenant)
}

func TestAuth_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()

	middleware.Auth(newTestGenerator(), logger.NewNop())(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_MalformedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()

	middleware.Auth(newTestGenerator(), logger.NewNop())(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_RefreshTokenRejected(t *testing.T) {
	gen := newTestGenerator()
	token, _, err := gen.GenerateRefreshToken(testTenantID, "subject-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware.Auth(gen, logger.NewNop())(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	gen := newTestGenerator()
	auth := middleware.Auth(gen, logger.NewNop())

	tests := []struct {
		name  string
		guard func(http.Handler) http.Handler
		role  jwt.Role
		want  int
	}{
		{"write allows billing", middleware.RequireWrite(), jwt.RoleBilling, http.StatusOK},
		{"write rejects readonly", middleware.RequireWrite(), jwt.RoleReadOnly, http.StatusForbidden},
		{"write rejects service", middleware.RequireWrite(), jwt.RoleService, http.StatusForbidden},
		{"plan management allows admin", middleware.RequirePlanManagement(), jwt.RoleAdmin, http.StatusOK},
		{"plan management rejects billing", middleware.RequirePlanManagement(), jwt.RoleBilling, http.StatusForbidden},
		{"usage recording allows service", middleware.RequireUsageRecording(), jwt.RoleService, http.StatusOK},
		{"usage recording rejects readonly", middleware.RequireUsageRecording(), jwt.RoleReadOnly, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := gen.GenerateAccessToken(testTenantID, "subject-1", tt.role)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			auth(tt.guard(okHandler())).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRoleGuard_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()

	middleware.RequireWrite()(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
