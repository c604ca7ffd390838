// Package jwt provides token generation and validation for the billing API.
// Tokens are tenant-scoped: every authenticated request acts on behalf of
// exactly one tenant.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptyTenantID is returned when the tenant id is empty.
	ErrEmptyTenantID = errors.New("tenant_id cannot be empty")
	// ErrInvalidTokenType is returned when the token type is wrong for
	// the operation.
	ErrInvalidTokenType = errors.New("invalid token type")
)

// TokenType represents the type of JWT token.
type TokenType string

const (
	// TokenTypeAccess is a short-lived access token.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh is a long-lived refresh token.
	TokenTypeRefresh TokenType = "refresh"
)

// Role is the caller's role within the tenant.
type Role string

const (
	// RoleAdmin can manage plans, products and tenant settings.
	RoleAdmin Role = "admin"
	// RoleBilling can manage accounts, subscriptions and payments.
	RoleBilling Role = "billing"
	// RoleReadOnly can only read billing data and entitlements.
	RoleReadOnly Role = "readonly"
	// RoleService is used by machine callers reporting usage.
	RoleService Role = "service"
)

// Claims represents the JWT claims structure.
type Claims struct {
	TenantID  string    `json:"tenant_id"`
	SubjectID string    `json:"subject_id,omitempty"`
	Role      Role      `json:"role,omitempty"`
	TokenType TokenType `json:"token_type,omitempty"`

	jwt.RegisteredClaims
}

// CanWrite reports whether the role may mutate billing data.
func (c *Claims) CanWrite() bool {
	return c.Role == RoleAdmin || c.Role == RoleBilling
}

// CanManagePlans reports whether the role may create or update plans.
func (c *Claims) CanManagePlans() bool {
	return c.Role == RoleAdmin
}

// CanRecordUsage reports whether the role may submit usage events.
func (c *Claims) CanRecordUsage() bool {
	return c.Role == RoleAdmin || c.Role == RoleBilling || c.Role == RoleService
}

// TokenConfig holds token generation configuration.
type TokenConfig struct {
	Secret               string
	Issuer               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// TokenPair is an access/refresh token pair.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// Generator creates and validates tokens.
type Generator struct {
	config TokenConfig
}

// NewGenerator creates a new token generator.
func NewGenerator(config TokenConfig) *Generator {
	return &Generator{config: config}
}

// GenerateAccessToken creates a tenant-scoped access token.
func (g *Generator) GenerateAccessToken(tenantID, subjectID string, role Role) (string, time.Time, error) {
	return g.generate(tenantID, subjectID, role, TokenTypeAccess, g.config.AccessTokenDuration)
}

// GenerateRefreshToken creates a refresh token. Refresh tokens carry no
// role; a fresh access token is minted at exchange time.
func (g *Generator) GenerateRefreshToken(tenantID, subjectID string) (string, time.Time, error) {
	return g.generate(tenantID, subjectID, "", TokenTypeRefresh, g.config.RefreshTokenDuration)
}

// GenerateTokenPair creates an access and refresh token pair.
func (g *Generator) GenerateTokenPair(tenantID, subjectID string, role Role) (*TokenPair, error) {
	accessToken, accessExpiry, err := g.GenerateAccessToken(tenantID, subjectID, role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, refreshExpiry, err := g.GenerateRefreshToken(tenantID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshTokenExpiresAt: refreshExpiry,
	}, nil
}

func (g *Generator) generate(tenantID, subjectID string, role Role, tokenType TokenType, ttl time.Duration) (string, time.Time, error) {
	if tenantID == "" {
		return "", time.Time{}, ErrEmptyTenantID
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		TenantID:  tenantID,
		SubjectID: subjectID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.config.Issuer,
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(g.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signedToken, expiresAt, nil
}

// ValidateToken parses and validates a token of any type.
func (g *Generator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TenantID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken validates a token and requires the access type.
func (g *Generator) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := g.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

// ValidateRefreshToken validates a token and requires the refresh type.
func (g *Generator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := g.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
