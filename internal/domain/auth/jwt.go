// Package auth issues and validates the bearer tokens devices present to
// the numbering authority.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fieldledger/internal/core/clock"
	appctx "fieldledger/internal/core/context"
)

// Roles carried by tokens.
const (
	RoleDevice = "device"
	RoleAdmin  = "admin"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration. Device tokens are
// long-lived: a device may stay offline for days between refills.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:   secret,
		Issuer:   "fieldledger",
		TokenTTL: 30 * 24 * time.Hour,
	}
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"uid"`
	OrgID  string   `json:"org"`
	OrgIDs []string `json:"orgs,omitempty"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

// JWTService handles JWT operations.
type JWTService struct {
	config JWTConfig
	clock  clock.Clock
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig, clk clock.Clock) *JWTService {
	if clk == nil {
		clk = clock.System{}
	}
	return &JWTService{config: config, clock: clk}
}

// GenerateToken signs a token for user.
func (s *JWTService) GenerateToken(user appctx.UserContext) (string, time.Time, error) {
	if s.config.Secret == "" {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	if user.UserID == "" || user.OrgID == "" {
		return "", time.Time{}, errors.New("token needs a user and an organization")
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.config.TokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: user.UserID,
		OrgID:  user.OrgID,
		OrgIDs: user.OrgIDs,
		Email:  user.Email,
		Roles:  user.Roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a token and returns the caller it describes.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" || claims.OrgID == "" {
		return nil, errors.New("token has no user or organization")
	}

	return &appctx.UserContext{
		UserID: claims.UserID,
		OrgID:  claims.OrgID,
		OrgIDs: claims.OrgIDs,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}, nil
}
