// Package auth issues and validates the bearer tokens that ingestion
// clients present to the uplink endpoints.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ingestion clients are bridges (for example a Node-RED flow) that forward
// decoded uplinks. Tokens are HS256 JWTs whose subject is the client ID and
// which carry the granted scopes. There are no refresh tokens: clients are
// issued a new token out of band when theirs expires.

// DefaultTokenTTL is used when IssueToken is called with a zero TTL.
const DefaultTokenTTL = 24 * time.Hour

// Scopes.
const (
	// ScopeUplinksWrite allows submitting uplinks for preparation.
	ScopeUplinksWrite = "uplinks:write"
)

// Predefined token errors.
var (
	ErrInvalidToken      = errors.New("invalid access token")
	ErrTokenExpired      = errors.New("access token has expired")
	ErrInsufficientScope = errors.New("insufficient scope")
	ErrNoSigningKey      = errors.New("signing key is required")
)

// Claims are the claims carried by client tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Scopes granted to the client.
	Scopes []string `json:"scp,omitempty"`
}

// ClientID returns the authenticated client.
func (c *Claims) ClientID() string {
	return c.Subject
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// RequireScope returns ErrInsufficientScope when scope was not granted.
func (c *Claims) RequireScope(scope string) error {
	if !c.HasScope(scope) {
		return fmt.Errorf("%w: %s", ErrInsufficientScope, scope)
	}
	return nil
}

// Config holds configuration for the token service.
type Config struct {
	// SigningKey is the HMAC secret.
	SigningKey string

	// Issuer is the issuer claim (e.g., "https://api.airsense.example").
	Issuer string

	// Audience is the audience claim (e.g., "airsense-api").
	Audience string
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
}

// NewTokenService creates a token service.
func NewTokenService(cfg Config) (*TokenService, error) {
	if cfg.SigningKey == "" {
		return nil, ErrNoSigningKey
	}
	return &TokenService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}, nil
}

// IssueToken signs a token for clientID.
func (s *TokenService) IssueToken(clientID string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate checks signature, issuer, audience and expiry and returns the
// claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateTokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
