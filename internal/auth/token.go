package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTokenTTL is the session token lifetime
	DefaultTokenTTL = 24 * time.Hour
	// Issuer is stamped on every session token and required on validation
	Issuer = "safedrop"
)

// ErrInvalidToken is returned for tokens that fail parsing or claim checks
var ErrInvalidToken = errors.New("invalid token")

// sessionClaims are the claims carried by a session token
type sessionClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 session tokens
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
	parser    *jwt.Parser
	now       func() time.Time
}

// NewTokenService creates a token service. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("JWT secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secretKey: []byte(secret),
		ttl:       ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
		now: time.Now,
	}, nil
}

// NewToken signs a session token for userID
func (s *TokenService) NewToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and checks signature, issuer and expiry
func (s *TokenService) ValidateToken(tokenString string) (*jwt.Token, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &sessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return token, nil
}

// GetUserIDFromToken reads the subject of a validated token as a user ID
func (s *TokenService) GetUserIDFromToken(token *jwt.Token) (uuid.UUID, error) {
	claims, ok := token.Claims.(*sessionClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: unexpected claims type %T", ErrInvalidToken, token.Claims)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user ID", ErrInvalidToken)
	}
	return userID, nil
}
