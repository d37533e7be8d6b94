package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

const issuer = "boardsync"

// Claims holds the bearer token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
}

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// IssueToken creates a signed HS256 bearer token for userID. An empty
// sessionID is replaced with a fresh UUID.
func IssueToken(secret, userID, sessionID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("auth.IssueToken: empty user id")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		UserID:    userID,
		SessionID: sessionID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT token string. Returns the embedded claims.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	return claims, nil
}

// Verifier resolves a bearer credential to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

// JWTVerifier verifies tokens issued by IssueToken.
type JWTVerifier struct {
	secret string
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify returns the token's identity. Failures wrap domain.ErrUnauthorized.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*domain.Identity, error) {
	claims, err := ValidateToken(v.secret, token)
	if err != nil {
		return nil, fmt.Errorf("auth.JWTVerifier.Verify: %w: %w", domain.ErrUnauthorized, err)
	}
	return &domain.Identity{UserID: claims.UserID, SessionID: claims.SessionID}, nil
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (*domain.Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	return f(ctx, token)
}
