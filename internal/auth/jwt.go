// Package auth issues and verifies the session-scoped access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// Roles carried in token claims.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// AdminTokenDuration is the lifetime of an admin session token.
const AdminTokenDuration = 24 * time.Hour

// minUserTokenDuration keeps a user token from being issued already dead
// when the phrase window is past due at mint time.
const minUserTokenDuration = time.Second

// JWTManager handles token generation and validation.
type JWTManager struct {
	secretKey []byte
}

// Claims are the custom claims bound to a session. PhraseID is set only on
// user tokens minted for a share phrase.
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	PhraseID  string `json:"phrase_id,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager with the given secret.
// secretKey should be a strong random string (e.g., 32 bytes).
func NewJWTManager(secretKey string) *JWTManager {
	return &JWTManager{secretKey: []byte(secretKey)}
}

// GenerateAdmin creates an admin-scoped token bound to the session, valid
// for AdminTokenDuration.
func (m *JWTManager) GenerateAdmin(sessionID string) (string, error) {
	return m.generate(&Claims{
		Role:      RoleAdmin,
		SessionID: sessionID,
	}, AdminTokenDuration)
}

// GenerateUser creates a user-scoped token bound to the session and phrase,
// expiring at validUntil (at least one second from now).
func (m *JWTManager) GenerateUser(sessionID, phraseID string, validUntil time.Time) (string, error) {
	duration := time.Until(validUntil)
	if duration < minUserTokenDuration {
		duration = minUserTokenDuration
	}
	return m.generate(&Claims{
		Role:      RoleUser,
		SessionID: sessionID,
		PhraseID:  phraseID,
	}, duration)
}

func (m *JWTManager) generate(claims *Claims, duration time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate parses and validates a token, returning the claims if valid.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
