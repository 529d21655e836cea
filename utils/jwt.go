package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token does not contain a valid 'sub' claim")
	ErrEmptySecret    = errors.New("token secret is empty")
)

// TokenClaims is what the booking routes need from an access token.
type TokenClaims struct {
	Subject string
	Role    string
}

// TokenManager signs and verifies HS256 access tokens. Issuing tokens belongs
// to the auth service; this side only verifies them, GenerateToken exists for
// tooling and tests.
type TokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// GenerateToken creates a signed JWT for subject with the given role.
func (m *TokenManager) GenerateToken(subject, role string, duration time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrEmptySecret
	}
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a token string and returns the token if valid.
// An empty secret verifies nothing, so every token is refused.
func (m *TokenManager) ValidateToken(tokenString string) (*jwt.Token, error) {
	if len(m.secret) == 0 {
		return nil, ErrEmptySecret
	}
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure that the token's signing method is HMAC.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
}

// ParseClaims validates tokenString and extracts subject and role.
func (m *TokenManager) ParseClaims(tokenString string) (*TokenClaims, error) {
	token, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrMissingSubject
	}
	role, _ := claims["role"].(string)

	return &TokenClaims{Subject: sub, Role: role}, nil
}
