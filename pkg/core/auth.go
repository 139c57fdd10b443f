package core

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session token errors
var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// SecureCompareString compares two strings in constant time
func SecureCompareString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidateAuthToken rejects MCP access tokens that are empty, short or
// obviously guessable.
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewError(ErrInvalidParameter, "Authentication token cannot be empty").
			WithGuidance("Provide a valid authentication token.")
	}
	if len(token) < 16 {
		return NewError(ErrInvalidParameter, "Authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}

	lowerToken := strings.ToLower(token)
	for _, weak := range []string{
		"password", "secret", "token", "admin", "test", "default",
		"12345", "123456", "password123", "secret123", "admin123",
	} {
		if strings.Contains(lowerToken, weak) {
			return NewError(ErrInvalidParameter, "Authentication token appears to be weak").
				WithGuidance("Use a randomly generated authentication token.")
		}
	}
	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(authHeader string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

// AuthenticateBearer checks a static bearer token, as used on the MCP endpoint
func AuthenticateBearer(authHeader, expectedToken string) AuthResult {
	start := time.Now()
	defer time.Sleep(time.Millisecond)

	if authHeader == "" {
		return AuthResult{Error: "Missing Authorization header", Duration: time.Since(start)}
	}
	token, ok := BearerToken(authHeader)
	if !ok {
		return AuthResult{Error: "Invalid Authorization header format", Duration: time.Since(start)}
	}
	if !SecureCompareString(token, expectedToken) {
		return AuthResult{Error: "Invalid bearer token", Duration: time.Since(start)}
	}
	return AuthResult{Authorized: true, Duration: time.Since(start)}
}

// AuthenticateBasic checks basic auth credentials against "user:password"
func AuthenticateBasic(username, password, expectedCredentials string) AuthResult {
	start := time.Now()
	defer time.Sleep(time.Millisecond)

	if username == "" || password == "" {
		return AuthResult{Error: "Missing basic auth credentials", Duration: time.Since(start)}
	}
	if !SecureCompareString(username+":"+password, expectedCredentials) {
		return AuthResult{Error: "Invalid basic auth credentials", Duration: time.Since(start)}
	}
	return AuthResult{Authorized: true, Duration: time.Since(start)}
}

// SessionClaims are the claims carried by a dashboard session token. The
// subject is the user id.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SignSession issues an HS256 session token for userID
func SignSession(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("error signing session token: %w", err)
	}
	return signed, nil
}

// VerifySession validates an HS256 session token and returns its subject.
// Expired tokens, other algorithms and tokens without a subject are rejected.
func VerifySession(secret, tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}
	if secret == "" {
		return "", fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
