// Package auth guards the diagnostics API with HS256 bearer tokens.
//
// There is no user store. Tokens are minted out of band (see cmd/mktoken)
// from the shared API_TOKEN_SECRET and carry the operator name for log
// attribution.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"email-router/internal/common/logging"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const contextKeyOperator contextKey = "operator"

const (
	// TokenIssuer is stamped into every token this service mints
	TokenIssuer = "email-router"
	// TokenLifetime bounds how long a minted token stays valid
	TokenLifetime = 24 * time.Hour
)

// Claims carries the verified identity of a diagnostics API caller
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Auth verifies bearer tokens against the shared signing secret
type Auth struct {
	secret []byte
}

// New creates an Auth around the shared signing secret
func New(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// GenerateToken mints a signed bearer token for an operator
func (a *Auth) GenerateToken(operator string) (string, time.Time, error) {
	expiresAt := time.Now().Add(TokenLifetime)

	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    TokenIssuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken parses a token string and returns its claims when valid
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(TokenIssuer))

	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token claims")
}

// RequireAuth wraps a handler so that only callers presenting a valid
// bearer token reach it. Failures answer 401 with a JSON error body.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(w, "Authorization header must be 'Bearer <token>'")
			return
		}

		claims, err := a.ValidateToken(parts[1])
		if err != nil {
			logging.Debug("diagnostics token rejected",
				logging.String("path", r.URL.Path),
				logging.Err(err),
			)
			unauthorized(w, "Invalid or expired token")
			return
		}

		// Make the operator identity available to handlers and to the
		// request log that runs outside this middleware
		r.Header.Set("X-Operator", claims.Operator)
		ctx := context.WithValue(r.Context(), contextKeyOperator, claims.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext retrieves the authenticated operator name, if any
func OperatorFromContext(ctx context.Context) (string, bool) {
	operator, ok := ctx.Value(contextKeyOperator).(string)
	return operator, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
