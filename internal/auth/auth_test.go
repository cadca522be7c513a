package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-router/internal/auth"
)

const testSecret = "this-is-a-test-api-secret-key-that-is-long-enough"

func signedToken(t *testing.T, secret string, claims auth.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestGenerateToken(t *testing.T) {
	a := auth.New(testSecret)

	token, expiresAt, err := a.GenerateToken("ops-admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.WithinDuration(t, time.Now().Add(auth.TokenLifetime), expiresAt, 5*time.Second)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-admin", claims.Operator)
	assert.Equal(t, auth.TokenIssuer, claims.Issuer)
	assert.Equal(t, "ops-admin", claims.Subject)
}

func TestValidateToken(t *testing.T) {
	a := auth.New(testSecret)

	t.Run("valid token", func(t *testing.T) {
		token, _, err := a.GenerateToken("watcher")
		require.NoError(t, err)

		claims, err := a.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "watcher", claims.Operator)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signedToken(t, testSecret, auth.Claims{
			Operator: "watcher",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
				Issuer:    auth.TokenIssuer,
			},
		})

		_, err := a.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signedToken(t, "a-completely-different-signing-secret-string", auth.Claims{
			Operator: "watcher",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    auth.TokenIssuer,
			},
		})

		_, err := a.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signedToken(t, testSecret, auth.Claims{
			Operator: "watcher",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    "somebody-else",
			},
		})

		_, err := a.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
			Operator: "watcher",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    auth.TokenIssuer,
			},
		})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = a.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := a.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	a := auth.New(testSecret)

	var seenOperator string
	protected := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOperator, _ = auth.OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datastore", nil)

		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "Authorization header required")
	})

	t.Run("malformed header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datastore", nil)
		req.Header.Set("Authorization", "Token abcdef")

		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Bearer")
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datastore", nil)
		req.Header.Set("Authorization", "Bearer bogus.token.value")

		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid or expired token")
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := a.GenerateToken("ops-admin")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datastore", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ops-admin", seenOperator)
	})

	t.Run("lowercase bearer accepted", func(t *testing.T) {
		token, _, err := a.GenerateToken("ops-admin")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datastore", nil)
		req.Header.Set("Authorization", "bearer "+token)

		protected.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
