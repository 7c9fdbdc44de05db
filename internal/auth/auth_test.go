package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken(42, "alice")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.FID)
	require.Equal(t, "alice", claims.Username)

	require.Equal(t, "42", claims.Subject)

	InitJWT("other-secret")
	_, err = ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsForeignClaims(t *testing.T) {
	InitJWT("test-secret")

	sign := func(claims *Claims) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return token
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	otherIssuer := valid()
	otherIssuer.Issuer = "someone-else"
	noExpiry := valid()
	noExpiry.ExpiresAt = nil

	for name, claims := range map[string]*Claims{
		"expired":      {FID: 1, RegisteredClaims: expired},
		"other issuer": {FID: 1, RegisteredClaims: otherIssuer},
		"no expiry":    {FID: 1, RegisteredClaims: noExpiry},
		"no fid":       {RegisteredClaims: valid()},
	} {
		_, err := ValidateToken(sign(claims))
		require.ErrorIs(t, err, ErrInvalidToken, name)
	}

	_, err := GenerateToken(0, "nobody")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	InitJWT("test-secret")

	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		fid, ok := GetFID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"fid": fid})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := GenerateToken(7, "bob")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"fid":7}`, w.Body.String())
}
