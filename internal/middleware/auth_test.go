package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftledger/internal/models"
)

var testSecret = []byte("test-secret")

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  c.GetUint(UserIDKey),
			"username": c.GetString(UsernameKey),
		})
	})
	return r
}

func doAuthRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	user := &models.User{Base: models.Base{ID: 7}, Username: "cashier"}
	valid, err := GenerateAccessToken(testSecret, user, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateAccessToken(testSecret, user, -time.Minute)
	require.NoError(t, err)
	foreign, err := GenerateAccessToken([]byte("other-secret"), user, time.Hour)
	require.NoError(t, err)

	t.Run("valid_token", func(t *testing.T) {
		rec := doAuthRequest(setupAuthRouter(), "Bearer "+valid)
		require.Equal(t, http.StatusOK, rec.Code)
		body := parseBody(t, rec)
		assert.Equal(t, float64(7), body["user_id"])
		assert.Equal(t, "cashier", body["username"])
	})

	for name, header := range map[string]string{
		"missing_header":  "",
		"wrong_scheme":    "Token " + valid,
		"expired_token":   "Bearer " + expired,
		"foreign_secret":  "Bearer " + foreign,
		"garbage_token":   "Bearer not-a-jwt",
		"too_many_fields": "Bearer a b",
	} {
		t.Run(name, func(t *testing.T) {
			rec := doAuthRequest(setupAuthRouter(), header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}

	t.Run("rejects_none_algorithm", func(t *testing.T) {
		claims := &JWTClaims{UserID: 7, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		rec := doAuthRequest(setupAuthRouter(), "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
