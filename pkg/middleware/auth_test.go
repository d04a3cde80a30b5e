package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpath/tracksync/internal/tokens"
)

func authRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/guarded", AuthMiddleware(secret), func(c *gin.Context) {
		sub, _ := c.Get("subject")
		c.JSON(http.StatusOK, gin.H{"subject": sub})
	})
	return r
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	secret := "testsecret123456789012345678901234"
	tok, err := tokens.GenerateServiceToken(secret, "scheduler", time.Minute)
	require.NoError(t, err)

	r := authRouter(secret)
	req := httptest.NewRequest("POST", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scheduler")
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r := authRouter("secret")
	req := httptest.NewRequest("POST", "/guarded", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	r := authRouter("secret")
	req := httptest.NewRequest("POST", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewarePassThroughWithoutSecret(t *testing.T) {
	r := authRouter("")
	req := httptest.NewRequest("POST", "/guarded", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
