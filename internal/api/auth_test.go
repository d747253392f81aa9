package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/chatlink/chatlink/internal/logging"
)

func authTestRouter(apiKeys []string, headerName string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyAuth(apiKeys, headerName, logging.NewLogger()))
	r.GET("/protected", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAPIKeyAuthBypassedWithoutKeys(t *testing.T) {
	r := authTestRouter(nil, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthRejectsMissingAndInvalid(t *testing.T) {
	r := authTestRouter([]string{"valid-key"}, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(DefaultAPIKeyHeader, "wrong-key")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIKeyAuthAcceptsValidKey(t *testing.T) {
	r := authTestRouter([]string{"valid-key"}, "")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(DefaultAPIKeyHeader, "valid-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthCustomHeader(t *testing.T) {
	r := authTestRouter([]string{"valid-key"}, "X-Custom-Auth")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Custom-Auth", "valid-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaskAPIKeys(t *testing.T) {
	masked := MaskAPIKeys([]string{"abcd1234", "xy"})
	assert.Equal(t, "abcd****", masked[0])
	assert.Equal(t, "**", masked[1])
}
