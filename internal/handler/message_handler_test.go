package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLockPinPrefersQueryParameter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/mz/api/messages?pin=4321", nil)
	c.Request.Header.Set("X-Chat-Pin", "9999")

	assert.Equal(t, "4321", lockPin(c))
}

func TestLockPinFallsBackToHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/mz/api/messages", nil)
	c.Request.Header.Set("X-Chat-Pin", "9999")
	assert.Equal(t, "9999", lockPin(c))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/mz/api/messages", nil)
	assert.Equal(t, "", lockPin(c))
}
